//
// Copyright 2021 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bundle models the Sigstore Bundle wire format and normalizes it
// into the shape the verifier consumes, following the protobuf-JSON schema
// that sigstore/protobuf-specs generates.
package bundle

import (
	"fmt"
	"os"

	protobundle "github.com/sigstore/protobuf-specs/gen/pb-go/bundle/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	MediaType01 = "application/vnd.dev.sigstore.bundle+json;version=0.1"
	MediaType02 = "application/vnd.dev.sigstore.bundle+json;version=0.2"
	MediaType03 = "application/vnd.dev.sigstore.bundle+json;version=0.3"
)

// supportedMediaTypes lists every bundle schema version this verifier
// accepts; anything else is rejected before normalization is attempted.
var supportedMediaTypes = map[string]bool{
	MediaType01: true,
	MediaType02: true,
	MediaType03: true,
}

// Bundle wraps the generated protobuf message for a Sigstore Bundle,
// providing typed accessors over its tagged-union fields.
type Bundle struct {
	*protobundle.Bundle
}

// NewBundle validates the media type of an already-decoded protobuf message
// and wraps it.
func NewBundle(pb *protobundle.Bundle) (*Bundle, error) {
	if !supportedMediaTypes[pb.GetMediaType()] {
		return nil, fmt.Errorf("unsupported bundle media type: %s", pb.GetMediaType())
	}
	return &Bundle{Bundle: pb}, nil
}

// NewBundleFromJSON parses a protobuf-JSON encoded bundle document.
func NewBundleFromJSON(bundleJSON []byte) (*Bundle, error) {
	pb := &protobundle.Bundle{}
	if err := protojson.Unmarshal(bundleJSON, pb); err != nil {
		return nil, fmt.Errorf("unmarshaling bundle: %w", err)
	}
	return NewBundle(pb)
}

// NewBundleFromPath reads and parses a bundle document from disk.
func NewBundleFromPath(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	return NewBundleFromJSON(raw)
}

// MarshalJSON re-serializes the bundle to protobuf-JSON, so
// NewBundleFromJSON(b.MarshalJSON()) round-trips to an equivalent message.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	return protojson.Marshal(b.Bundle)
}
