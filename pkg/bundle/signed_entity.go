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

package bundle

import "fmt"

// SignedEntity is the normalized, immutable view over a Bundle that the
// verifier actually operates on: the signed content, the claimed signing
// identity, the transparency-log entries witnessing it, and the raw RFC3161
// timestamp tokens (if any).
type SignedEntity struct {
	bundle *Bundle
}

// NewSignedEntity normalizes b, failing fast on any structurally invalid
// tagged union (exactly one verification-material case, exactly one content
// case).
func NewSignedEntity(b *Bundle) (*SignedEntity, error) {
	if _, err := ParseVerificationContent(b.GetVerificationMaterial()); err != nil {
		return nil, fmt.Errorf("invalid verification material: %w", err)
	}
	if _, err := ParseSignatureContent(b.Bundle); err != nil {
		return nil, fmt.Errorf("invalid signature content: %w", err)
	}
	return &SignedEntity{bundle: b}, nil
}

// VerificationContent returns the parsed signing-identity case.
func (s *SignedEntity) VerificationContent() (VerificationContent, error) {
	return ParseVerificationContent(s.bundle.GetVerificationMaterial())
}

// SignatureContent returns the parsed signed-payload case.
func (s *SignedEntity) SignatureContent() (SignatureContent, error) {
	return ParseSignatureContent(s.bundle.Bundle)
}

// TlogEntries returns every transparency-log entry attached to the bundle.
func (s *SignedEntity) TlogEntries() ([]*TransparencyLogEntry, error) {
	rawEntries := s.bundle.GetVerificationMaterial().GetTlogEntries()
	entries := make([]*TransparencyLogEntry, 0, len(rawEntries))
	for i, raw := range rawEntries {
		entry, err := NewTransparencyLogEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("tlog entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Timestamps returns the raw RFC3161 TimeStampResp bytes attached to the
// bundle, one per requested timestamping authority.
func (s *SignedEntity) Timestamps() [][]byte {
	rfc3161 := s.bundle.GetVerificationMaterial().GetTimestampVerificationData().GetRfc3161Timestamps()
	out := make([][]byte, 0, len(rfc3161))
	for _, ts := range rfc3161 {
		out = append(out, ts.GetSignedTimestamp())
	}
	return out
}

// MediaType returns the bundle's declared schema version.
func (s *SignedEntity) MediaType() string { return s.bundle.GetMediaType() }
