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

// Package tlog verifies the transparency-log evidence attached to a bundle:
// the canonicalized entry body, its Signed Entry Timestamp, and its Merkle
// inclusion proof against a signed checkpoint.
package tlog

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/sigstore/sigstore/pkg/signature"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
)

// setPayload is the object the log signs to produce a Signed Entry
// Timestamp: RFC 8785 canonical JSON over these exact fields, keys in
// lexicographic order.
type setPayload struct {
	Body           string `json:"body"`
	IntegratedTime int64  `json:"integratedTime"`
	LogIndex       int64  `json:"logIndex"`
	LogID          string `json:"logID"`
}

// VerifySignedEntryTimestamp reconstructs the canonical JSON payload a
// transparency log signed for entry and checks its SET against verifier.
func VerifySignedEntryTimestamp(entry *bundle.TransparencyLogEntry, verifier signature.Verifier) error {
	set := entry.SignedEntryTimestamp()
	if len(set) == 0 {
		return fmt.Errorf("tlog entry has no inclusion promise")
	}

	logIDBytes, err := hex.DecodeString(entry.LogID())
	if err != nil {
		return fmt.Errorf("decoding log ID: %w", err)
	}

	payload := setPayload{
		Body:           base64.StdEncoding.EncodeToString(entry.CanonicalizedBody()),
		IntegratedTime: entry.IntegratedTime().Unix(),
		LogIndex:       entry.LogIndex(),
		LogID:          hex.EncodeToString(logIDBytes),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling SET payload: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return fmt.Errorf("canonicalizing SET payload: %w", err)
	}

	if err := verifier.VerifySignature(bytes.NewReader(set), bytes.NewReader(canonical)); err != nil {
		return fmt.Errorf("signed entry timestamp does not verify: %w", err)
	}
	return nil
}
