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

package tlog

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/sumdb/note"

	sigstoresig "github.com/sigstore/sigstore/pkg/signature"
)

// signatureLineRE matches a signed-note signature line: an em dash, the
// signer identity, and the base64(key_hint||signature) blob.
var signatureLineRE = regexp.MustCompile(`(?m)^\x{2014} (\S+) (\S+)$`)

// Checkpoint is the parsed body of a signed-note checkpoint envelope
// committing a transparency log to (origin, size, root hash).
type Checkpoint struct {
	Origin  string
	Size    int64
	LogHash []byte
	Text    string
}

// ParseCheckpoint splits a checkpoint envelope into its note body and
// decodes the first three body lines per the signed-note checkpoint format.
// It does not verify any signature; use VerifyCheckpointSignature for that.
func ParseCheckpoint(envelope string) (*Checkpoint, error) {
	body, _, ok := strings.Cut(envelope, "\n\n")
	if !ok {
		return nil, fmt.Errorf("checkpoint envelope is missing the body/signature separator")
	}

	lines := strings.Split(body, "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("checkpoint body has fewer than 3 lines")
	}

	size, err := strconv.ParseInt(lines[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing checkpoint log size: %w", err)
	}

	logHash, err := base64.StdEncoding.DecodeString(lines[2])
	if err != nil {
		return nil, fmt.Errorf("decoding checkpoint log hash: %w", err)
	}

	return &Checkpoint{Origin: lines[0], Size: size, LogHash: logHash, Text: body}, nil
}

// logKeyVerifier adapts a transparency log's sigstore Verifier to the
// note.Verifier interface, matching signature lines by the checkpoint
// signer's key hint (the first four bytes of the log's key ID) rather than
// note's own name-derived key hash.
type logKeyVerifier struct {
	name     string
	keyHash  uint32
	verifier sigstoresig.Verifier
}

func (v *logKeyVerifier) Name() string  { return v.name }
func (v *logKeyVerifier) KeyHash() uint32 { return v.keyHash }
func (v *logKeyVerifier) Verify(msg, sig []byte) bool {
	return v.verifier.VerifySignature(bytes.NewReader(sig), bytes.NewReader(msg)) == nil
}

// VerifyCheckpointSignature checks that envelope carries at least one
// signature whose key hint matches logID's first four bytes and that
// verifies over the note body using verifier.
func VerifyCheckpointSignature(envelope string, logID []byte, verifier sigstoresig.Verifier) error {
	if len(logID) < 4 {
		return fmt.Errorf("log ID too short to derive a key hint")
	}
	keyHash := binary.BigEndian.Uint32(logID[:4])

	matches := signatureLineRE.FindAllStringSubmatch(envelope, -1)
	if len(matches) == 0 {
		return fmt.Errorf("checkpoint envelope has no signature lines")
	}

	var lastErr error
	for _, m := range matches {
		identity := m[1]
		nv := &logKeyVerifier{name: identity, keyHash: keyHash, verifier: verifier}
		_, err := note.Open([]byte(envelope), note.VerifierList(nv))
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("no checkpoint signature matched the trusted log key: %w", lastErr)
}
