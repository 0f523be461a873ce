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
	"fmt"

	"github.com/transparency-dev/merkle/proof"
	"github.com/transparency-dev/merkle/rfc6962"

	sigstoresig "github.com/sigstore/sigstore/pkg/signature"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
)

// VerifyInclusionProof recomputes the Merkle root from entry's leaf hash and
// audit path, checks it against the proof's claimed root hash, and — when
// the proof carries a checkpoint envelope — requires that envelope to carry
// a signature over its own body from the log identified by logID, verified
// with verifier.
func VerifyInclusionProof(entry *bundle.TransparencyLogEntry, logID []byte, verifier sigstoresig.Verifier) error {
	inclusionProof := entry.InclusionProof()
	if inclusionProof == nil {
		return fmt.Errorf("tlog entry has no inclusion proof")
	}

	leafHash := rfc6962.DefaultHasher.HashLeaf(entry.CanonicalizedBody())

	if err := proof.VerifyInclusion(rfc6962.DefaultHasher,
		uint64(inclusionProof.LogIndex), uint64(inclusionProof.TreeSize),
		leafHash, inclusionProof.Hashes, inclusionProof.RootHash); err != nil {
		return fmt.Errorf("inclusion proof does not verify: %w", err)
	}

	if inclusionProof.CheckpointEnvelope == "" {
		return nil
	}

	checkpoint, err := ParseCheckpoint(inclusionProof.CheckpointEnvelope)
	if err != nil {
		return fmt.Errorf("parsing checkpoint: %w", err)
	}
	if !bytes.Equal(checkpoint.LogHash, inclusionProof.RootHash) {
		return fmt.Errorf("checkpoint log hash does not match inclusion proof root hash")
	}
	if verifier == nil {
		return fmt.Errorf("no verifier available to check checkpoint signature")
	}
	if err := VerifyCheckpointSignature(inclusionProof.CheckpointEnvelope, logID, verifier); err != nil {
		return fmt.Errorf("checkpoint signature does not verify: %w", err)
	}

	return nil
}
