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

import (
	"encoding/hex"
	"fmt"
	"time"

	protorekor "github.com/sigstore/protobuf-specs/gen/pb-go/rekor/v1"
)

// maxInclusionProofHashes bounds the Merkle audit path accepted from a
// bundle so a hostile proof cannot force unbounded recomputation work.
const maxInclusionProofHashes = 64

// TransparencyLogEntry wraps one of a bundle's tlog_entries with typed
// accessors over its tagged fields.
type TransparencyLogEntry struct {
	pb *protorekor.TransparencyLogEntry
}

// NewTransparencyLogEntry validates and wraps a single protobuf tlog entry.
func NewTransparencyLogEntry(pb *protorekor.TransparencyLogEntry) (*TransparencyLogEntry, error) {
	if pb.GetLogId().GetKeyId() == nil {
		return nil, fmt.Errorf("tlog entry missing log ID")
	}
	if pb.GetKindVersion() == nil {
		return nil, fmt.Errorf("tlog entry missing kind/version")
	}
	if len(pb.GetCanonicalizedBody()) == 0 {
		return nil, fmt.Errorf("tlog entry missing canonicalized body")
	}
	if proof := pb.GetInclusionProof(); proof != nil && len(proof.GetHashes()) > maxInclusionProofHashes {
		return nil, fmt.Errorf("inclusion proof carries %d hashes, exceeding the maximum of %d", len(proof.GetHashes()), maxInclusionProofHashes)
	}
	return &TransparencyLogEntry{pb: pb}, nil
}

func (e *TransparencyLogEntry) LogIndex() int64 { return e.pb.GetLogIndex() }

// LogID returns the transparency log's key ID, hex-encoded to match the
// indexing convention used by root.TrustedMaterial.TlogAuthorities.
func (e *TransparencyLogEntry) LogID() string {
	return hex.EncodeToString(e.pb.GetLogId().GetKeyId())
}

// LogIDBytes returns the transparency log's raw key ID bytes.
func (e *TransparencyLogEntry) LogIDBytes() []byte {
	return e.pb.GetLogId().GetKeyId()
}

func (e *TransparencyLogEntry) Kind() string    { return e.pb.GetKindVersion().GetKind() }
func (e *TransparencyLogEntry) Version() string { return e.pb.GetKindVersion().GetVersion() }

func (e *TransparencyLogEntry) IntegratedTime() time.Time {
	return time.Unix(e.pb.GetIntegratedTime(), 0)
}

func (e *TransparencyLogEntry) CanonicalizedBody() []byte { return e.pb.GetCanonicalizedBody() }

// SignedEntryTimestamp returns the SET bytes, or nil if this entry carries
// no inclusion promise.
func (e *TransparencyLogEntry) SignedEntryTimestamp() []byte {
	return e.pb.GetInclusionPromise().GetSignedEntryTimestamp()
}

func (e *TransparencyLogEntry) HasInclusionPromise() bool {
	return len(e.SignedEntryTimestamp()) > 0
}

func (e *TransparencyLogEntry) HasInclusionProof() bool {
	return e.pb.GetInclusionProof() != nil
}

// InclusionProof is the Merkle audit-path data; callers must check
// HasInclusionProof first.
type InclusionProof struct {
	LogIndex           int64
	RootHash           []byte
	TreeSize           int64
	Hashes             [][]byte
	CheckpointEnvelope string
}

func (e *TransparencyLogEntry) InclusionProof() *InclusionProof {
	proof := e.pb.GetInclusionProof()
	if proof == nil {
		return nil
	}
	return &InclusionProof{
		LogIndex:           proof.GetLogIndex(),
		RootHash:           proof.GetRootHash(),
		TreeSize:           proof.GetTreeSize(),
		Hashes:             proof.GetHashes(),
		CheckpointEnvelope: proof.GetCheckpoint().GetEnvelope(),
	}
}

// Key identifies a (log_id, log_index) pair, used to reject duplicate
// transparency-log entries within a single bundle (spec step: "Reject
// duplicate log entries").
func (e *TransparencyLogEntry) Key() string {
	return fmt.Sprintf("%s:%d", e.LogID(), e.LogIndex())
}
