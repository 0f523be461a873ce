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
	"crypto/sha256"
	"testing"

	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
	protorekor "github.com/sigstore/protobuf-specs/gen/pb-go/rekor/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
)

func entryWithInclusionProof(t *testing.T, body []byte, logIndex, treeSize int64, rootHash []byte, hashes [][]byte) *bundle.TransparencyLogEntry {
	t.Helper()
	pb := &protorekor.TransparencyLogEntry{
		LogIndex:          0,
		LogId:             &protocommon.LogId{KeyId: []byte{0x01, 0x02, 0x03, 0x04}},
		KindVersion:       &protorekor.KindVersion{Kind: "hashedrekord", Version: "0.0.1"},
		IntegratedTime:    0,
		CanonicalizedBody: body,
		InclusionProof: &protorekor.InclusionProof{
			LogIndex: logIndex,
			RootHash: rootHash,
			TreeSize: treeSize,
			Hashes:   hashes,
		},
	}
	entry, err := bundle.NewTransparencyLogEntry(pb)
	require.NoError(t, err)
	return entry
}

// TestVerifyInclusionProof_SingleLeafTree encodes the RFC 6962 base case:
// a tree of size 1 has its single leaf's hash as its root, with an empty
// audit path.
func TestVerifyInclusionProof_SingleLeafTree(t *testing.T) {
	leafData := []byte{0x00}
	h := sha256.New()
	h.Write([]byte{0x00}) // RFC 6962 leaf hash prefix
	h.Write(leafData)
	rootHash := h.Sum(nil)

	entry := entryWithInclusionProof(t, leafData, 0, 1, rootHash, nil)
	err := VerifyInclusionProof(entry, entry.LogIDBytes(), nil)
	assert.NoError(t, err)
}

func TestVerifyInclusionProof_WrongRootHash(t *testing.T) {
	leafData := []byte{0x00}
	entry := entryWithInclusionProof(t, leafData, 0, 1, []byte("not the root"), nil)
	err := VerifyInclusionProof(entry, entry.LogIDBytes(), nil)
	assert.Error(t, err)
}

func TestVerifyInclusionProof_NoProof(t *testing.T) {
	pb := &protorekor.TransparencyLogEntry{
		LogId:             &protocommon.LogId{KeyId: []byte{0x01, 0x02, 0x03, 0x04}},
		KindVersion:       &protorekor.KindVersion{Kind: "hashedrekord", Version: "0.0.1"},
		CanonicalizedBody: []byte("body"),
	}
	entry, err := bundle.NewTransparencyLogEntry(pb)
	require.NoError(t, err)

	err = VerifyInclusionProof(entry, entry.LogIDBytes(), nil)
	assert.Error(t, err)
}

func TestNewTransparencyLogEntry_RejectsOversizedAuditPath(t *testing.T) {
	// One more than the 64-hash cap bundle.NewTransparencyLogEntry enforces.
	hashes := make([][]byte, 65)
	for i := range hashes {
		hashes[i] = []byte{byte(i)}
	}
	pb := &protorekor.TransparencyLogEntry{
		LogId:             &protocommon.LogId{KeyId: []byte{0x01, 0x02, 0x03, 0x04}},
		KindVersion:       &protorekor.KindVersion{Kind: "hashedrekord", Version: "0.0.1"},
		CanonicalizedBody: []byte("body"),
		InclusionProof: &protorekor.InclusionProof{
			LogIndex: 0,
			RootHash: []byte("root"),
			TreeSize: 100,
			Hashes:   hashes,
		},
	}
	_, err := bundle.NewTransparencyLogEntry(pb)
	assert.Error(t, err)
}
