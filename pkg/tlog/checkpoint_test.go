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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckpoint(t *testing.T) {
	envelope := "rekor.example - 12345\n10\n3q2+7w==\n\n— rekor.example abcdSIGNATURE==\n"

	cp, err := ParseCheckpoint(envelope)
	require.NoError(t, err)
	assert.Equal(t, "rekor.example - 12345", cp.Origin)
	assert.Equal(t, int64(10), cp.Size)
}

func TestParseCheckpoint_MissingSeparator(t *testing.T) {
	_, err := ParseCheckpoint("no separator here")
	assert.Error(t, err)
}

func TestParseCheckpoint_TooFewBodyLines(t *testing.T) {
	_, err := ParseCheckpoint("origin\n10\n\n— x y\n")
	assert.Error(t, err)
}

func TestVerifyCheckpointSignature_NoMatchingSignature(t *testing.T) {
	envelope := "origin\n10\nbase64hash==\n\n— nobody here==\n"
	err := VerifyCheckpointSignature(envelope, []byte{0x01, 0x02, 0x03, 0x04}, nil)
	assert.Error(t, err)
}
