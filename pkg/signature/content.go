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

package signature

import (
	"bytes"
	"crypto"
	"fmt"

	sigstoresig "github.com/sigstore/sigstore/pkg/signature"
	"github.com/sigstore/sigstore/pkg/signature/options"
)

// Content is the signed payload half of a bundle: either a raw message
// digest (blob signing) or a DSSE envelope wrapping an in-toto statement
// (attestation signing). Both shapes verify against the same
// sigstore/sigstore Verifier, just over different signed bytes.
type Content interface {
	// Signature returns the raw signature bytes to verify.
	Signature() []byte
	// Verify checks Signature() against verifier using this content's
	// signed-bytes convention.
	Verify(verifier sigstoresig.Verifier) error
}

// MessageSignatureContent is a bundle's messageSignature: a digest of the
// signed artifact plus a signature computed directly over that digest.
type MessageSignatureContent struct {
	HashAlgorithm crypto.Hash
	Digest        []byte
	Sig           []byte
}

func (m *MessageSignatureContent) Signature() []byte { return m.Sig }

func (m *MessageSignatureContent) Verify(verifier sigstoresig.Verifier) error {
	return verifier.VerifySignature(bytes.NewReader(m.Sig), nil,
		options.WithDigest(m.Digest), options.WithCryptoSignerOpts(m.HashAlgorithm))
}

// DSSEContent is a bundle's dsseEnvelope: an in-toto statement payload and
// one signature over its Pre-Authentication Encoding.
type DSSEContent struct {
	PayloadType string
	Payload     []byte
	Sig         []byte
}

func (d *DSSEContent) Signature() []byte { return d.Sig }

func (d *DSSEContent) Verify(verifier sigstoresig.Verifier) error {
	pae := PAE(d.PayloadType, d.Payload)
	return verifier.VerifySignature(bytes.NewReader(d.Sig), bytes.NewReader(pae))
}

// EnvelopeSigningBytes returns exactly the bytes a DSSE signer signs, for
// callers (such as the in-toto statement digest check) that need them
// outside of a Verify call.
func EnvelopeSigningBytes(d *DSSEContent) []byte {
	return PAE(d.PayloadType, d.Payload)
}

var _ Content = (*MessageSignatureContent)(nil)
var _ Content = (*DSSEContent)(nil)

// ErrUnsupportedContent is returned when a bundle names neither a message
// signature nor a DSSE envelope.
var ErrUnsupportedContent = fmt.Errorf("bundle contains neither a message signature nor a DSSE envelope")
