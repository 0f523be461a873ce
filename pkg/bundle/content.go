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
	"crypto/x509"
	"fmt"

	protobundle "github.com/sigstore/protobuf-specs/gen/pb-go/bundle/v1"
	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
)

// VerificationContent is the closed union of ways a bundle names its signing
// key: a full certificate chain, a single leaf certificate, or an opaque
// public-key hint. Exactly one case is populated on any bundle.
type VerificationContent interface {
	isVerificationContent()
}

// CertificateChainContent is the v0.1/v0.2 case: a leaf-first certificate list.
type CertificateChainContent struct {
	Certificates []*x509.Certificate
}

func (CertificateChainContent) isVerificationContent() {}

// Leaf returns the signing certificate, always the first entry.
func (c CertificateChainContent) Leaf() *x509.Certificate {
	if len(c.Certificates) == 0 {
		return nil
	}
	return c.Certificates[0]
}

// CertificateContent is the v0.3 case: a single leaf certificate with no
// embedded intermediates (the issuer chain comes from trust material).
type CertificateContent struct {
	Certificate *x509.Certificate
}

func (CertificateContent) isVerificationContent() {}

// PublicKeyContent is the raw-key case: the signer is identified by an
// opaque hint the caller's trust material resolves to a key.
type PublicKeyContent struct {
	Hint string
}

func (PublicKeyContent) isVerificationContent() {}

// ParseVerificationContent extracts and parses whichever verification
// material case vm populates.
func ParseVerificationContent(vm *protobundle.VerificationMaterial) (VerificationContent, error) {
	switch content := vm.GetContent().(type) {
	case *protobundle.VerificationMaterial_X509CertificateChain:
		certs := content.X509CertificateChain.GetCertificates()
		if len(certs) == 0 {
			return nil, fmt.Errorf("x509 certificate chain is empty")
		}
		parsed := make([]*x509.Certificate, 0, len(certs))
		for i, c := range certs {
			cert, err := x509.ParseCertificate(c.GetRawBytes())
			if err != nil {
				return nil, fmt.Errorf("parsing certificate %d: %w", i, err)
			}
			parsed = append(parsed, cert)
		}
		return CertificateChainContent{Certificates: parsed}, nil

	case *protobundle.VerificationMaterial_Certificate:
		cert, err := x509.ParseCertificate(content.Certificate.GetRawBytes())
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		return CertificateContent{Certificate: cert}, nil

	case *protobundle.VerificationMaterial_PublicKey:
		hint := content.PublicKey.GetHint()
		if hint == "" {
			return nil, fmt.Errorf("public key verification material has empty hint")
		}
		return PublicKeyContent{Hint: hint}, nil

	default:
		return nil, fmt.Errorf("verification material has no recognized content")
	}
}

// SignatureContent is the closed union of signed-payload shapes: a raw
// message digest+signature, or a DSSE envelope.
type SignatureContent interface {
	isSignatureContent()
}

// MessageSignatureContent is the blob-signing case.
type MessageSignatureContent struct {
	HashAlgorithm protocommon.HashAlgorithm
	Digest        []byte
	Signature     []byte
}

func (MessageSignatureContent) isSignatureContent() {}

// DSSEContent is the attestation-signing case: an in-toto statement wrapped
// in a DSSE envelope, with possibly more than one signature.
type DSSEContent struct {
	PayloadType string
	Payload     []byte
	Signatures  [][]byte
}

func (DSSEContent) isSignatureContent() {}

// ParseSignatureContent extracts whichever content case the bundle populates.
func ParseSignatureContent(b *protobundle.Bundle) (SignatureContent, error) {
	switch content := b.GetContent().(type) {
	case *protobundle.Bundle_MessageSignature:
		ms := content.MessageSignature
		return MessageSignatureContent{
			HashAlgorithm: ms.GetMessageDigest().GetAlgorithm(),
			Digest:        ms.GetMessageDigest().GetDigest(),
			Signature:     ms.GetSignature(),
		}, nil

	case *protobundle.Bundle_DsseEnvelope:
		env := content.DsseEnvelope
		sigs := env.GetSignatures()
		if len(sigs) == 0 {
			return nil, fmt.Errorf("DSSE envelope has no signatures")
		}
		raw := make([][]byte, 0, len(sigs))
		for _, s := range sigs {
			raw = append(raw, s.GetSig())
		}
		return DSSEContent{
			PayloadType: env.GetPayloadType(),
			Payload:     env.GetPayload(),
			Signatures:  raw,
		}, nil

	default:
		return nil, fmt.Errorf("bundle has no recognized signature content")
	}
}
