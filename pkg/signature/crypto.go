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

// Package signature verifies the cryptographic material in a bundle: the
// message-signature or DSSE envelope against the signing certificate or key,
// using sigstore/sigstore's key-agnostic Verifier abstraction.
package signature

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"fmt"

	"github.com/sigstore/sigstore/pkg/signature"
	"github.com/sigstore/sigstore/pkg/signature/options"
)

// LoadVerifier builds a signature.Verifier for pub, picking the hash
// algorithm sigstore expects for that key type: SHA-256 for ECDSA/RSA,
// and undigested for Ed25519 (ed25519.Verify hashes internally).
func LoadVerifier(pub crypto.PublicKey) (signature.Verifier, error) {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return signature.LoadECDSAVerifier(pub.(*ecdsa.PublicKey), crypto.SHA256)
	case *rsa.PublicKey:
		return signature.LoadRSAPKCS1v15Verifier(pub.(*rsa.PublicKey), crypto.SHA256)
	case ed25519.PublicKey:
		return signature.LoadED25519Verifier(pub.(ed25519.PublicKey))
	default:
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
}

// VerifyMessageSignature checks sig over message using pub, hashing message
// first unless pub is an Ed25519 key.
func VerifyMessageSignature(pub crypto.PublicKey, message, sig []byte) error {
	verifier, err := LoadVerifier(pub)
	if err != nil {
		return err
	}
	if _, isEd25519 := pub.(ed25519.PublicKey); isEd25519 {
		return verifier.VerifySignature(bytes.NewReader(sig), bytes.NewReader(message), options.WithCryptoSignerOpts(crypto.Hash(0)))
	}
	return verifier.VerifySignature(bytes.NewReader(sig), bytes.NewReader(message))
}

// VerifyDigestSignature checks sig over a precomputed digest using pub.
func VerifyDigestSignature(pub crypto.PublicKey, hashAlg crypto.Hash, digest, sig []byte) error {
	verifier, err := LoadVerifier(pub)
	if err != nil {
		return err
	}
	return verifier.VerifySignature(bytes.NewReader(sig), nil, options.WithDigest(digest), options.WithCryptoSignerOpts(hashAlg))
}

// ComputeDigest hashes data with hashAlg, failing if the algorithm is not
// linked into the binary.
func ComputeDigest(hashAlg crypto.Hash, data []byte) ([]byte, error) {
	if !hashAlg.Available() {
		return nil, fmt.Errorf("hash algorithm %s is not available", hashAlg)
	}
	h := hashAlg.New()
	if _, err := h.Write(data); err != nil {
		return nil, fmt.Errorf("hashing data: %w", err)
	}
	return h.Sum(nil), nil
}

// ConstantTimeEqual reports whether a and b are identical, in time
// independent of where they first differ.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// LeafCertificatePublicKey extracts the signing key out of a leaf
// certificate, rejecting key types this verifier cannot check signatures
// against before the caller wastes a chain-verification pass on it.
func LeafCertificatePublicKey(cert *x509.Certificate) (crypto.PublicKey, error) {
	switch cert.PublicKey.(type) {
	case *ecdsa.PublicKey, *rsa.PublicKey, ed25519.PublicKey:
		return cert.PublicKey, nil
	default:
		return nil, fmt.Errorf("certificate public key type %T is not an accepted signing key type", cert.PublicKey)
	}
}
