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
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"

	bundlepkg "github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/signature"
)

// envelope is the common shape of a canonicalized tlog entry body:
// {apiVersion, kind, spec}, with spec left raw until the (kind, version) is known.
type envelope struct {
	APIVersion string          `json:"apiVersion"`
	Kind       string          `json:"kind"`
	Spec       json.RawMessage `json:"spec"`
}

type hashedRekordSpecV001 struct {
	Data struct {
		Hash struct {
			Algorithm string `json:"algorithm"`
			Value     string `json:"value"`
		} `json:"hash"`
	} `json:"data"`
	Signature struct {
		Content   string `json:"content"`
		PublicKey struct {
			Content string `json:"content"`
		} `json:"publicKey"`
	} `json:"signature"`
}

type intotoSpecV002 struct {
	Content struct {
		Envelope struct {
			PayloadType string `json:"payloadType"`
			Payload     string `json:"payload,omitempty"`
			Signatures  []struct {
				Sig       string `json:"sig"`
				PublicKey string `json:"publicKey"`
			} `json:"signatures"`
		} `json:"envelope"`
		PayloadHash struct {
			Algorithm string `json:"alg"`
			Value     string `json:"value"`
		} `json:"payloadHash"`
	} `json:"content"`
}

type dsseSpecV001 struct {
	PayloadHash struct {
		Algorithm string `json:"alg"`
		Value     string `json:"value"`
	} `json:"payloadHash"`
	Signatures []struct {
		Signature string `json:"signature"`
		Verifier  string `json:"verifier"`
	} `json:"signatures"`
	EnvelopeHash struct {
		Algorithm string `json:"alg"`
		Value     string `json:"value"`
	} `json:"envelopeHash"`
}

// VerifyBody parses entry's canonicalized body per its declared (kind,
// version) and checks that its embedded digests, signature and public key
// agree with the bundle's own signature content and verification content.
func VerifyBody(entry *bundlepkg.TransparencyLogEntry, sigContent bundlepkg.SignatureContent, verContent bundlepkg.VerificationContent) error {
	var env envelope
	if err := json.Unmarshal(entry.CanonicalizedBody(), &env); err != nil {
		return fmt.Errorf("unmarshaling tlog entry body: %w", err)
	}
	if env.APIVersion != entry.Version() || env.Kind != entry.Kind() {
		return fmt.Errorf("body kind/version %s/%s does not match entry kind/version %s/%s",
			env.Kind, env.APIVersion, entry.Kind(), entry.Version())
	}

	switch {
	case env.Kind == "hashedrekord" && env.APIVersion == "0.0.1":
		return verifyHashedRekordV001(env.Spec, sigContent, verContent)
	case env.Kind == "intoto" && env.APIVersion == "0.0.2":
		return verifyIntotoV002(env.Spec, sigContent, verContent)
	case env.Kind == "dsse" && env.APIVersion == "0.0.1":
		return verifyDSSEV001(env.Spec, sigContent, verContent)
	default:
		return fmt.Errorf("unsupported tlog entry kind/version: %s/%s", env.Kind, env.APIVersion)
	}
}

func verifyHashedRekordV001(raw json.RawMessage, sigContent bundlepkg.SignatureContent, verContent bundlepkg.VerificationContent) error {
	msgSig, ok := sigContent.(bundlepkg.MessageSignatureContent)
	if !ok {
		return fmt.Errorf("hashedrekord body requires a message signature, got %T", sigContent)
	}

	var spec hashedRekordSpecV001
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("unmarshaling hashedrekord spec: %w", err)
	}

	bodySig, err := base64.StdEncoding.DecodeString(spec.Signature.Content)
	if err != nil {
		return fmt.Errorf("decoding body signature: %w", err)
	}
	if !signature.ConstantTimeEqual(bodySig, msgSig.Signature) {
		return fmt.Errorf("body signature does not match bundle signature")
	}

	bodyDigest, err := decodeHexOrBase64(spec.Data.Hash.Value)
	if err != nil {
		return fmt.Errorf("decoding body digest: %w", err)
	}
	if !signature.ConstantTimeEqual(bodyDigest, msgSig.Digest) {
		return fmt.Errorf("body digest does not match bundle message digest")
	}

	return verifyPublicKeyOrCertMatches(spec.Signature.PublicKey.Content, verContent)
}

func verifyIntotoV002(raw json.RawMessage, sigContent bundlepkg.SignatureContent, verContent bundlepkg.VerificationContent) error {
	dsse, ok := sigContent.(bundlepkg.DSSEContent)
	if !ok {
		return fmt.Errorf("intoto body requires a DSSE envelope, got %T", sigContent)
	}

	var spec intotoSpecV002
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("unmarshaling intoto spec: %w", err)
	}

	if len(spec.Content.Envelope.Signatures) != len(dsse.Signatures) {
		return fmt.Errorf("body signature count %d does not match bundle signature count %d",
			len(spec.Content.Envelope.Signatures), len(dsse.Signatures))
	}

	bodySig, err := base64.StdEncoding.DecodeString(spec.Content.Envelope.Signatures[0].Sig)
	if err != nil {
		return fmt.Errorf("decoding body signature: %w", err)
	}
	if !signature.ConstantTimeEqual(bodySig, dsse.Signatures[0]) {
		return fmt.Errorf("body signature does not match bundle signature")
	}

	payloadDigest, err := signature.ComputeDigest(hashAlgFromName(spec.Content.PayloadHash.Algorithm), dsse.Payload)
	if err != nil {
		return fmt.Errorf("hashing DSSE payload: %w", err)
	}
	bodyDigest, err := decodeHexOrBase64(spec.Content.PayloadHash.Value)
	if err != nil {
		return fmt.Errorf("decoding body payload hash: %w", err)
	}
	if !signature.ConstantTimeEqual(payloadDigest, bodyDigest) {
		return fmt.Errorf("body payload hash does not match bundle DSSE payload")
	}

	return verifyPublicKeyOrCertMatches(spec.Content.Envelope.Signatures[0].PublicKey, verContent)
}

func verifyDSSEV001(raw json.RawMessage, sigContent bundlepkg.SignatureContent, verContent bundlepkg.VerificationContent) error {
	dsse, ok := sigContent.(bundlepkg.DSSEContent)
	if !ok {
		return fmt.Errorf("dsse body requires a DSSE envelope, got %T", sigContent)
	}

	var spec dsseSpecV001
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("unmarshaling dsse spec: %w", err)
	}

	if len(spec.Signatures) != len(dsse.Signatures) {
		return fmt.Errorf("body signature count %d does not match bundle signature count %d",
			len(spec.Signatures), len(dsse.Signatures))
	}

	bodySig, err := base64.StdEncoding.DecodeString(spec.Signatures[0].Signature)
	if err != nil {
		return fmt.Errorf("decoding body signature: %w", err)
	}
	if !signature.ConstantTimeEqual(bodySig, dsse.Signatures[0]) {
		return fmt.Errorf("body signature does not match bundle signature")
	}

	payloadDigest, err := signature.ComputeDigest(hashAlgFromName(spec.PayloadHash.Algorithm), dsse.Payload)
	if err != nil {
		return fmt.Errorf("hashing DSSE payload: %w", err)
	}
	bodyPayloadDigest, err := decodeHexOrBase64(spec.PayloadHash.Value)
	if err != nil {
		return fmt.Errorf("decoding body payload hash: %w", err)
	}
	if !signature.ConstantTimeEqual(payloadDigest, bodyPayloadDigest) {
		return fmt.Errorf("body payload hash does not match bundle DSSE payload")
	}

	envelopeBytes := signature.EnvelopeSigningBytes(&signature.DSSEContent{PayloadType: dsse.PayloadType, Payload: dsse.Payload})
	envelopeDigest, err := signature.ComputeDigest(hashAlgFromName(spec.EnvelopeHash.Algorithm), envelopeBytes)
	if err != nil {
		return fmt.Errorf("hashing DSSE envelope: %w", err)
	}
	bodyEnvelopeDigest, err := decodeHexOrBase64(spec.EnvelopeHash.Value)
	if err != nil {
		return fmt.Errorf("decoding body envelope hash: %w", err)
	}
	if !signature.ConstantTimeEqual(envelopeDigest, bodyEnvelopeDigest) {
		return fmt.Errorf("body envelope hash does not match bundle DSSE envelope")
	}

	return verifyPublicKeyOrCertMatches(spec.Signatures[0].Verifier, verContent)
}

// verifyPublicKeyOrCertMatches compares bodyKeyPEM (a PEM or base64-DER
// public key/certificate) against the bundle's signing certificate,
// normalizing both sides to SPKI DER before comparing. An empty bodyKeyPEM,
// or a bundle identified by a public-key hint, is accepted without a
// comparison.
func verifyPublicKeyOrCertMatches(bodyKeyPEM string, verContent bundlepkg.VerificationContent) error {
	if bodyKeyPEM == "" {
		return nil
	}
	bodyDER, err := normalizeToDER(bodyKeyPEM)
	if err != nil {
		return fmt.Errorf("normalizing body key: %w", err)
	}
	if cert, err := x509.ParseCertificate(bodyDER); err == nil {
		bodyDER = cert.RawSubjectPublicKeyInfo
	}

	var bundleDER []byte
	switch vc := verContent.(type) {
	case bundlepkg.CertificateChainContent:
		bundleDER = vc.Leaf().RawSubjectPublicKeyInfo
	case bundlepkg.CertificateContent:
		bundleDER = vc.Certificate.RawSubjectPublicKeyInfo
	case bundlepkg.PublicKeyContent:
		return nil
	default:
		return fmt.Errorf("unsupported verification content type %T", verContent)
	}

	if !signature.ConstantTimeEqual(bodyDER, bundleDER) {
		return fmt.Errorf("body public key/certificate does not match bundle signing identity")
	}
	return nil
}

// normalizeToDER accepts either a PEM-encoded key/certificate or a raw
// base64-encoded DER blob (as hashedrekord/intoto bodies embed them) and
// returns the DER bytes.
func normalizeToDER(pemOrB64 string) ([]byte, error) {
	if block, _ := pem.Decode([]byte(pemOrB64)); block != nil {
		return block.Bytes, nil
	}
	return base64.StdEncoding.DecodeString(pemOrB64)
}

func decodeHexOrBase64(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func hashAlgFromName(name string) crypto.Hash {
	switch name {
	case "sha384", "SHA2_384":
		return crypto.SHA384
	default:
		return crypto.SHA256
	}
}
