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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
	protorekor "github.com/sigstore/protobuf-specs/gen/pb-go/rekor/v1"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	cryptosig "github.com/sigstore/bundle-verifier/pkg/signature"
)

func selfSignedLeafForBody(t *testing.T) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "body-test-leaf"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func hashedRekordEntry(t *testing.T, cert *x509.Certificate, sig, digest []byte) *bundle.TransparencyLogEntry {
	t.Helper()
	spec := hashedRekordSpecV001{}
	spec.Data.Hash.Algorithm = "sha256"
	spec.Data.Hash.Value = hex.EncodeToString(digest)
	spec.Signature.Content = base64.StdEncoding.EncodeToString(sig)
	spec.Signature.PublicKey.Content = base64.StdEncoding.EncodeToString(cert.Raw)

	specJSON, err := json.Marshal(spec)
	require.NoError(t, err)

	env := envelope{APIVersion: "0.0.1", Kind: "hashedrekord", Spec: specJSON}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	pb := &protorekor.TransparencyLogEntry{
		LogId:             &protocommon.LogId{KeyId: []byte{0x01, 0x02, 0x03, 0x04}},
		KindVersion:       &protorekor.KindVersion{Kind: "hashedrekord", Version: "0.0.1"},
		CanonicalizedBody: body,
	}
	entry, err := bundle.NewTransparencyLogEntry(pb)
	require.NoError(t, err)
	return entry
}

func TestVerifyBody_HashedRekord(t *testing.T) {
	cert, _ := selfSignedLeafForBody(t)
	digest := []byte("0123456789abcdef0123456789abcdef01234567890abcdef0123456789abcd")[:32]
	sig := []byte("a-signature")

	entry := hashedRekordEntry(t, cert, sig, digest)
	sigContent := bundle.MessageSignatureContent{
		HashAlgorithm: protocommon.HashAlgorithm_SHA2_256,
		Digest:        digest,
		Signature:     sig,
	}
	verContent := bundle.CertificateChainContent{Certificates: []*x509.Certificate{cert}}

	err := VerifyBody(entry, sigContent, verContent)
	require.NoError(t, err)
}

func TestVerifyBody_HashedRekord_SignatureMismatch(t *testing.T) {
	cert, _ := selfSignedLeafForBody(t)
	digest := make([]byte, 32)
	sig := []byte("a-signature")

	entry := hashedRekordEntry(t, cert, sig, digest)
	sigContent := bundle.MessageSignatureContent{
		Digest:    digest,
		Signature: []byte("different-signature"),
	}
	verContent := bundle.CertificateChainContent{Certificates: []*x509.Certificate{cert}}

	err := VerifyBody(entry, sigContent, verContent)
	require.Error(t, err)
}

func TestVerifyBody_HashedRekord_CertMismatch(t *testing.T) {
	cert, _ := selfSignedLeafForBody(t)
	otherCert, _ := selfSignedLeafForBody(t)
	digest := make([]byte, 32)
	sig := []byte("a-signature")

	entry := hashedRekordEntry(t, cert, sig, digest)
	sigContent := bundle.MessageSignatureContent{Digest: digest, Signature: sig}
	verContent := bundle.CertificateChainContent{Certificates: []*x509.Certificate{otherCert}}

	err := VerifyBody(entry, sigContent, verContent)
	require.Error(t, err)
}

func TestVerifyBody_WrongContentType(t *testing.T) {
	cert, _ := selfSignedLeafForBody(t)
	digest := make([]byte, 32)
	sig := []byte("a-signature")
	entry := hashedRekordEntry(t, cert, sig, digest)

	dsse := bundle.DSSEContent{PayloadType: cryptosig.DSSEPayloadType, Payload: []byte("x"), Signatures: [][]byte{sig}}
	verContent := bundle.CertificateChainContent{Certificates: []*x509.Certificate{cert}}

	err := VerifyBody(entry, dsse, verContent)
	require.Error(t, err)
}

func TestVerifyBody_KindVersionMismatch(t *testing.T) {
	cert, _ := selfSignedLeafForBody(t)
	digest := make([]byte, 32)
	sig := []byte("a-signature")
	entry := hashedRekordEntry(t, cert, sig, digest)

	sigContent := bundle.MessageSignatureContent{Digest: digest, Signature: sig}
	verContent := bundle.CertificateChainContent{Certificates: []*x509.Certificate{cert}}

	// Tamper the entry's declared kind so it no longer matches the body.
	badPB := &protorekor.TransparencyLogEntry{
		LogId:             &protocommon.LogId{KeyId: []byte{0x01, 0x02, 0x03, 0x04}},
		KindVersion:       &protorekor.KindVersion{Kind: "intoto", Version: "0.0.2"},
		CanonicalizedBody: entry.CanonicalizedBody(),
	}
	badEntry, err := bundle.NewTransparencyLogEntry(badPB)
	require.NoError(t, err)

	err = VerifyBody(badEntry, sigContent, verContent)
	require.Error(t, err)
}

func TestHashAlgFromName(t *testing.T) {
	require.Equal(t, crypto.SHA384, hashAlgFromName("sha384"))
	require.Equal(t, crypto.SHA256, hashAlgFromName("sha256"))
	require.Equal(t, crypto.SHA256, hashAlgFromName("unknown"))
}

func TestDecodeHexOrBase64(t *testing.T) {
	b, err := decodeHexOrBase64(hex.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), b)

	b, err = decodeHexOrBase64(base64.StdEncoding.EncodeToString([]byte("not-hex!!")))
	require.NoError(t, err)
	require.Equal(t, []byte("not-hex!!"), b)
}
