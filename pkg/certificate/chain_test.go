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

package certificate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/bundle-verifier/pkg/root"
)

func issueChain(t *testing.T) (leaf, intermediate, ca *x509.Certificate) {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	intKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	intTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "intermediate"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	intDER, err := x509.CreateCertificate(rand.Reader, intTmpl, caTmpl, &intKey.PublicKey, caKey)
	require.NoError(t, err)
	intCert, err := x509.ParseCertificate(intDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "leaf"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, intTmpl, &leafKey.PublicKey, intKey)
	require.NoError(t, err)
	leafCert, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return leafCert, intCert, caCert
}

func TestVerifyLeafCertificate(t *testing.T) {
	leaf, intermediate, ca := issueChain(t)

	authorities := []root.CertificateAuthority{
		{
			Root:                ca,
			Intermediates:       []*x509.Certificate{intermediate},
			ValidityPeriodStart: time.Now().Add(-2 * time.Hour),
			ValidityPeriodEnd:   time.Now().Add(2 * time.Hour),
		},
	}

	matched, err := VerifyLeafCertificate(leaf, time.Now(), authorities)
	require.NoError(t, err)
	assert.Equal(t, ca, matched.Root)
}

func TestVerifyLeafCertificate_NoAuthorityValidAtTime(t *testing.T) {
	leaf, intermediate, ca := issueChain(t)

	authorities := []root.CertificateAuthority{
		{
			Root:                ca,
			Intermediates:       []*x509.Certificate{intermediate},
			ValidityPeriodStart: time.Now().Add(-2 * time.Hour),
			ValidityPeriodEnd:   time.Now().Add(-time.Hour),
		},
	}

	_, err := VerifyLeafCertificate(leaf, time.Now(), authorities)
	assert.Error(t, err)
}

func TestVerifyLeafCertificate_UntrustedRoot(t *testing.T) {
	leaf, intermediate, _ := issueChain(t)
	_, _, otherCA := issueChain(t)

	authorities := []root.CertificateAuthority{
		{
			Root:                otherCA,
			Intermediates:       []*x509.Certificate{intermediate},
			ValidityPeriodStart: time.Now().Add(-2 * time.Hour),
			ValidityPeriodEnd:   time.Now().Add(2 * time.Hour),
		},
	}

	_, err := VerifyLeafCertificate(leaf, time.Now(), authorities)
	assert.Error(t, err)
}

func TestValidateBasicConstraints_LeafIsCA(t *testing.T) {
	_, intermediate, ca := issueChain(t)
	err := validateBasicConstraints([][]*x509.Certificate{{intermediate, ca}})
	assert.Error(t, err)
}
