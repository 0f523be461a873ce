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

package verify

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/sigstore/bundle-verifier/pkg/certificate"
)

// CertificateIdentity is the certificate-identity policy of spec step 7: the
// leaf must carry a SAN matching SubjectAlternativeName and, for every
// requested OID, an extension whose value matches: the decoded string when
// the extension value is a DER-encoded ASN.1 string, its raw bytes otherwise.
type CertificateIdentity struct {
	SubjectAlternativeName string
	Extensions             map[string]string // dotted OID -> expected value
}

// Matches reports whether leaf satisfies id.
func (id CertificateIdentity) Matches(leaf *x509.Certificate) error {
	if id.SubjectAlternativeName != "" {
		found := false
		for _, san := range certificate.SubjectAlternativeNames(leaf) {
			if san == id.SubjectAlternativeName {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("certificate has no SAN matching %q", id.SubjectAlternativeName)
		}
	}

	for oidStr, want := range id.Extensions {
		oid, err := parseOID(oidStr)
		if err != nil {
			return fmt.Errorf("parsing policy OID %q: %w", oidStr, err)
		}
		got, ok := extensionValue(leaf, oid)
		if !ok {
			return fmt.Errorf("certificate missing required extension %s", oidStr)
		}
		if got != want {
			return fmt.Errorf("certificate extension %s has value %q, want %q", oidStr, got, want)
		}
	}

	return nil
}

func extensionValue(cert *x509.Certificate, oid asn1.ObjectIdentifier) (string, bool) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oid) {
			var s string
			if rest, err := asn1.Unmarshal(ext.Value, &s); err == nil && len(rest) == 0 {
				return s, true
			}
			return string(ext.Value), true
		}
	}
	return "", false
}

func parseOID(s string) (asn1.ObjectIdentifier, error) {
	var oid asn1.ObjectIdentifier
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if i == start {
				return nil, fmt.Errorf("empty OID component in %q", s)
			}
			var n int
			for _, c := range s[start:i] {
				if c < '0' || c > '9' {
					return nil, fmt.Errorf("non-numeric OID component in %q", s)
				}
				n = n*10 + int(c-'0')
			}
			oid = append(oid, n)
			start = i + 1
		}
	}
	if len(oid) < 2 {
		return nil, fmt.Errorf("OID %q has fewer than two components", s)
	}
	return oid, nil
}
