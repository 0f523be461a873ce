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

// Package certificate parses X.509 certificates used as Sigstore signing
// identities: it extracts SANs, extended key usages, the embedded SCT
// extension, and the Fulcio issuer extensions, and validates a certificate
// chain against trusted root material at a given point in time.
package certificate

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	fulciocert "github.com/sigstore/fulcio/pkg/certificate"
)

// OIDSCTList is the X.509v3 extension OID carrying the embedded
// SignedCertificateTimestamp list (RFC 6962 §3.3).
var OIDSCTList = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 4, 2}

// Extensions is the subset of a Fulcio-issued certificate's extensions this
// verifier cares about, layered on top of sigstore/fulcio's own extension
// parser so that v1 (deprecated) and v2 OIDC-issuer extensions are both
// normalized to a single field.
type Extensions struct {
	fulciocert.Extensions

	// RawSCTList is the DER contents of the embedded SCT-list extension, or
	// nil if the certificate carries none.
	RawSCTList []byte
}

// ParseExtensions extracts the Fulcio identity extensions and the embedded
// SCT list from an already-parsed certificate.
func ParseExtensions(cert *x509.Certificate) (Extensions, error) {
	fext, err := fulciocert.ParseExtensions(cert.Extensions)
	if err != nil {
		return Extensions{}, fmt.Errorf("parsing fulcio extensions: %w", err)
	}

	ext := Extensions{Extensions: fext}
	for _, e := range cert.Extensions {
		if e.Id.Equal(OIDSCTList) {
			ext.RawSCTList = e.Value
			break
		}
	}
	return ext, nil
}

// SubjectAlternativeNames returns the certificate's DNS, RFC822 (email),
// URI and IP-address SAN values as strings: DNS names and email addresses
// verbatim, URIs and IP addresses via String(). OtherName SANs are not
// returned, since the stdlib parser does not decode them. Fulcio-issued
// certs typically carry exactly one SAN.
func SubjectAlternativeNames(cert *x509.Certificate) []string {
	sans := make([]string, 0, len(cert.DNSNames)+len(cert.EmailAddresses)+len(cert.URIs)+len(cert.IPAddresses))
	sans = append(sans, cert.DNSNames...)
	sans = append(sans, cert.EmailAddresses...)
	for _, u := range cert.URIs {
		sans = append(sans, u.String())
	}
	for _, ip := range cert.IPAddresses {
		sans = append(sans, ip.String())
	}
	return sans
}

// HasExtendedKeyUsage reports whether the certificate's EKU list includes usage.
func HasExtendedKeyUsage(cert *x509.Certificate, usage x509.ExtKeyUsage) bool {
	for _, u := range cert.ExtKeyUsage {
		if u == usage {
			return true
		}
	}
	return false
}
