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
	"crypto/x509"
	"fmt"
	"time"

	"github.com/sigstore/bundle-verifier/pkg/root"
)

// maxChainLength bounds chain construction so a hostile bundle cannot force
// unbounded work (spec §5): Sigstore chains are leaf + at most one
// intermediate + root in practice, but a generous cap avoids rejecting
// legitimate longer chains.
const maxChainLength = 10

// VerifyLeafCertificate builds a path from leaf to one of the trusted
// certificate authorities and validates it at checkTime. It returns the
// authority the chain was built against.
func VerifyLeafCertificate(leaf *x509.Certificate, checkTime time.Time, authorities []root.CertificateAuthority) (*root.CertificateAuthority, error) {
	var lastErr error
	for i := range authorities {
		ca := authorities[i]
		if !ca.ValidAtTime(checkTime) {
			lastErr = fmt.Errorf("certificate authority not valid at %s", checkTime)
			continue
		}
		if ca.Root == nil {
			lastErr = fmt.Errorf("certificate authority has no root certificate")
			continue
		}

		roots := x509.NewCertPool()
		roots.AddCert(ca.Root)
		intermediates := x509.NewCertPool()
		for _, ic := range ca.Intermediates {
			intermediates.AddCert(ic)
		}

		chains, err := leaf.Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
			CurrentTime:   checkTime,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		})
		if err != nil {
			lastErr = err
			continue
		}
		oversized := false
		for _, chain := range chains {
			if len(chain) > maxChainLength {
				lastErr = fmt.Errorf("certificate chain exceeds maximum length of %d", maxChainLength)
				oversized = true
				break
			}
		}
		if oversized {
			continue
		}
		if err := validateBasicConstraints(chains); err != nil {
			lastErr = err
			continue
		}
		return &ca, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no certificate authority configured")
	}
	return nil, lastErr
}

// validateBasicConstraints enforces that every non-leaf certificate in each
// built chain is a CA with keyCertSign usage, and the leaf is not.
func validateBasicConstraints(chains [][]*x509.Certificate) error {
	for _, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		leaf := chain[0]
		if leaf.IsCA {
			return fmt.Errorf("leaf certificate must not be a CA")
		}
		for _, intermediate := range chain[1:] {
			if !intermediate.IsCA {
				return fmt.Errorf("intermediate certificate %s is not a CA", intermediate.Subject)
			}
			if intermediate.KeyUsage&x509.KeyUsageCertSign == 0 {
				return fmt.Errorf("intermediate certificate %s lacks keyCertSign usage", intermediate.Subject)
			}
		}
	}
	return nil
}
