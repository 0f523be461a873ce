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

// Package timestamp verifies RFC 3161 timestamp tokens attached to a bundle
// against a trusted timestamping authority's certificate chain.
package timestamp

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"

	tsaverification "github.com/sigstore/timestamp-authority/pkg/verification"

	"github.com/sigstore/bundle-verifier/pkg/root"
)

// VerifyTimestamps checks each RFC3161 TimeStampResp in signedTimestamps
// against signedBytes (the bytes the timestamp covers — the bundle's DSSE
// signature or message signature) using trustedMaterial's timestamping
// authorities. It returns the verified timestamp of every token that
// verifies against some trusted TSA chain and whose timestamp falls within
// that chain's validity window; a token matching no authority is dropped
// rather than treated as an error, mirroring threshold-based timestamp
// acceptance.
func VerifyTimestamps(signedTimestamps [][]byte, signedBytes []byte, trustedMaterial root.TrustedMaterial) ([]time.Time, error) {
	verified := make([]time.Time, 0, len(signedTimestamps))
	for _, token := range signedTimestamps {
		ts, err := verifyOne(token, signedBytes, trustedMaterial)
		if err != nil {
			continue
		}
		verified = append(verified, ts)
	}
	return verified, nil
}

func verifyOne(token, signedBytes []byte, trustedMaterial root.TrustedMaterial) (time.Time, error) {
	var lastErr error
	for _, ca := range trustedMaterial.TSACertificateAuthorities() {
		opts := tsaverification.VerifyOpts{
			Roots:          []*x509.Certificate{ca.Root},
			Intermediates:  ca.Intermediates,
			TSACertificate: ca.Leaf,
		}

		signedTimestamp, err := tsaverification.VerifyTimestampResponse(token, bytes.NewReader(signedBytes), opts)
		if err != nil {
			lastErr = err
			continue
		}

		if err := verifyTSAChain(ca, signedTimestamp.Time); err != nil {
			lastErr = err
			continue
		}

		if !ca.ValidAtTime(signedTimestamp.Time) {
			lastErr = fmt.Errorf("timestamp %s falls outside authority validity window", signedTimestamp.Time)
			continue
		}

		return signedTimestamp.Time, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no timestamping authority configured")
	}
	return time.Time{}, fmt.Errorf("no trusted timestamping authority verified this token: %w", lastErr)
}

// verifyTSAChain checks that ca.Leaf chains to ca.Root through
// ca.Intermediates, with the extended key usage RFC 3161 requires, as of
// the claimed signing time rather than the current time.
func verifyTSAChain(ca root.CertificateAuthority, checkTime time.Time) error {
	roots := x509.NewCertPool()
	roots.AddCert(ca.Root)

	intermediates := x509.NewCertPool()
	for _, cert := range ca.Intermediates {
		intermediates.AddCert(cert)
	}

	_, err := ca.Leaf.Verify(x509.VerifyOptions{
		CurrentTime:   checkTime,
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	})
	if err != nil {
		return fmt.Errorf("TSA chain does not verify: %w", err)
	}
	return nil
}
