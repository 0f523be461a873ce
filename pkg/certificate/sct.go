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
	"encoding/hex"
	"fmt"
	"time"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509util"

	"github.com/sigstore/bundle-verifier/pkg/root"
)

// CountValidSCTs extracts the SCT list embedded in leaf (issued against
// issuer) and returns how many entries verify against a CT log in ctLogs
// whose log ID matches the SCT's LogID and whose validity window covers the
// SCT's timestamp.
func CountValidSCTs(leaf, issuer *x509.Certificate, ctLogs map[string]*root.TlogAuthority) (int, error) {
	ctLeaf, err := ctx509.ParseCertificate(leaf.Raw)
	if err != nil {
		return 0, fmt.Errorf("re-parsing leaf for SCT extraction: %w", err)
	}
	if ctLeaf.SCTList == nil || len(ctLeaf.SCTList.SCTList) == 0 {
		return 0, nil
	}
	ctIssuer, err := ctx509.ParseCertificate(issuer.Raw)
	if err != nil {
		return 0, fmt.Errorf("re-parsing issuer for SCT extraction: %w", err)
	}

	valid := 0
	for i, raw := range ctLeaf.SCTList.SCTList {
		sct, err := x509util.ExtractSCT(&raw)
		if err != nil {
			continue
		}

		logID := hex.EncodeToString(sct.LogID.KeyID[:])
		authority, ok := ctLogs[logID]
		if !ok {
			continue
		}

		sctTime := time.UnixMilli(int64(sct.Timestamp))
		if !authority.ValidAtTime(sctTime) {
			continue
		}

		merkleLeaf, err := ct.MerkleTreeLeafForEmbeddedSCT([]*ctx509.Certificate{ctLeaf, ctIssuer}, i)
		if err != nil {
			continue
		}
		signedInput, err := ct.SerializeSCTSignatureInput(*sct, ct.LogEntry{Leaf: *merkleLeaf})
		if err != nil {
			continue
		}
		if err := tls.VerifySignature(authority.PublicKey, signedInput, sct.Signature); err != nil {
			continue
		}
		valid++
	}
	return valid, nil
}
