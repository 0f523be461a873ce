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

// Package root models the curated trust material (Fulcio CAs, transparency
// logs, CT logs, timestamping authorities, and ad hoc public keys) that a
// Verifier checks a bundle against.
package root

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
	prototrustroot "github.com/sigstore/protobuf-specs/gen/pb-go/trustroot/v1"
	"github.com/sigstore/sigstore/pkg/signature"
	"google.golang.org/protobuf/encoding/protojson"
)

// TrustedRootMediaType01 is the only supported protobuf-JSON TrustedRoot media type.
const TrustedRootMediaType01 = "application/vnd.dev.sigstore.trustedroot+json;version=0.1"

// TimeConstrainedVerifier is a signature.Verifier that also knows the window
// of time during which its key is trusted.
type TimeConstrainedVerifier interface {
	signature.Verifier
	ValidAtTime(t time.Time) bool
}

// TrustedMaterial is the indexed view over trust roots a Verifier consults.
// It never mutates and is safe to share across goroutines.
type TrustedMaterial interface {
	TSACertificateAuthorities() []CertificateAuthority
	FulcioCertificateAuthorities() []CertificateAuthority
	TlogAuthorities() map[string]*TlogAuthority
	CTLogAuthorities() map[string]*TlogAuthority
	PublicKeyVerifier(hint string) (TimeConstrainedVerifier, error)
}

// CertificateAuthority is an ordered trust chain (leaf-optional,
// intermediates, root) plus the window during which it is trusted.
type CertificateAuthority struct {
	Root                *x509.Certificate
	Intermediates       []*x509.Certificate
	Leaf                *x509.Certificate
	ValidityPeriodStart time.Time
	ValidityPeriodEnd   time.Time
}

// ValidAtTime reports whether checkTime falls within [start, end). A zero
// ValidityPeriodEnd means "still valid", matching the protobuf convention of
// an absent end timestamp.
func (ca CertificateAuthority) ValidAtTime(checkTime time.Time) bool {
	if checkTime.Before(ca.ValidityPeriodStart) {
		return false
	}
	if !ca.ValidityPeriodEnd.IsZero() && !checkTime.Before(ca.ValidityPeriodEnd) {
		return false
	}
	return true
}

// Chain returns the root-last certificate chain usable as x509.VerifyOptions.Roots/Intermediates input.
func (ca CertificateAuthority) Chain() []*x509.Certificate {
	chain := make([]*x509.Certificate, 0, len(ca.Intermediates)+2)
	if ca.Leaf != nil {
		chain = append(chain, ca.Leaf)
	}
	chain = append(chain, ca.Intermediates...)
	if ca.Root != nil {
		chain = append(chain, ca.Root)
	}
	return chain
}

// TlogAuthority describes one transparency or CT log's identity and public key.
type TlogAuthority struct {
	BaseURL             string
	ID                  []byte
	ValidityPeriodStart time.Time
	ValidityPeriodEnd   time.Time
	HashFunc            crypto.Hash
	PublicKey           crypto.PublicKey
}

// ValidAtTime reports whether checkTime falls within the log's validity window.
func (t TlogAuthority) ValidAtTime(checkTime time.Time) bool {
	if checkTime.Before(t.ValidityPeriodStart) {
		return false
	}
	if !t.ValidityPeriodEnd.IsZero() && !checkTime.Before(t.ValidityPeriodEnd) {
		return false
	}
	return true
}

// Verifier returns a signature.Verifier for this log's public key.
func (t TlogAuthority) Verifier() (signature.Verifier, error) {
	return signature.LoadVerifier(t.PublicKey, t.HashFunc)
}

type publicKeyEntry struct {
	verifier TimeConstrainedVerifier
}

// BaseTrustedMaterial is an embeddable TrustedMaterial implementation that
// returns "not found" for every accessor. Concrete trust roots embed it and
// override only the accessors they need, and TrustedMaterialCollection
// composes several of these.
type BaseTrustedMaterial struct{}

func (BaseTrustedMaterial) TSACertificateAuthorities() []CertificateAuthority    { return nil }
func (BaseTrustedMaterial) FulcioCertificateAuthorities() []CertificateAuthority { return nil }
func (BaseTrustedMaterial) TlogAuthorities() map[string]*TlogAuthority          { return nil }
func (BaseTrustedMaterial) CTLogAuthorities() map[string]*TlogAuthority         { return nil }
func (BaseTrustedMaterial) PublicKeyVerifier(hint string) (TimeConstrainedVerifier, error) {
	return nil, fmt.Errorf("no public key known for hint %q", hint)
}

// TrustedMaterialCollection lets a caller combine several TrustedMaterial
// sources (for example a TrustedRoot plus one ad hoc public key) without a
// bespoke merge type; each accessor tries every member in order.
type TrustedMaterialCollection []TrustedMaterial

func (c TrustedMaterialCollection) TSACertificateAuthorities() []CertificateAuthority {
	var all []CertificateAuthority
	for _, tm := range c {
		all = append(all, tm.TSACertificateAuthorities()...)
	}
	return all
}

func (c TrustedMaterialCollection) FulcioCertificateAuthorities() []CertificateAuthority {
	var all []CertificateAuthority
	for _, tm := range c {
		all = append(all, tm.FulcioCertificateAuthorities()...)
	}
	return all
}

func (c TrustedMaterialCollection) TlogAuthorities() map[string]*TlogAuthority {
	merged := map[string]*TlogAuthority{}
	for _, tm := range c {
		for k, v := range tm.TlogAuthorities() {
			merged[k] = v
		}
	}
	return merged
}

func (c TrustedMaterialCollection) CTLogAuthorities() map[string]*TlogAuthority {
	merged := map[string]*TlogAuthority{}
	for _, tm := range c {
		for k, v := range tm.CTLogAuthorities() {
			merged[k] = v
		}
	}
	return merged
}

func (c TrustedMaterialCollection) PublicKeyVerifier(hint string) (TimeConstrainedVerifier, error) {
	var lastErr error
	for _, tm := range c {
		v, err := tm.PublicKeyVerifier(hint)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no public key known for hint %q", hint)
	}
	return nil, lastErr
}

// TrustedRoot is the parsed form of a protobuf-JSON TrustedRoot document.
type TrustedRoot struct {
	BaseTrustedMaterial

	trustedRoot             *prototrustroot.TrustedRoot
	mediaType               string
	certificateAuthorities  []CertificateAuthority
	timestampingAuthorities []CertificateAuthority
	rekorLogs               map[string]*TlogAuthority
	ctLogs                  map[string]*TlogAuthority
	publicKeys              map[string]publicKeyEntry
}

func (tr *TrustedRoot) TSACertificateAuthorities() []CertificateAuthority {
	return tr.timestampingAuthorities
}

func (tr *TrustedRoot) FulcioCertificateAuthorities() []CertificateAuthority {
	return tr.certificateAuthorities
}

func (tr *TrustedRoot) TlogAuthorities() map[string]*TlogAuthority {
	return tr.rekorLogs
}

func (tr *TrustedRoot) CTLogAuthorities() map[string]*TlogAuthority {
	return tr.ctLogs
}

func (tr *TrustedRoot) PublicKeyVerifier(hint string) (TimeConstrainedVerifier, error) {
	entry, ok := tr.publicKeys[hint]
	if !ok {
		return nil, fmt.Errorf("no public key known for hint %q", hint)
	}
	return entry.verifier, nil
}

// NewTrustedRoot assembles a TrustedRoot from already-parsed pieces; used by
// tests and by callers that build trust material incrementally rather than
// from a protobuf-JSON document.
func NewTrustedRoot(mediaType string, certAuthorities []CertificateAuthority, ctLogs map[string]*TlogAuthority, tsaAuthorities []CertificateAuthority, rekorLogs map[string]*TlogAuthority) (*TrustedRoot, error) {
	if mediaType != TrustedRootMediaType01 {
		return nil, fmt.Errorf("unsupported TrustedRoot media type: %s", mediaType)
	}
	return &TrustedRoot{
		mediaType:               mediaType,
		certificateAuthorities:  certAuthorities,
		timestampingAuthorities: tsaAuthorities,
		rekorLogs:               rekorLogs,
		ctLogs:                  ctLogs,
		publicKeys:              map[string]publicKeyEntry{},
	}, nil
}

// NewTrustedRootFromProtobuf parses an already-decoded protobuf TrustedRoot.
func NewTrustedRootFromProtobuf(pb *prototrustroot.TrustedRoot) (*TrustedRoot, error) {
	if pb.GetMediaType() != TrustedRootMediaType01 {
		return nil, fmt.Errorf("unsupported TrustedRoot media type: %s", pb.GetMediaType())
	}

	tr := &TrustedRoot{trustedRoot: pb, mediaType: pb.GetMediaType()}

	var err error
	tr.rekorLogs, err = parseTlogAuthorities(pb.GetTlogs())
	if err != nil {
		return nil, fmt.Errorf("parsing tlogs: %w", err)
	}

	tr.ctLogs, err = parseTlogAuthorities(pb.GetCtlogs())
	if err != nil {
		return nil, fmt.Errorf("parsing ctlogs: %w", err)
	}

	tr.certificateAuthorities, err = parseCertificateAuthorities(pb.GetCertificateAuthorities())
	if err != nil {
		return nil, fmt.Errorf("parsing certificate authorities: %w", err)
	}

	tr.timestampingAuthorities, err = parseCertificateAuthorities(pb.GetTimestampAuthorities())
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp authorities: %w", err)
	}

	tr.publicKeys = map[string]publicKeyEntry{}

	return tr, nil
}

func parseTlogAuthorities(tlogs []*prototrustroot.TransparencyLogInstance) (map[string]*TlogAuthority, error) {
	result := make(map[string]*TlogAuthority, len(tlogs))
	for _, tlog := range tlogs {
		if tlog.GetLogId() == nil || tlog.GetLogId().GetKeyId() == nil {
			return nil, fmt.Errorf("log missing log ID")
		}
		encodedKeyID := hex.EncodeToString(tlog.GetLogId().GetKeyId())

		pk := tlog.GetPublicKey()
		if pk == nil || pk.GetRawBytes() == nil {
			return nil, fmt.Errorf("log %s missing public key", encodedKeyID)
		}

		pubKey, hashFunc, err := parsePublicKeyDetails(pk)
		if err != nil {
			return nil, fmt.Errorf("log %s: %w", encodedKeyID, err)
		}

		authority := &TlogAuthority{
			BaseURL:   tlog.GetBaseUrl(),
			ID:        tlog.GetLogId().GetKeyId(),
			HashFunc:  hashFunc,
			PublicKey: pubKey,
		}
		if validFor := pk.GetValidFor(); validFor != nil {
			if start := validFor.GetStart(); start != nil {
				authority.ValidityPeriodStart = start.AsTime()
			}
			if end := validFor.GetEnd(); end != nil {
				authority.ValidityPeriodEnd = end.AsTime()
			}
		}
		result[encodedKeyID] = authority
	}
	return result, nil
}

func parsePublicKeyDetails(pk *protocommon.PublicKey) (crypto.PublicKey, crypto.Hash, error) {
	switch pk.GetKeyDetails() {
	case protocommon.PublicKeyDetails_PKIX_ECDSA_P256_SHA_256:
		key, err := x509.ParsePKIXPublicKey(pk.GetRawBytes())
		if err != nil {
			return nil, 0, err
		}
		if _, ok := key.(*ecdsa.PublicKey); !ok {
			return nil, 0, fmt.Errorf("public key is not ECDSA P-256")
		}
		return key, crypto.SHA256, nil
	case protocommon.PublicKeyDetails_PKIX_ECDSA_P384_SHA_384:
		key, err := x509.ParsePKIXPublicKey(pk.GetRawBytes())
		if err != nil {
			return nil, 0, err
		}
		if _, ok := key.(*ecdsa.PublicKey); !ok {
			return nil, 0, fmt.Errorf("public key is not ECDSA P-384")
		}
		return key, crypto.SHA384, nil
	case protocommon.PublicKeyDetails_PKIX_ED25519:
		key, err := x509.ParsePKIXPublicKey(pk.GetRawBytes())
		if err != nil {
			return nil, 0, err
		}
		if _, ok := key.(ed25519.PublicKey); !ok {
			return nil, 0, fmt.Errorf("public key is not Ed25519")
		}
		return key, crypto.SHA512, nil
	case protocommon.PublicKeyDetails_PKIX_RSA_PKCS1V15_2048_SHA256,
		protocommon.PublicKeyDetails_PKIX_RSA_PKCS1V15_3072_SHA256,
		protocommon.PublicKeyDetails_PKIX_RSA_PKCS1V15_4096_SHA256:
		key, err := x509.ParsePKIXPublicKey(pk.GetRawBytes())
		if err != nil {
			return nil, 0, err
		}
		if _, ok := key.(*rsa.PublicKey); !ok {
			return nil, 0, fmt.Errorf("public key is not RSA")
		}
		return key, crypto.SHA256, nil
	default:
		return nil, 0, fmt.Errorf("unsupported public key type: %s", pk.GetKeyDetails())
	}
}

func parseCertificateAuthorities(certAuthorities []*prototrustroot.CertificateAuthority) ([]CertificateAuthority, error) {
	result := make([]CertificateAuthority, 0, len(certAuthorities))
	for _, ca := range certAuthorities {
		parsed, err := parseCertificateAuthority(ca)
		if err != nil {
			return nil, err
		}
		result = append(result, *parsed)
	}
	return result, nil
}

func parseCertificateAuthority(ca *prototrustroot.CertificateAuthority) (*CertificateAuthority, error) {
	if ca == nil {
		return nil, fmt.Errorf("CertificateAuthority is nil")
	}
	certChain := ca.GetCertChain()
	if certChain == nil {
		return nil, fmt.Errorf("CertificateAuthority missing cert chain")
	}
	certs := certChain.GetCertificates()
	chainLen := len(certs)
	if chainLen < 1 {
		return nil, fmt.Errorf("CertificateAuthority cert chain is empty")
	}
	if chainLen > 10 {
		return nil, fmt.Errorf("CertificateAuthority cert chain too long: %d", chainLen)
	}

	result := &CertificateAuthority{}
	for i, cert := range certs {
		parsedCert, err := x509.ParseCertificate(cert.GetRawBytes())
		if err != nil {
			return nil, fmt.Errorf("parsing certificate %d: %w", i, err)
		}
		switch {
		case i == 0 && !parsedCert.IsCA:
			result.Leaf = parsedCert
		case i == chainLen-1:
			result.Root = parsedCert
		default:
			result.Intermediates = append(result.Intermediates, parsedCert)
		}
	}

	if validFor := ca.GetValidFor(); validFor != nil {
		if start := validFor.GetStart(); start != nil {
			result.ValidityPeriodStart = start.AsTime()
		}
		if end := validFor.GetEnd(); end != nil {
			result.ValidityPeriodEnd = end.AsTime()
		}
	}

	return result, nil
}

// NewTrustedRootFromPath reads and parses a trusted-root JSON document from disk.
func NewTrustedRootFromPath(path string) (*TrustedRoot, error) {
	rootJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trusted root: %w", err)
	}
	return NewTrustedRootFromJSON(rootJSON)
}

// NewTrustedRootFromJSON parses a protobuf-JSON TrustedRoot document.
func NewTrustedRootFromJSON(rootJSON []byte) (*TrustedRoot, error) {
	pb, err := NewTrustedRootProtobuf(rootJSON)
	if err != nil {
		return nil, err
	}
	return NewTrustedRootFromProtobuf(pb)
}

// NewTrustedRootProtobuf unmarshals the protobuf-JSON wire form without building the indexes.
func NewTrustedRootProtobuf(rootJSON []byte) (*prototrustroot.TrustedRoot, error) {
	pb := &prototrustroot.TrustedRoot{}
	if err := protojson.Unmarshal(rootJSON, pb); err != nil {
		return nil, fmt.Errorf("unmarshaling trusted root: %w", err)
	}
	return pb, nil
}

// MarshalJSON re-serializes the original protobuf document, so
// MarshalJSON(NewTrustedRootFromJSON(x)) round-trips to x (modulo protojson's
// own canonicalization of zero-fraction timestamps).
func (tr *TrustedRoot) MarshalJSON() ([]byte, error) {
	if tr.trustedRoot == nil {
		return nil, fmt.Errorf("trusted root has no backing protobuf message")
	}
	return protojson.Marshal(tr.trustedRoot)
}
