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

// Package verify orchestrates bundle verification end to end: signature
// check, transparency-log and RFC3161 timestamp collection with thresholds,
// signer-key trust (certificate chain or public key), transparency-log body
// agreement, and certificate-identity policy, per the seven-step algorithm.
package verify

import (
	"crypto"
	"crypto/x509"
	"time"

	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
	sigstoresig "github.com/sigstore/sigstore/pkg/signature"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/certificate"
	"github.com/sigstore/bundle-verifier/pkg/root"
	cryptosig "github.com/sigstore/bundle-verifier/pkg/signature"
	"github.com/sigstore/bundle-verifier/pkg/timestamp"
	"github.com/sigstore/bundle-verifier/pkg/tlog"
)

// Verifier checks bundles against a fixed body of trust material and
// configuration. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	trustedMaterial root.TrustedMaterial
	config          *VerifierConfig
}

// NewVerifier builds a Verifier over trustedMaterial with config (or
// defaults, if config is nil).
func NewVerifier(trustedMaterial root.TrustedMaterial, config *VerifierConfig) *Verifier {
	if config == nil {
		config = NewVerifierConfig()
	}
	return &Verifier{trustedMaterial: trustedMaterial, config: config}
}

// acceptedTimestamp records one timestamp this bundle's evidence produced,
// used both to enforce thresholds and to pick the certificate check_time.
type acceptedTimestamp struct {
	time time.Time
}

// Verify checks entity end to end. artifact is the signed blob's bytes,
// required when entity carries a message signature (verifying a message
// signature needs the artifact, not just its digest); it is ignored for
// DSSE-signed entities, whose signed bytes are the envelope's own payload.
func (v *Verifier) Verify(entity *bundle.SignedEntity, artifact []byte) error {
	sigContent, err := entity.SignatureContent()
	if err != nil {
		return newError(SignatureError, "parsing signature content", err)
	}
	verContent, err := entity.VerificationContent()
	if err != nil {
		return newError(CertificateError, "parsing verification content", err)
	}

	// Step 2: signature verify.
	verifier, verr := v.resolveVerifier(verContent)
	if verr != nil {
		return verr
	}
	if err := verifySignatureContent(sigContent, verifier, artifact); err != nil {
		return newError(SignatureError, "signature does not verify", err)
	}

	// Step 3: collect timestamps.
	tlogEntries, err := entity.TlogEntries()
	if err != nil {
		return newError(TimestampError, "parsing tlog entries", err)
	}
	tlogTimestamps, acceptedEntries, err := v.collectTlogTimestamps(tlogEntries)
	if err != nil {
		return err
	}

	rfc3161Tokens := entity.Timestamps()
	rfc3161Times, err := v.collectRFC3161Timestamps(rfc3161Tokens, rfc3161SignedBytes(sigContent))
	if err != nil {
		return err
	}

	// Step 4: threshold check.
	if len(tlogTimestamps) < v.config.TlogThreshold {
		return newError(TimestampError, "insufficient valid transparency-log timestamps", nil)
	}
	if len(rfc3161Times) < v.config.TSAThreshold {
		return newError(TimestampError, "insufficient valid RFC3161 timestamps", nil)
	}

	accepted := append(append([]acceptedTimestamp{}, tlogTimestamps...), rfc3161Times...)
	if len(accepted) == 0 {
		return newError(TimestampError, "no valid timestamp evidence", nil)
	}
	checkTime := earliest(accepted)

	// Step 5: key trust.
	leaf, err := v.verifyKeyTrust(verContent, checkTime)
	if err != nil {
		return err
	}

	// Step 6: log body match, for every accepted tlog entry.
	for _, entry := range acceptedEntries {
		if err := tlog.VerifyBody(entry, sigContent, verContent); err != nil {
			return newError(TlogBodyError, "transparency-log body disagrees with bundle", err)
		}
	}

	// Step 7: policy.
	if v.config.CertificateID != nil {
		if leaf == nil {
			return newError(UntrustedSignerError, "certificate identity policy requires a certificate signer", nil)
		}
		if err := v.config.CertificateID.Matches(leaf); err != nil {
			return newError(UntrustedSignerError, "certificate does not satisfy identity policy", err)
		}
	}

	return nil
}

// resolveVerifier builds the signature.Verifier to check sig_content
// against, from whichever verification-content case the bundle carries. For
// certificate cases this is the leaf's own key; certificate trust itself is
// established later, in verifyKeyTrust (step 5), once check_time is known.
func (v *Verifier) resolveVerifier(verContent bundle.VerificationContent) (sigstoresig.Verifier, error) {
	switch vc := verContent.(type) {
	case bundle.CertificateChainContent:
		return leafVerifier(vc.Leaf())
	case bundle.CertificateContent:
		return leafVerifier(vc.Certificate)
	case bundle.PublicKeyContent:
		verifier, err := v.trustedMaterial.PublicKeyVerifier(vc.Hint)
		if err != nil {
			return nil, newError(PublicKeyError, "no public key known for hint", err)
		}
		return verifier, nil
	default:
		return nil, newError(CertificateError, "unsupported verification content", nil)
	}
}

func leafVerifier(leaf *x509.Certificate) (sigstoresig.Verifier, error) {
	pub, err := cryptosig.LeafCertificatePublicKey(leaf)
	if err != nil {
		return nil, newError(CertificateError, "extracting leaf public key", err)
	}
	verifier, err := cryptosig.LoadVerifier(pub)
	if err != nil {
		return nil, newError(CertificateError, "loading leaf verifier", err)
	}
	return verifier, nil
}

func verifySignatureContent(sigContent bundle.SignatureContent, verifier sigstoresig.Verifier, artifact []byte) error {
	switch sc := sigContent.(type) {
	case bundle.MessageSignatureContent:
		if len(artifact) == 0 {
			return errNoArtifact
		}
		hashAlg := hashAlgorithmFromProto(sc.HashAlgorithm)
		digest, err := cryptosig.ComputeDigest(hashAlg, artifact)
		if err != nil {
			return err
		}
		if !cryptosig.ConstantTimeEqual(digest, sc.Digest) {
			return errDigestMismatch
		}
		content := &cryptosig.MessageSignatureContent{HashAlgorithm: hashAlg, Digest: sc.Digest, Sig: sc.Signature}
		return content.Verify(verifier)

	case bundle.DSSEContent:
		if len(sc.Signatures) == 0 {
			return errNoArtifact
		}
		content := &cryptosig.DSSEContent{PayloadType: sc.PayloadType, Payload: sc.Payload, Sig: sc.Signatures[0]}
		return content.Verify(verifier)

	default:
		return cryptosig.ErrUnsupportedContent
	}
}

// collectTlogTimestamps runs SET and/or inclusion-proof verification on
// every tlog entry whose log is known to trust material, rejecting
// duplicate (log_id, log_index) pairs outright. An entry naming an unknown
// log is skipped, since it simply contributes nothing toward the threshold;
// an entry naming a known log but carrying a promise or proof that fails to
// verify is a tampering signal and fails verification outright with the
// matching error code.
func (v *Verifier) collectTlogTimestamps(entries []*bundle.TransparencyLogEntry) ([]acceptedTimestamp, []*bundle.TransparencyLogEntry, error) {
	seen := map[string]bool{}
	var accepted []acceptedTimestamp
	var acceptedEntries []*bundle.TransparencyLogEntry

	for _, entry := range entries {
		key := entry.Key()
		if seen[key] {
			return nil, nil, newError(TimestampError, "duplicate transparency-log entry", nil)
		}
		seen[key] = true

		if !entry.HasInclusionPromise() && !entry.HasInclusionProof() {
			continue
		}

		authority, ok := v.trustedMaterial.TlogAuthorities()[entry.LogID()]
		if !ok {
			continue
		}
		logVerifier, err := authority.Verifier()
		if err != nil {
			continue
		}

		if entry.HasInclusionPromise() {
			if err := tlog.VerifySignedEntryTimestamp(entry, logVerifier); err != nil {
				return nil, nil, newError(TlogInclusionPromiseError, "signed entry timestamp does not verify", err)
			}
		}
		if entry.HasInclusionProof() {
			if err := tlog.VerifyInclusionProof(entry, entry.LogIDBytes(), logVerifier); err != nil {
				return nil, nil, newError(TlogInclusionProofError, "inclusion proof does not verify", err)
			}
		}

		accepted = append(accepted, acceptedTimestamp{time: entry.IntegratedTime()})
		acceptedEntries = append(acceptedEntries, entry)
	}

	return accepted, acceptedEntries, nil
}

func (v *Verifier) collectRFC3161Timestamps(tokens [][]byte, signedBytes []byte) ([]acceptedTimestamp, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	times, err := timestamp.VerifyTimestamps(tokens, signedBytes, v.trustedMaterial)
	if err != nil {
		if v.config.TSAThreshold == 0 {
			return nil, nil
		}
		return nil, newError(TimestampError, "verifying RFC3161 timestamps", err)
	}
	out := make([]acceptedTimestamp, 0, len(times))
	for _, t := range times {
		out = append(out, acceptedTimestamp{time: t})
	}
	return out, nil
}

// verifyKeyTrust implements spec step 5: a certificate key must chain to a
// trusted CA and clear the CT-log SCT threshold; a public key must have a
// matching, time-valid hint in trust material. Returns the leaf certificate
// when the signer is certificate-based, or nil for the public-key case.
func (v *Verifier) verifyKeyTrust(verContent bundle.VerificationContent, checkTime time.Time) (*x509.Certificate, error) {
	switch vc := verContent.(type) {
	case bundle.CertificateChainContent:
		return v.verifyCertificateTrust(vc.Leaf(), checkTime)
	case bundle.CertificateContent:
		return v.verifyCertificateTrust(vc.Certificate, checkTime)
	case bundle.PublicKeyContent:
		verifier, err := v.trustedMaterial.PublicKeyVerifier(vc.Hint)
		if err != nil {
			return nil, newError(PublicKeyError, "no public key known for hint", err)
		}
		if !verifier.ValidAtTime(checkTime) {
			return nil, newError(PublicKeyError, "public key not valid at check time", nil)
		}
		return nil, nil
	default:
		return nil, newError(CertificateError, "unsupported verification content", nil)
	}
}

func (v *Verifier) verifyCertificateTrust(leaf *x509.Certificate, checkTime time.Time) (*x509.Certificate, error) {
	authority, err := certificate.VerifyLeafCertificate(leaf, checkTime, v.trustedMaterial.FulcioCertificateAuthorities())
	if err != nil {
		return nil, newError(CertificateError, "certificate chain does not verify", err)
	}

	issuer := authority.Root
	if len(authority.Intermediates) > 0 {
		issuer = authority.Intermediates[0]
	}

	validSCTs, err := certificate.CountValidSCTs(leaf, issuer, v.trustedMaterial.CTLogAuthorities())
	if err != nil {
		return nil, newError(CertificateError, "counting valid SCTs", err)
	}
	if validSCTs < v.config.CTLogThreshold {
		return nil, newError(CertificateError, "insufficient valid SCTs", nil)
	}

	return leaf, nil
}

func earliest(timestamps []acceptedTimestamp) time.Time {
	min := timestamps[0].time
	for _, ts := range timestamps[1:] {
		if ts.time.Before(min) {
			min = ts.time
		}
	}
	return min
}

func hashAlgorithmFromProto(alg protocommon.HashAlgorithm) crypto.Hash {
	switch alg {
	case protocommon.HashAlgorithm_SHA2_384:
		return crypto.SHA384
	case protocommon.HashAlgorithm_SHA2_512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

func rfc3161SignedBytes(sigContent bundle.SignatureContent) []byte {
	switch sc := sigContent.(type) {
	case bundle.MessageSignatureContent:
		return sc.Signature
	case bundle.DSSEContent:
		if len(sc.Signatures) == 0 {
			return nil
		}
		return sc.Signatures[0]
	default:
		return nil
	}
}
