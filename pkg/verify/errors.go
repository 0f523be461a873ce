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

import "fmt"

// Code tags a VerificationError with the category of check that failed, so
// callers can react programmatically without string-matching error text.
type Code string

const (
	SignatureError            Code = "SIGNATURE_ERROR"
	CertificateError          Code = "CERTIFICATE_ERROR"
	PublicKeyError            Code = "PUBLIC_KEY_ERROR"
	TlogBodyError             Code = "TLOG_BODY_ERROR"
	TlogInclusionPromiseError Code = "TLOG_INCLUSION_PROMISE_ERROR"
	TlogInclusionProofError   Code = "TLOG_INCLUSION_PROOF_ERROR"
	TimestampError            Code = "TIMESTAMP_ERROR"
	UntrustedSignerError      Code = "UNTRUSTED_SIGNER_ERROR"
)

// VerificationError is the only error type Verify returns: a taxonomy code,
// a human-readable message, and the underlying cause for errors.As/Unwrap.
type VerificationError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *VerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VerificationError) Unwrap() error { return e.Cause }

func newError(code Code, message string, cause error) *VerificationError {
	return &VerificationError{Code: code, Message: message, Cause: cause}
}

var (
	errNoArtifact     = fmt.Errorf("no data for message signature")
	errDigestMismatch = fmt.Errorf("artifact digest does not match bundle message digest")
)
