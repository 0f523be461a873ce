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

// VerifierConfig holds the thresholds and policy a Verifier checks a bundle
// against, built via functional options mirroring the teacher's CheckOpts
// construction style.
type VerifierConfig struct {
	TlogThreshold  int
	CTLogThreshold int
	TSAThreshold   int
	CertificateID  *CertificateIdentity
}

// Option configures a VerifierConfig.
type Option func(*VerifierConfig)

// NewVerifierConfig builds a VerifierConfig with spec defaults
// (tlog_threshold=1, ctlog_threshold=1, tsa_threshold=0) before applying opts.
func NewVerifierConfig(opts ...Option) *VerifierConfig {
	cfg := &VerifierConfig{
		TlogThreshold:  1,
		CTLogThreshold: 1,
		TSAThreshold:   0,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithTlogThreshold sets the minimum count of valid transparency-log entries.
func WithTlogThreshold(n int) Option {
	return func(c *VerifierConfig) { c.TlogThreshold = n }
}

// WithCTLogThreshold sets the minimum count of valid embedded SCTs.
func WithCTLogThreshold(n int) Option {
	return func(c *VerifierConfig) { c.CTLogThreshold = n }
}

// WithTSAThreshold sets the minimum count of valid RFC3161 timestamps.
func WithTSAThreshold(n int) Option {
	return func(c *VerifierConfig) { c.TSAThreshold = n }
}

// WithCertificateIdentity requires the leaf certificate to satisfy id.
func WithCertificateIdentity(id CertificateIdentity) Option {
	return func(c *VerifierConfig) { c.CertificateID = &id }
}
