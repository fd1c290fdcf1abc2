// Package jwt provides bearer-token verification options.
//
// Configuration Example (YAML):
//
//	jwt:
//	  key: "your-secret-key-min-32-chars-long"
//	  signing-method: "HS256"
//	  issuer: "sentinel-rag"
package jwt

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// DefaultSigningMethod is the default JWT signing algorithm.
	DefaultSigningMethod = "HS256"

	// MinKeyLength is the minimum required key length for HMAC keys.
	MinKeyLength = 32
)

// SupportedSigningMethods contains the accepted HMAC algorithms.
var SupportedSigningMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Options contains JWT verification configuration.
type Options struct {
	// DisableAuth skips token verification and trusts the identity header.
	// Intended for local development only.
	DisableAuth bool `json:"disable-auth" mapstructure:"disable-auth"`

	// IdentityHeader carries the caller id when auth is disabled.
	IdentityHeader string `json:"identity-header" mapstructure:"identity-header"`

	// Key is the HMAC signing key.
	Key string `json:"-" mapstructure:"key"`

	// SigningMethod is the expected algorithm.
	SigningMethod string `json:"signing-method" mapstructure:"signing-method"`

	// Issuer, when set, must match the iss claim.
	Issuer string `json:"issuer" mapstructure:"issuer"`

	// Audience, when set, must be contained in the aud claim.
	Audience string `json:"audience" mapstructure:"audience"`

	// Leeway tolerates clock skew on exp/nbf.
	Leeway time.Duration `json:"leeway" mapstructure:"leeway"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		IdentityHeader: "X-User-ID",
		SigningMethod:  DefaultSigningMethod,
		Leeway:         30 * time.Second,
	}
}

// AddFlags adds flags for JWT options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "jwt."
	fs.BoolVar(&o.DisableAuth, p+"disable-auth", o.DisableAuth, "Disable JWT verification and trust the identity header (development only).")
	fs.StringVar(&o.IdentityHeader, p+"identity-header", o.IdentityHeader, "Header carrying the caller id when auth is disabled.")
	fs.StringVar(&o.Key, p+"key", o.Key, "JWT signing key (min 32 chars).")
	fs.StringVar(&o.SigningMethod, p+"signing-method", o.SigningMethod, "JWT signing algorithm (HS256, HS384, HS512).")
	fs.StringVar(&o.Issuer, p+"issuer", o.Issuer, "Expected iss claim (empty accepts any).")
	fs.StringVar(&o.Audience, p+"audience", o.Audience, "Expected aud claim (empty accepts any).")
	fs.DurationVar(&o.Leeway, p+"leeway", o.Leeway, "Allowed clock skew.")
}

// Validate validates the JWT options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if o.DisableAuth {
		if o.IdentityHeader == "" {
			return []error{fmt.Errorf("jwt.identity-header is required when auth is disabled")}
		}
		return nil
	}

	var errs []error
	if !SupportedSigningMethods[o.SigningMethod] {
		errs = append(errs, fmt.Errorf("unsupported signing method: %s", o.SigningMethod))
	}
	if len(o.Key) < MinKeyLength {
		errs = append(errs, fmt.Errorf("jwt key must be at least %d characters, got: %d", MinKeyLength, len(o.Key)))
	}
	if o.Leeway < 0 {
		errs = append(errs, fmt.Errorf("jwt leeway must not be negative"))
	}
	return errs
}
