// Package authz provides options for role-based authorization.
//
// Configuration Example (YAML):
//
//	authz:
//	  curators: ["ops-team", "alice"]
//	  admins: ["billing-bot"]
package authz

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the policy enforcer.
type Options struct {
	// ModelPath points to a casbin model file. Empty uses the built-in RBAC model.
	ModelPath string `json:"model-path" mapstructure:"model-path"`

	// Curators are granted the curator role at startup.
	Curators []string `json:"curators" mapstructure:"curators"`

	// Admins are granted the admin role at startup.
	Admins []string `json:"admins" mapstructure:"admins"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "authz."
	fs.StringVar(&o.ModelPath, p+"model-path", o.ModelPath, "Casbin model file (empty uses the built-in RBAC model).")
	fs.StringSliceVar(&o.Curators, p+"curators", o.Curators, "Caller ids allowed to publish public and system documents.")
	fs.StringSliceVar(&o.Admins, p+"admins", o.Admins, "Caller ids allowed to change account tiers.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	for name, ids := range map[string][]string{"curators": o.Curators, "admins": o.Admins} {
		for _, id := range ids {
			if strings.TrimSpace(id) == "" {
				errs = append(errs, fmt.Errorf("authz.%s must not contain empty ids", name))
				break
			}
		}
	}
	return errs
}
