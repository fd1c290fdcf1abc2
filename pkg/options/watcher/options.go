// Package watcher provides options for directory auto-ingestion.
package watcher

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the directory watcher.
type Options struct {
	// Enabled starts the watcher.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Dir is the watched directory.
	Dir string `json:"dir" mapstructure:"dir"`

	// Scope is the visibility assigned to ingested files.
	Scope string `json:"scope" mapstructure:"scope"`

	// Owner is the owner id for private scope.
	Owner string `json:"owner" mapstructure:"owner"`

	// Extensions lists the file extensions to ingest.
	Extensions []string `json:"extensions" mapstructure:"extensions"`

	// Debounce coalesces bursts of writes to the same file.
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`

	// InitialScan ingests existing files on startup.
	InitialScan bool `json:"initial-scan" mapstructure:"initial-scan"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Dir:         "_output/corpus",
		Scope:       "system",
		Extensions:  []string{".md", ".txt"},
		Debounce:    500 * time.Millisecond,
		InitialScan: true,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "watcher."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Watch a directory and ingest new or modified files.")
	fs.StringVar(&o.Dir, p+"dir", o.Dir, "Directory to watch.")
	fs.StringVar(&o.Scope, p+"scope", o.Scope, "Visibility scope for watched files (public|system|private).")
	fs.StringVar(&o.Owner, p+"owner", o.Owner, "Owner id when scope is private.")
	fs.StringSliceVar(&o.Extensions, p+"extensions", o.Extensions, "File extensions to ingest.")
	fs.DurationVar(&o.Debounce, p+"debounce", o.Debounce, "Debounce window for repeated writes.")
	fs.BoolVar(&o.InitialScan, p+"initial-scan", o.InitialScan, "Ingest existing files at startup.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	var errs []error
	if o.Dir == "" {
		errs = append(errs, fmt.Errorf("watcher.dir is required"))
	}
	switch o.Scope {
	case "public", "system":
	case "private":
		if o.Owner == "" {
			errs = append(errs, fmt.Errorf("watcher.owner is required for private scope"))
		}
	default:
		errs = append(errs, fmt.Errorf("watcher.scope %q is invalid", o.Scope))
	}
	if len(o.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("watcher.extensions must not be empty"))
	}
	return errs
}
