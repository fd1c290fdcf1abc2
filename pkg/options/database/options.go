// Package database provides relational database options for the account,
// conversation and document stores.
package database

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Options defines configuration for the relational database.
type Options struct {
	// Driver is one of sqlite, mysql, postgres.
	Driver string `json:"driver" mapstructure:"driver"`

	// DSN overrides the connection fields when set. For sqlite it is the file path.
	DSN string `json:"-" mapstructure:"dsn"`

	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`

	// LogLevel is the gorm log level: silent, error, warn, info.
	LogLevel string `json:"log-level" mapstructure:"log-level"`

	// SlowThreshold marks queries slower than this as slow in the gorm log.
	SlowThreshold time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`

	// AutoMigrate creates or updates tables at startup.
	AutoMigrate bool `json:"auto-migrate" mapstructure:"auto-migrate"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Driver:                DriverSQLite,
		DSN:                   "_output/sentinel-rag.db",
		Host:                  "127.0.0.1",
		Database:              "sentinel_rag",
		MaxIdleConnections:    10,
		MaxOpenConnections:    50,
		MaxConnectionLifeTime: time.Hour,
		LogLevel:              "warn",
		SlowThreshold:         200 * time.Millisecond,
		AutoMigrate:           true,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "database."
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver (sqlite|mysql|postgres).")
	fs.StringVar(&o.DSN, p+"dsn", o.DSN, "Full DSN; for sqlite the database file path.")
	fs.StringVar(&o.Host, p+"host", o.Host, "Database host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Database port (0 uses the driver default).")
	fs.StringVar(&o.Username, p+"username", o.Username, "Database username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Database password.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Maximum idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Maximum open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum connection lifetime.")
	fs.StringVar(&o.LogLevel, p+"log-level", o.LogLevel, "Gorm log level (silent|error|warn|info).")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Slow query threshold.")
	fs.BoolVar(&o.AutoMigrate, p+"auto-migrate", o.AutoMigrate, "Run schema migration at startup.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	switch o.Driver {
	case DriverSQLite:
		if o.DSN == "" {
			errs = append(errs, fmt.Errorf("database dsn (file path) is required for sqlite"))
		}
	case DriverMySQL, DriverPostgres:
		if o.DSN == "" && (o.Host == "" || o.Database == "") {
			errs = append(errs, fmt.Errorf("database host and name are required for %s", o.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", o.Driver))
	}
	switch o.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		errs = append(errs, fmt.Errorf("invalid database log-level %q", o.LogLevel))
	}
	return errs
}

// BuildDSN returns the driver-specific connection string.
func (o *Options) BuildDSN() string {
	if o.DSN != "" {
		return o.DSN
	}
	switch o.Driver {
	case DriverMySQL:
		port := o.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			o.Username, o.Password, o.Host, port, o.Database)
	case DriverPostgres:
		port := o.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			o.Host, port, o.Username, o.Password, o.Database)
	default:
		return o.DSN
	}
}
