// Package config loads and validates jira-fork-tool configuration.
//
// Configuration comes from a YAML file with environment variable overrides
// (JIRA_FORK_* keys, e.g. JIRA_FORK_SOURCE_API_TOKEN overrides
// source.api_token). Validation failures are configuration errors: fatal,
// reported before any remote call is made.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Error is a configuration error: malformed or missing settings that abort
// an operation before any remote call.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "configuration error: " + e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Gap handling strategies.
const (
	GapPlaceholder = "placeholder"
	GapSkip        = "skip"
	GapError       = "error"
)

// Change detection methods for incremental sync.
const (
	ChangeDetectionUpdated  = "updated"
	ChangeDetectionAuditLog = "audit_log"
)

// InstanceConfig configures one Jira instance (source or destination).
type InstanceConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	Email      string `mapstructure:"email" yaml:"email"`
	APIToken   string `mapstructure:"api_token" yaml:"api_token"`
	ProjectKey string `mapstructure:"project_key" yaml:"project_key,omitempty"`
	Timeout    int    `mapstructure:"timeout" yaml:"timeout"`
}

// SyncConfig configures synchronization behavior.
type SyncConfig struct {
	PreserveNumbering  bool              `mapstructure:"preserve_numbering" yaml:"preserve_numbering"`
	GapStrategy        string            `mapstructure:"gap_strategy" yaml:"gap_strategy"`
	PlaceholderSummary string            `mapstructure:"placeholder_summary" yaml:"placeholder_summary"`
	DefaultTypeID      string            `mapstructure:"default_type_id" yaml:"default_type_id,omitempty"`
	IncludeAttachments bool              `mapstructure:"include_attachments" yaml:"include_attachments"`
	IncludeComments    bool              `mapstructure:"include_comments" yaml:"include_comments"`
	IncludeLinks       bool              `mapstructure:"include_links" yaml:"include_links"`
	BatchSize          int               `mapstructure:"batch_size" yaml:"batch_size"`
	MaxRetries         int               `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay         int               `mapstructure:"retry_delay" yaml:"retry_delay"`
	RateLimitBuffer    float64           `mapstructure:"rate_limit_buffer" yaml:"rate_limit_buffer"`
	FieldMappings      map[string]string `mapstructure:"field_mappings" yaml:"field_mappings,omitempty"`
	UserMappings       map[string]string `mapstructure:"user_mappings" yaml:"user_mappings,omitempty"`
	IncrementalEnabled bool              `mapstructure:"incremental_enabled" yaml:"incremental_enabled"`
	SyncInterval       int               `mapstructure:"sync_interval" yaml:"sync_interval"`
	ChangeDetection    string            `mapstructure:"change_detection_method" yaml:"change_detection_method"`
}

// DatabaseConfig locates the local state database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the complete tool configuration.
type Config struct {
	Source      InstanceConfig `mapstructure:"source" yaml:"source"`
	Destination InstanceConfig `mapstructure:"destination" yaml:"destination"`
	Sync        SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Database    DatabaseConfig `mapstructure:"database" yaml:"database"`
	Logging     LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// Load reads configuration from a YAML file with environment overrides and
// validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("JIRA_FORK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errorf("configuration file not found: %s", path)
		}
		return nil, errorf("reading %s: %v", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errorf("parsing %s: %v", path, err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.timeout", 30)
	v.SetDefault("destination.timeout", 30)
	v.SetDefault("sync.preserve_numbering", true)
	v.SetDefault("sync.gap_strategy", GapPlaceholder)
	v.SetDefault("sync.placeholder_summary", "[PLACEHOLDER] Gap in issue numbering")
	v.SetDefault("sync.include_attachments", true)
	v.SetDefault("sync.include_comments", true)
	v.SetDefault("sync.include_links", true)
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.retry_delay", 5)
	v.SetDefault("sync.rate_limit_buffer", 0.8)
	v.SetDefault("sync.incremental_enabled", true)
	v.SetDefault("sync.sync_interval", 3600)
	v.SetDefault("sync.change_detection_method", ChangeDetectionUpdated)
	v.SetDefault("database.path", "data/jira_fork_tool.db")
	v.SetDefault("logging.level", "info")
}

// Validate checks the complete configuration and returns every problem
// found, empty when valid.
func (c *Config) Validate() []string {
	var errs []string

	errs = append(errs, validateInstance("source", &c.Source)...)
	errs = append(errs, validateInstance("destination", &c.Destination)...)

	if c.Source.URL != "" && c.Source.URL == c.Destination.URL &&
		c.Source.ProjectKey == c.Destination.ProjectKey {
		errs = append(errs, "source and destination cannot be the same project")
	}

	if c.Sync.BatchSize <= 0 {
		errs = append(errs, "batch size must be positive")
	}
	if c.Sync.MaxRetries < 0 {
		errs = append(errs, "max retries cannot be negative")
	}
	if c.Sync.RateLimitBuffer <= 0 || c.Sync.RateLimitBuffer > 1 {
		errs = append(errs, "rate limit buffer must be between 0 and 1")
	}

	switch c.Sync.GapStrategy {
	case GapPlaceholder, GapSkip, GapError:
	default:
		errs = append(errs, fmt.Sprintf("gap strategy must be one of: %s, %s, %s",
			GapPlaceholder, GapSkip, GapError))
	}

	switch c.Sync.ChangeDetection {
	case ChangeDetectionUpdated, ChangeDetectionAuditLog:
	default:
		errs = append(errs, fmt.Sprintf("change detection method must be one of: %s, %s",
			ChangeDetectionUpdated, ChangeDetectionAuditLog))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database path is required")
	}

	return errs
}

func validateInstance(name string, inst *InstanceConfig) []string {
	var errs []string
	if inst.URL == "" {
		errs = append(errs, name+" URL is required")
	} else {
		parsed, err := url.Parse(inst.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid %s URL: %s", name, inst.URL))
		}
		inst.URL = strings.TrimSuffix(inst.URL, "/")
	}
	if inst.APIToken == "" {
		errs = append(errs, name+" API token is required")
	}
	return errs
}

// Save writes the configuration as YAML, creating the file with restrictive
// permissions since it may carry credentials.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errorf("serializing configuration: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errorf("writing %s: %v", path, err)
	}
	return nil
}
