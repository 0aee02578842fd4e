package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/qxautoml/devtools/tools/licenses/pkg/output"
	"github.com/qxautoml/devtools/tools/licenses/pkg/publish"
	"github.com/qxautoml/devtools/tools/licenses/pkg/whitesource"
)

const (
	DefaultUserKeyEnv  = "WHITESOURCE_USER_KEY"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
)

// Config is the complete license-report configuration.
type Config struct {
	Endpoint                  string        `yaml:"endpoint"`
	ProductToken              string        `yaml:"product_token"`
	UserKeyEnv                string        `yaml:"user_key_env"`
	ExcludeProjectOccurrences bool          `yaml:"exclude_project_occurrences"`
	Timeout                   time.Duration `yaml:"timeout"`
	MaxAttempts               int           `yaml:"max_attempts"`
	StripFields               []string      `yaml:"strip_fields"`
	Output                    OutputConfig  `yaml:"output"`
	Publish                   PublishConfig `yaml:"publish"`

	// UserKey is resolved from the environment variable named by UserKeyEnv
	// and is never read from or written to the config file.
	UserKey string `yaml:"-"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
	Indent string `yaml:"indent"`
}

type PublishConfig struct {
	S3 publish.S3Config `yaml:"s3"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:    whitesource.DefaultEndpoint,
		UserKeyEnv:  DefaultUserKeyEnv,
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		StripFields: append([]string(nil), whitesource.StrippedLibraryFields...),
		Output: OutputConfig{
			Format: string(output.FormatJSON),
		},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path (if any) over the defaults and then
// applies environment overrides.
// Priority: CLI flags > Environment variables > Config file > Defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from LICENSE_REPORT_* variables and resolves the
// user key.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LICENSE_REPORT_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("LICENSE_REPORT_PRODUCT_TOKEN"); v != "" {
		c.ProductToken = v
	}
	if v := os.Getenv("LICENSE_REPORT_USER_KEY_ENV"); v != "" {
		c.UserKeyEnv = v
	}
	if v := os.Getenv("LICENSE_REPORT_EXCLUDE_PROJECT_OCCURRENCES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LICENSE_REPORT_EXCLUDE_PROJECT_OCCURRENCES: %w", err)
		}
		c.ExcludeProjectOccurrences = b
	}
	if v := os.Getenv("LICENSE_REPORT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LICENSE_REPORT_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("LICENSE_REPORT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LICENSE_REPORT_MAX_ATTEMPTS: %w", err)
		}
		c.MaxAttempts = n
	}
	if v := os.Getenv("LICENSE_REPORT_STRIP_FIELDS"); v != "" {
		c.StripFields = splitList(v)
	}
	if v := os.Getenv("LICENSE_REPORT_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("LICENSE_REPORT_OUTPUT"); v != "" {
		c.Output.Path = v
	}
	if v := os.Getenv("LICENSE_REPORT_S3_BUCKET"); v != "" {
		c.Publish.S3.Bucket = v
	}
	if v := os.Getenv("LICENSE_REPORT_S3_KEY"); v != "" {
		c.Publish.S3.Key = v
	}
	if v := os.Getenv("LICENSE_REPORT_S3_REGION"); v != "" {
		c.Publish.S3.Region = v
	}
	if v := os.Getenv("LICENSE_REPORT_S3_ENDPOINT_URL"); v != "" {
		c.Publish.S3.EndpointURL = v
	}
	if v := os.Getenv("LICENSE_REPORT_S3_ACCESS_KEY_ID"); v != "" {
		c.Publish.S3.AccessKeyID = v
	}
	if v := os.Getenv("LICENSE_REPORT_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Publish.S3.SecretAccessKey = v
	}

	c.ResolveUserKey()
	return nil
}

// ResolveUserKey reads the user key from the variable named by UserKeyEnv.
func (c *Config) ResolveUserKey() {
	if c.UserKeyEnv != "" {
		c.UserKey = os.Getenv(c.UserKeyEnv)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if c.ProductToken == "" {
		return fmt.Errorf("product token cannot be empty (set --product-token or LICENSE_REPORT_PRODUCT_TOKEN)")
	}
	if c.UserKeyEnv == "" {
		return fmt.Errorf("user key environment variable name cannot be empty")
	}
	if c.UserKey == "" {
		return fmt.Errorf("environment variable %s is not set", c.UserKeyEnv)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %s", c.Timeout)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be > 0, got %d", c.MaxAttempts)
	}
	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if err := c.Publish.S3.Validate(); err != nil {
		return err
	}
	return nil
}

// Format returns the parsed output format. Call after Validate.
func (c *Config) Format() output.Format {
	f, _ := output.ParseFormat(c.Output.Format)
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
