package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/qxautoml/devtools/tools/licenses/internal/config"
	"github.com/qxautoml/devtools/tools/licenses/pkg/output"
	"github.com/qxautoml/devtools/tools/licenses/pkg/publish"
	"github.com/qxautoml/devtools/tools/licenses/pkg/whitesource"
)

const (
	defaultEnvFile  = ".env"
	defaultLogLevel = "info"

	// Printed to stderr when fetching the report fails.
	requestFailedMessage = "HTTP Request failed"
)

var (
	configPath string
	envFile    string
	logLevel   string

	endpoint                  string
	productToken              string
	userKeyEnv                string
	excludeProjectOccurrences bool
	timeout                   time.Duration
	maxAttempts               int

	format     string
	outputPath string
	indent     string

	s3Bucket      string
	s3Key         string
	s3Region      string
	s3EndpointURL string

	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "license-report",
	Short: "Fetch the product license report from WhiteSource",
	Long: `license-report requests the license report of a product from the
WhiteSource API, removes internal identifiers from every library entry and
prints the result. It is meant to run in CI with the user key provided
through the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runFetch,
}

var fetchCmd = &cobra.Command{
	Use:           "fetch",
	Short:         "Fetch, filter and print the license report (default)",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runFetch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("license-report %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func runFetch(cmd *cobra.Command, args []string) error {
	log := newLogger(logLevel)

	if err := config.LoadEnvFile(envFile); err != nil {
		return usageError{err}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return usageError{err}
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("Operation started: fetch_license_report",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("format", cfg.Output.Format),
		slog.Int("max_attempts", cfg.MaxAttempts))

	client, err := whitesource.NewClient(log, whitesource.ClientConfig{
		Endpoint:                  cfg.Endpoint,
		ProductToken:              cfg.ProductToken,
		UserKey:                   cfg.UserKey,
		ExcludeProjectOccurrences: cfg.ExcludeProjectOccurrences,
		UserAgent:                 fmt.Sprintf("qxautoml-license-report/%s", version),
		HTTPClient:                &http.Client{Timeout: cfg.Timeout},
		Retry:                     whitesource.RetryOptions{MaxAttempts: cfg.MaxAttempts},
	})
	if err != nil {
		return usageError{err}
	}

	report, err := client.GetProductLicenses(ctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), requestFailedMessage)
		return fmt.Errorf("failed to fetch license report: %w", err)
	}

	removed, err := report.StripLibraryFields(cfg.StripFields...)
	if err != nil {
		return err
	}
	log.Debug("Stripped library fields", "fields", cfg.StripFields, "removed", removed)

	var buf bytes.Buffer
	if err := output.Render(&buf, cfg.Format(), report, output.Options{Indent: cfg.Output.Indent}); err != nil {
		return err
	}

	if err := writeOutput(cfg.Output.Path, buf.Bytes()); err != nil {
		return err
	}

	if cfg.Publish.S3.Enabled() {
		publisher, err := publish.NewS3Publisher(ctx, log, cfg.Publish.S3)
		if err != nil {
			return err
		}
		if _, err := publisher.Publish(ctx, buf.Bytes(), cfg.Format().ContentType()); err != nil {
			return err
		}
	}

	log.Info("Operation completed: fetch_license_report", slog.Int("removed_fields", removed))
	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if flags.Changed("product-token") {
		cfg.ProductToken = productToken
	}
	if flags.Changed("user-key-env") {
		cfg.UserKeyEnv = userKeyEnv
		cfg.ResolveUserKey()
	}
	if flags.Changed("exclude-project-occurrences") {
		cfg.ExcludeProjectOccurrences = excludeProjectOccurrences
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = maxAttempts
	}
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("output") {
		cfg.Output.Path = outputPath
	}
	if flags.Changed("indent") {
		cfg.Output.Indent = indent
	}
	if flags.Changed("s3-bucket") {
		cfg.Publish.S3.Bucket = s3Bucket
	}
	if flags.Changed("s3-key") {
		cfg.Publish.S3.Key = s3Key
	}
	if flags.Changed("s3-region") {
		cfg.Publish.S3.Region = s3Region
	}
	if flags.Changed("s3-endpoint-url") {
		cfg.Publish.S3.EndpointURL = s3EndpointURL
	}
}

// writeOutput writes data to stdout, or atomically to path so a failed run
// never leaves a truncated report behind.
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.Kitchen,
		AddSource:  slogLevel == slog.LevelDebug,
	}))
}

// usageError marks failures caused by configuration rather than the API.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment (ignored if missing)")
	flags.StringVar(&logLevel, "log-level", defaultLogLevel, "Log level (debug, info, warn, error)")

	flags.StringVar(&endpoint, "endpoint", whitesource.DefaultEndpoint, "WhiteSource API endpoint")
	flags.StringVar(&productToken, "product-token", "", "WhiteSource product token")
	flags.StringVar(&userKeyEnv, "user-key-env", config.DefaultUserKeyEnv, "Environment variable holding the WhiteSource user key")
	flags.BoolVar(&excludeProjectOccurrences, "exclude-project-occurrences", false, "Ask the API to omit per-project occurrences")
	flags.DurationVar(&timeout, "timeout", config.DefaultTimeout, "HTTP request timeout")
	flags.IntVar(&maxAttempts, "max-attempts", config.DefaultMaxAttempts, "Attempts for transient request failures")

	flags.StringVarP(&format, "format", "f", string(output.FormatJSON), "Output format (json, yaml, table)")
	flags.StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	flags.StringVar(&indent, "indent", "", "Indent string for json output (compact when empty)")

	flags.StringVar(&s3Bucket, "s3-bucket", "", "Publish the report to this S3 bucket")
	flags.StringVar(&s3Key, "s3-key", "", "S3 object key of the published report")
	flags.StringVar(&s3Region, "s3-region", "", "S3 region")
	flags.StringVar(&s3EndpointURL, "s3-endpoint-url", "", "Custom S3 endpoint (MinIO and similar)")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(fetchCmd)
}

func main() {
	// Add version command last so it appears after auto-generated commands
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
