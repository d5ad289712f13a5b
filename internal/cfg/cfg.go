package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	ClaudeAPIKey          string
	ClaudeModel           string
	QueueMaxItems         int
	QueueMaxPerSource     int
	QueueMinScore         float64
	WritebackBuffer       int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API routes (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude summarizer (empty = summaries disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for summaries")
	fs.IntVar(&c.QueueMaxItems, "queue-max-items", 10, "default number of items per queue read (1..100)")
	fs.IntVar(&c.QueueMaxPerSource, "queue-max-per-source", 3, "default per-source cap in diversity mode (1..queue-max-items)")
	fs.Float64Var(&c.QueueMinScore, "queue-min-score", 0, "default score threshold for queue reads (0..1)")
	fs.IntVar(&c.WritebackBuffer, "writeback-buffer", 128, "write-back task queue capacity (1..10000)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Token auth is optional, but a short token is almost certainly a typo
	if c.APIToken != "" && len(c.APIToken) < 16 {
		errs = append(errs, fmt.Errorf("API_TOKEN too short (%d chars, need at least 16)", len(c.APIToken)))
	}

	// The summarizer is optional, but a key without a model is a mistake
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if c.QueueMaxItems <= 0 || c.QueueMaxItems > 100 {
		errs = append(errs, fmt.Errorf("invalid QUEUE_MAX_ITEMS %d (must be 1..100)", c.QueueMaxItems))
	}
	if c.QueueMaxPerSource <= 0 || c.QueueMaxPerSource > c.QueueMaxItems {
		errs = append(errs, fmt.Errorf("invalid QUEUE_MAX_PER_SOURCE %d (must be 1..QUEUE_MAX_ITEMS)", c.QueueMaxPerSource))
	}
	if !(c.QueueMinScore >= 0 && c.QueueMinScore <= 1) { // also rejects NaN
		errs = append(errs, fmt.Errorf("invalid QUEUE_MIN_SCORE %v (must be 0..1)", c.QueueMinScore))
	}
	if c.WritebackBuffer <= 0 || c.WritebackBuffer > 10000 {
		errs = append(errs, fmt.Errorf("invalid WRITEBACK_BUFFER %d (must be 1..10000)", c.WritebackBuffer))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
