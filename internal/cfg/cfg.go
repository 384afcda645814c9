package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	APITokenPrevious      string
	MaxBodyBytes          int64
	MaxScanDevices        int
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on scan submission and eviction (empty = open)")
	fs.StringVar(&c.APITokenPrevious, "api-token-previous", "", "previous bearer token still accepted during rotation")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", 1<<20, "maximum request body size in bytes (1024..67108864)")
	fs.IntVar(&c.MaxScanDevices, "max-scan-devices", 1024, "maximum device records accepted in one scan (1..100000)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for new device notifications")
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

	// a previous token without a current one would leave writes open to anyone holding the old secret
	if c.APITokenPrevious != "" && c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN_PREVIOUS requires API_TOKEN"))
	}

	if c.MaxBodyBytes < 1024 || c.MaxBodyBytes > 64<<20 {
		errs = append(errs, fmt.Errorf("invalid MAX_BODY_BYTES %d (must be 1024..67108864)", c.MaxBodyBytes))
	}
	if c.MaxScanDevices <= 0 || c.MaxScanDevices > 100000 {
		errs = append(errs, fmt.Errorf("invalid MAX_SCAN_DEVICES %d (must be 1..100000)", c.MaxScanDevices))
	}

	if c.SlackWebhookURL != "" {
		u, err := url.Parse(c.SlackWebhookURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, errors.New("invalid SLACK_WEBHOOK_URL (must be an absolute http(s) URL)"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Tokens returns the configured bearer tokens, current first.
func (c *Config) Tokens() []string {
	var out []string
	for _, t := range []string{c.APIToken, c.APITokenPrevious} {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
