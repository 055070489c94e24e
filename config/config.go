package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all configuration parameters for the client.
type Config struct {
	APIURL         string        `envconfig:"API_URL" default:"http://localhost:3000"`
	RPCURL         string        `envconfig:"RPC_URL" default:"http://localhost:8545"`
	KeyFile        string        `envconfig:"KEY_FILE" default:"wallet.key"`
	BridgeURI      string        `envconfig:"BRIDGE_URI"`
	Team           string        `envconfig:"TEAM" default:"UNI"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	FaucetTimeout  time.Duration `envconfig:"FAUCET_TIMEOUT" default:"10m"`
	ConfirmFloor   time.Duration `envconfig:"CONFIRM_FLOOR" default:"500ms"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	NoticeDuration time.Duration `envconfig:"NOTICE_DURATION" default:"5s"`
	Listen         string        `envconfig:"LISTEN" default:":3000"`
	Headless       bool          `envconfig:"HEADLESS" default:"false"`
}

// Load reads configuration from UNIPIG_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("unipig", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.FaucetTimeout < 0 {
		return fmt.Errorf("faucet timeout must not be negative, got %s", c.FaucetTimeout)
	}
	if c.ConfirmFloor < 0 {
		return fmt.Errorf("confirm floor must not be negative, got %s", c.ConfirmFloor)
	}
	switch c.Team {
	case "UNI", "PIGI":
	default:
		return fmt.Errorf("unknown team %q", c.Team)
	}
	return nil
}

// FaucetTicks is the number of status checks that fit in FaucetTimeout,
// or 0 for no limit.
func (c *Config) FaucetTicks() int {
	if c.FaucetTimeout == 0 {
		return 0
	}
	if n := int(c.FaucetTimeout / c.PollInterval); n > 0 {
		return n
	}
	return 1
}
