package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from environment variables.
// Account records and the model/ratio tables live in the JSON config file
// (see domain/jsoncfg); the environment only carries service-level tuning.
type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	Port       string `env:"PORT" envDefault:"8080"`
	ConfigPath string `env:"CONFIG_PATH" envDefault:"config.json"`

	DreaminaBaseURL string `env:"DREAMINA_BASE_URL" envDefault:"https://mweb-api-sg.capcut.com"`
	CommerceBaseURL string `env:"COMMERCE_BASE_URL" envDefault:"https://commerce-api-sg.capcut.com"`
	ImagexBaseURL   string `env:"IMAGEX_BASE_URL" envDefault:"https://imagex-normal-sg.capcutapi.com"`

	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	PollInterval         time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	MaxWait              time.Duration `env:"MAX_WAIT" envDefault:"120s"`
	AbortOnUploadFailure bool          `env:"ABORT_ON_UPLOAD_FAILURE" envDefault:"false"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"5m"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// LoadConfig parses the environment into a Config.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if cfg.MaxWait < cfg.PollInterval {
		return nil, fmt.Errorf("MAX_WAIT must be at least POLL_INTERVAL")
	}
	return cfg, nil
}
