package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ClientConfig drives cmd/contribute. It shares the CONTRIB prefix but none of the
// server secrets.
type ClientConfig struct {
	APIURL       string        `envconfig:"CONTRIB_CLIENT_API_URL" default:"http://localhost:8080"`
	Token        string        `envconfig:"CONTRIB_CLIENT_TOKEN"`
	StateDir     string        `envconfig:"CONTRIB_CLIENT_STATE_DIR"`
	CallbackURL  string        `envconfig:"CONTRIB_CLIENT_CALLBACK_URL"`
	ScreenWidth  int           `envconfig:"CONTRIB_CLIENT_SCREEN_WIDTH" default:"1440"`
	ScreenHeight int           `envconfig:"CONTRIB_CLIENT_SCREEN_HEIGHT" default:"900"`
	LogLevel     string        `envconfig:"CONTRIB_LOG_LEVEL" default:"warn"`
	PollInterval time.Duration `envconfig:"CONTRIB_CLIENT_POLL_INTERVAL" default:"3s"`
	FX           FXConfig
}

func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("%s is not a valid url: %w", EnvClientAPIURL, err)
	}
	return &cfg, nil
}
