package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL     string        `envconfig:"KITE_BASE_URL" default:"https://api.kite.trade"`
	TickerURL   string        `envconfig:"KITE_TICKER_URL" default:"wss://ws.kite.trade"`
	APIKey      string        `envconfig:"KITE_API_KEY"`
	HTTPTimeout time.Duration `envconfig:"KITE_HTTP_TIMEOUT" default:"15s"`

	// ConnectivityHost is dialled between placement retries to tell a
	// broker outage apart from a dead local network.
	ConnectivityHost    string        `envconfig:"CONNECTIVITY_HOST" default:"one.one.one.one:80"`
	ConnectivityTimeout time.Duration `envconfig:"CONNECTIVITY_TIMEOUT" default:"2s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
