package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// TickPeriod is the scheduler's base heartbeat; signal and
	// reconciliation windows are detected on minute boundaries.
	TickPeriod time.Duration `envconfig:"TICK_PERIOD" default:"10s"`

	// SignalEveryMinutes is the signal evaluation cadence. Each
	// strategy still applies its own interval gating on top.
	SignalEveryMinutes int `envconfig:"SIGNAL_EVERY_MINUTES" default:"15"`

	// ReconcileEveryMinutes is the open-order check cadence.
	ReconcileEveryMinutes int `envconfig:"RECONCILE_EVERY_MINUTES" default:"3"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
