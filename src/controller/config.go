package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MaxPlacementAttempts bounds the place/correlate cycle before a
	// placement is abandoned for the scheduling cycle.
	MaxPlacementAttempts int `envconfig:"MAX_PLACEMENT_ATTEMPTS" default:"3"`

	// AmbiguityGraceWait is how long to wait after a gateway error
	// before checking whether the order actually reached the broker.
	AmbiguityGraceWait time.Duration `envconfig:"AMBIGUITY_GRACE_WAIT" default:"5s"`

	// CorrelationWindow is the maximum age of a broker order for it to
	// be correlated with the submission that just errored.
	CorrelationWindow time.Duration `envconfig:"CORRELATION_WINDOW" default:"60s"`

	RetryPause      time.Duration `envconfig:"RETRY_PAUSE" default:"1s"`
	NetworkDownWait time.Duration `envconfig:"NETWORK_DOWN_WAIT" default:"5s"`

	// PostPlaceWait gives the broker a beat to materialize the order
	// before its history is fetched.
	PostPlaceWait time.Duration `envconfig:"POST_PLACE_WAIT" default:"300ms"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
