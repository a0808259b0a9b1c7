package connectors

import (
	"net"

	logger "github.com/sirupsen/logrus"
)

// IsConnected probes a well-known host to tell whether the local
// network is up. Checked between placement retries.
func IsConnected() bool {
	config := GetConfig()

	conn, err := net.DialTimeout("tcp", config.ConnectivityHost, config.ConnectivityTimeout)
	if err != nil {
		logger.WithError(err).Warn("internet connectivity check failed")
		return false
	}
	_ = conn.Close()
	return true
}
