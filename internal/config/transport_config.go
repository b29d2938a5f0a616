package config

import "time"

type Transport struct{}

var _ TransportConfig = Transport{}

func (Transport) GetHTTPTimeout() time.Duration {
	return GetEnvDuration("HTTP_TIMEOUT", 15*time.Second)
}

func (Transport) GetMaxReconnectAttempts() int {
	return GetEnvInt("RECONNECT_ATTEMPTS", 5)
}

// GetReconnectInterval is a fixed delay between attempts, there is no backoff.
func (Transport) GetReconnectInterval() time.Duration {
	return GetEnvDuration("RECONNECT_INTERVAL", 3*time.Second)
}

func (Transport) GetMaxQueuedMessages() int {
	return GetEnvInt("MAX_QUEUED_MESSAGES", 500)
}
