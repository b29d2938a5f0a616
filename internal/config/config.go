package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	TransportConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetDataFolder() string
	GetAPIBaseURL() string
	GetWSBaseURL() string
}

// TransportConfig holds the tunables of the HTTP gateway and the websocket session.
type TransportConfig interface {
	GetHTTPTimeout() time.Duration
	GetMaxReconnectAttempts() int
	GetReconnectInterval() time.Duration
	GetMaxQueuedMessages() int
}

type mainConfig struct {
	EnvVars
	Transport
}

// New loads a .env file when one exists and returns the environment backed config.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
