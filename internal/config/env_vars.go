package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	appNameVar = "APP_NAME"
	envVar     = "ENV"
	folderVar  = "FOLDER"
	apiURLVar  = "API_URL"
	wsURLVar   = "WS_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Chat")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}

// GetDataFolder is where the durable credential store lives.
func (EnvVars) GetDataFolder() string {
	return GetEnv(folderVar, "./data")
}

// GetAPIBaseURL returns the REST base URL without a trailing slash (e.g. "https://chat.example.com")
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiURLVar, "http://localhost:8000"), "/")
}

// GetWSBaseURL returns the websocket base URL. When unset it is derived from the API URL.
func (e EnvVars) GetWSBaseURL() string {
	if ws := os.Getenv(wsURLVar); ws != "" {
		return strings.TrimRight(ws, "/")
	}
	api := e.GetAPIBaseURL()
	switch {
	case strings.HasPrefix(api, "https://"):
		return "wss://" + strings.TrimPrefix(api, "https://")
	case strings.HasPrefix(api, "http://"):
		return "ws://" + strings.TrimPrefix(api, "http://")
	}
	return api
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}
