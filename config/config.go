package config

import (
	"strings"
	"time"
)

// Config holds all edge gateway configuration in a structured way.
type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Auth      AuthConfig
	Transport TransportConfig
	Watch     WatchConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	CorsAllowedOrigins []string
	ServerID           string
}

// BackendConfig points at the messaging backend this edge fronts.
type BackendConfig struct {
	// APIBaseURL is the REST API root, e.g. https://api.example.com/v1
	APIBaseURL string
	// TransportBaseURL is the websocket root, e.g. wss://ws.example.com
	TransportBaseURL string
	// RefreshPath is the token refresh endpoint relative to APIBaseURL.
	RefreshPath string
	// ServiceAccessToken/ServiceRefreshToken seed the edge's own credential
	// session used for the channel watch loop and transport bootstrap.
	ServiceAccessToken  string
	ServiceRefreshToken string
}

type AuthConfig struct {
	AccessCookie  string
	RefreshCookie string
	SessionCookie string
	// ExpirySkew is how close to expiry an access token may get before the
	// gateway refreshes it ahead of forwarding a request.
	ExpirySkew time.Duration
}

type TransportConfig struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
}

type WatchConfig struct {
	// Interval is the tick at which un-joined channels are (re)joined.
	Interval time.Duration
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	cfg := &Config{
		App: AppConfig{
			Version:            "v1.2.0",
			Port:               getEnv("APP_PORT", "3080"),
			Debug:              getEnvBool("APP_DEBUG", false),
			Environment:        getEnv("APP_ENV", "development"),
			BasePath:           getEnv("APP_BASE_PATH", ""),
			CorsAllowedOrigins: corsOrigins,
			ServerID:           getEnv("SERVER_ID", ""),
		},
		Backend: BackendConfig{
			APIBaseURL:          getEnv("BACKEND_API_BASE_URL", "http://localhost:8000/api/v1"),
			TransportBaseURL:    getEnv("BACKEND_TRANSPORT_BASE_URL", "ws://localhost:8000"),
			RefreshPath:         getEnv("BACKEND_REFRESH_PATH", "/auth/refresh"),
			ServiceAccessToken:  getEnv("BACKEND_SERVICE_ACCESS_TOKEN", ""),
			ServiceRefreshToken: getEnv("BACKEND_SERVICE_REFRESH_TOKEN", ""),
		},
		Auth: AuthConfig{
			AccessCookie:  getEnv("AUTH_ACCESS_COOKIE", "edge_access"),
			RefreshCookie: getEnv("AUTH_REFRESH_COOKIE", "edge_refresh"),
			SessionCookie: getEnv("AUTH_SESSION_COOKIE", "edge_session"),
			ExpirySkew:    time.Duration(getEnvInt("AUTH_EXPIRY_SKEW_SECONDS", 60)) * time.Second,
		},
		Transport: TransportConfig{
			ReconnectAttempts: getEnvInt("TRANSPORT_RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:    time.Duration(getEnvInt("TRANSPORT_RECONNECT_DELAY_MS", 3000)) * time.Millisecond,
			HandshakeTimeout:  time.Duration(getEnvInt("TRANSPORT_HANDSHAKE_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Watch: WatchConfig{
			Interval: time.Duration(getEnvInt("WATCH_INTERVAL_MS", 5000)) * time.Millisecond,
		},
	}

	Global = cfg
	return cfg, nil
}
