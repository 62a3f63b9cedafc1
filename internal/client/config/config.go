package config

import "time"

// Config holds runtime settings for the teaching-assistant client.
//
// Fields:
//   - APIBaseURL: base URL of the backend REST API.
//   - RequestTimeout: per-request HTTP timeout.
//   - RefreshMargin: how long before access-token expiry the scheduled
//     refresh fires.
//   - DefaultCacheTTL: lifetime of cached API reads.
//   - DatabaseDSN: path/DSN of the local SQLite database.
type Config struct {
	APIBaseURL      string
	RequestTimeout  time.Duration
	RefreshMargin   time.Duration
	DefaultCacheTTL time.Duration
	DatabaseDSN     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api/v1"
	c.RequestTimeout = 15 * time.Second
	c.RefreshMargin = 5 * time.Minute
	c.DefaultCacheTTL = 30 * time.Second
	c.DatabaseDSN = "assistant.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
