package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/flagx"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config.
type JsonConfig struct {
	APIBaseURL      string         `json:"api_base_url"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	RefreshMargin   timex.Duration `json:"refresh_margin"`
	DefaultCacheTTL timex.Duration `json:"default_cache_ttl"`
	DatabaseDSN     string         `json:"database_dsn"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c or -config flags; with neither present nothing is
// loaded. Zero-valued JSON fields keep the prior value, so a partial config
// file only overrides what it names. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.RefreshMargin.Duration > 0 {
		cfg.RefreshMargin = time.Duration(jc.RefreshMargin.Duration)
	}
	if jc.DefaultCacheTTL.Duration > 0 {
		cfg.DefaultCacheTTL = time.Duration(jc.DefaultCacheTTL.Duration)
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
}
