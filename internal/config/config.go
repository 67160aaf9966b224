// Package config loads process configuration via viper, layering
// environment variables (prefixed RAGSPACE_) and defaults over flags
// bound by cmd/ragd's cobra commands. None of these knobs are
// spec-mandated; defaults follow the teacher's own hardcoded constants
// (chunk size 1000/overlap 200 from the Splitter, http timeout from the
// Embedding Client).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the CLI and its wired adapters consult.
type Config struct {
	DataDir          string
	LogLevel         string
	LogPretty        bool
	DefaultChunkSize int
	DefaultOverlap   int
	DefaultTopK      int
	HTTPTimeout      time.Duration
	PDFToTextPath    string
	WatchFolder      string
}

// Load reads configuration from RAGSPACE_-prefixed environment variables
// over built-in defaults. v is typically bound to a cobra command's
// flag set by the caller before Load runs.
func Load(v *viper.Viper) *Config {
	v.SetEnvPrefix("ragspace")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data-dir", "./data")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-pretty", false)
	v.SetDefault("chunk-size", 1000)
	v.SetDefault("chunk-overlap", 200)
	v.SetDefault("top-k", 5)
	v.SetDefault("http-timeout", 60*time.Second)
	v.SetDefault("pdftotext-path", "")
	v.SetDefault("watch-folder", "")

	return &Config{
		DataDir:          v.GetString("data-dir"),
		LogLevel:         v.GetString("log-level"),
		LogPretty:        v.GetBool("log-pretty"),
		DefaultChunkSize: v.GetInt("chunk-size"),
		DefaultOverlap:   v.GetInt("chunk-overlap"),
		DefaultTopK:      v.GetInt("top-k"),
		HTTPTimeout:      v.GetDuration("http-timeout"),
		PDFToTextPath:    v.GetString("pdftotext-path"),
		WatchFolder:      v.GetString("watch-folder"),
	}
}
