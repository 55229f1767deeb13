package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"floroexpress/internal/domain"
)

// Environment variables that override persisted settings.
const (
	EnvGCPProject = "FLOROEXPRESS_GCP_PROJECT"
	EnvGCPRegion  = "FLOROEXPRESS_GCP_REGION"
	EnvLogLevel   = "FLOROEXPRESS_LOG_LEVEL"
)

// DefaultLocation is used when geolocation is unavailable (Manila).
var DefaultLocation = domain.GeoPoint{Lat: 14.5995, Lng: 120.9842}

// Dir returns the per-user application directory.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".floroexpress")
}

// DefaultPath returns the settings file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "settings.yaml")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		LogLevel:        "info",
		LogStorePath:    filepath.Join(Dir(), "logs.db"),
		LogCap:          1000,
		DefaultLocation: DefaultLocation,
		Analysis: domain.AnalysisSettings{
			Model:     "gemini-2.0-flash",
			Timeout:   30 * time.Second,
			ChunkSize: 4000,
			MaxChunks: 3,
		},
		Channel: DefaultChannelSettings(),
	}
}

// DefaultChannelSettings returns the simulated server timings.
func DefaultChannelSettings() domain.ChannelSettings {
	return domain.ChannelSettings{
		LoginAck:        500 * time.Millisecond,
		AIProcess:       1500 * time.Millisecond,
		DeliveryAck:     time.Second,
		ShopSearch:      1500 * time.Millisecond,
		QRCode:          time.Second,
		ShopConfirm:     time.Second,
		DeliveryConfirm: time.Second,
		PrintDuration:   90 * time.Second,
		RiderDispatch:   2 * time.Second,
		RouteLeg:        5 * time.Second,
		StatusTick:      "@every 5s",
		PrintJobsTick:   "@every 8s",
		HistorySize:     500,
	}
}

// Normalize fills zero fields of s from the defaults.
func Normalize(s domain.Settings) domain.Settings {
	def := DefaultSettings()
	if strings.TrimSpace(s.LogLevel) == "" {
		s.LogLevel = def.LogLevel
	}
	if strings.TrimSpace(s.LogStorePath) == "" {
		s.LogStorePath = def.LogStorePath
	}
	if s.LogCap <= 0 {
		s.LogCap = def.LogCap
	}
	if s.DefaultLocation == (domain.GeoPoint{}) {
		s.DefaultLocation = def.DefaultLocation
	}
	if s.Analysis.Model == "" {
		s.Analysis.Model = def.Analysis.Model
	}
	if s.Analysis.Timeout <= 0 {
		s.Analysis.Timeout = def.Analysis.Timeout
	}
	if s.Analysis.ChunkSize <= 0 {
		s.Analysis.ChunkSize = def.Analysis.ChunkSize
	}
	if s.Analysis.MaxChunks <= 0 {
		s.Analysis.MaxChunks = def.Analysis.MaxChunks
	}
	if s.Channel == (domain.ChannelSettings{}) {
		s.Channel = def.Channel
	}
	if s.Channel.StatusTick == "" {
		s.Channel.StatusTick = def.Channel.StatusTick
	}
	if s.Channel.PrintJobsTick == "" {
		s.Channel.PrintJobsTick = def.Channel.PrintJobsTick
	}
	if s.Channel.HistorySize <= 0 {
		s.Channel.HistorySize = def.Channel.HistorySize
	}
	return s
}

// ApplyEnv overlays environment overrides onto s.
func ApplyEnv(s domain.Settings, getenv func(string) string) domain.Settings {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvGCPProject)); v != "" {
		s.Analysis.Project = v
	}
	if v := strings.TrimSpace(getenv(EnvGCPRegion)); v != "" {
		s.Analysis.Region = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	return s
}
