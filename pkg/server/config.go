package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/vitalstats/lens/pkg/dataset"
	"github.com/vitalstats/lens/pkg/theme"
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       VersionInfo
	ViewConfig        dataset.ViewConfig

	// DefaultTheme is used when a request does not name one.
	DefaultTheme string

	// CORSOrigins lists allowed origins; empty allows none.
	CORSOrigins []string

	// RateLimitPerMinute and RateLimitBurst bound per-IP request rates on
	// the /api routes. Zero disables limiting.
	RateLimitPerMinute int
	RateLimitBurst     int
}

func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if err := cfg.ViewConfig.Validate(); err != nil {
		return err
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = theme.Default().Name
	}
	if _, ok := theme.Lookup(cfg.DefaultTheme); !ok {
		return fmt.Errorf("unknown theme %q", cfg.DefaultTheme)
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return nil
}
