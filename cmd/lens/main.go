package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/vitalstats/lens/pkg/dataset"
	"github.com/vitalstats/lens/pkg/logger"
	"github.com/vitalstats/lens/pkg/metrics"
	"github.com/vitalstats/lens/pkg/server"
)

// Build-time version information, set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present; flags and env vars still take precedence.
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", ":8080", "HTTP listen address (or set LENS_LISTEN_ADDR env var)")
	datasetFlag := flag.String("dataset", "dashboard_data.csv", "dataset location: file path or s3://bucket/key (or set LENS_DATASET env var)")
	refreshIntervalFlag := flag.Duration("refresh-interval", 0, "dataset refresh interval, 0 loads once (or set LENS_REFRESH_INTERVAL env var)")
	themeFlag := flag.String("theme", "reds", "default presentation theme (or set LENS_THEME env var)")
	corsOriginsFlag := flag.StringSlice("cors-origins", nil, "allowed CORS origins for /api (or set LENS_CORS_ORIGINS env var, comma-separated)")
	rateLimitFlag := flag.Int("rate-limit", 100, "per-IP API requests per minute, 0 disables (or set LENS_RATE_LIMIT env var)")
	rateBurstFlag := flag.Int("rate-burst", 20, "per-IP API burst size")
	sentryDSNFlag := flag.String("sentry-dsn", "", "Sentry DSN for error reporting (or set SENTRY_DSN env var)")

	flag.Parse()

	// Override flags with environment variables if set
	if v := os.Getenv("LENS_LISTEN_ADDR"); v != "" {
		*listenAddrFlag = v
	}
	if v := os.Getenv("LENS_DATASET"); v != "" {
		*datasetFlag = v
	}
	if v := os.Getenv("LENS_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LENS_REFRESH_INTERVAL: %w", err)
		}
		*refreshIntervalFlag = d
	}
	if v := os.Getenv("LENS_THEME"); v != "" {
		*themeFlag = v
	}
	if v := os.Getenv("LENS_CORS_ORIGINS"); v != "" {
		*corsOriginsFlag = splitComma(v)
	}
	if v := os.Getenv("LENS_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LENS_RATE_LIMIT: %w", err)
		}
		*rateLimitFlag = n
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		*sentryDSNFlag = v
	}

	log := logger.New(*verboseFlag)

	if *sentryDSNFlag != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     *sentryDSNFlag,
			Release: version,
		}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := dataset.ParseSource(ctx, *datasetFlag)
	if err != nil {
		return err
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	srv, err := server.New(ctx, server.Config{
		ListenAddr:  *listenAddrFlag,
		VersionInfo: server.VersionInfo{Version: version, Commit: commit, Date: date},
		ViewConfig: dataset.ViewConfig{
			Logger:          log,
			Source:          source,
			RefreshInterval: *refreshIntervalFlag,
			OnRefreshError: func(err error) {
				if *sentryDSNFlag != "" {
					sentry.CaptureException(err)
				}
			},
		},
		DefaultTheme:       *themeFlag,
		CORSOrigins:        *corsOriginsFlag,
		RateLimitPerMinute: *rateLimitFlag,
		RateLimitBurst:     *rateBurstFlag,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.View().WaitReady(ctx); err != nil {
			return nil // shutdown before first load, Run reports the reason
		}
		log.Info("dataset ready, serving queries", "source", source.String())
		return nil
	})
	return g.Wait()
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
