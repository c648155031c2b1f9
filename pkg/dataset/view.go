package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vitalstats/lens/pkg/metrics"
)

type ViewConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Source Source

	// RefreshInterval of 0 loads the dataset once and never again.
	RefreshInterval time.Duration

	// OnRefreshError is called with refresh failures after the first
	// successful load, e.g. to report them to an error tracker. Optional.
	OnRefreshError func(error)
}

func (cfg *ViewConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if cfg.RefreshInterval < 0 {
		return errors.New("refresh interval must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// View owns the currently loaded Dataset and keeps it fresh from the
// configured source. Consumers get an immutable snapshot from Dataset();
// refreshes swap the pointer, never mutate in place.
type View struct {
	log       *slog.Logger
	cfg       ViewConfig
	refreshMu sync.Mutex

	mu      sync.RWMutex
	current *Dataset

	readyOnce sync.Once
	readyCh   chan struct{}
}

func NewView(cfg ViewConfig) (*View, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &View{
		log:     cfg.Logger,
		cfg:     cfg,
		readyCh: make(chan struct{}),
	}, nil
}

// Dataset returns the current snapshot, or nil before the first
// successful load.
func (v *View) Dataset() *Dataset {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

func (v *View) Ready() bool {
	select {
	case <-v.readyCh:
		return true
	default:
		return false
	}
}

func (v *View) WaitReady(ctx context.Context) error {
	select {
	case <-v.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for dataset: %w", ctx.Err())
	}
}

// Start loads the dataset and, when a refresh interval is configured,
// keeps reloading it in the background until the context is cancelled.
func (v *View) Start(ctx context.Context) {
	go func() {
		v.safeRefresh(ctx)

		if v.cfg.RefreshInterval == 0 {
			return
		}
		v.log.Info("dataset: starting refresh loop", "interval", v.cfg.RefreshInterval, "source", v.cfg.Source.String())

		ticker := v.cfg.Clock.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				v.safeRefresh(ctx)
			}
		}
	}()
}

func (v *View) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("dataset: refresh panicked", "panic", r)
			metrics.DatasetRefreshTotal.WithLabelValues("panic").Inc()
		}
	}()

	if err := v.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		v.log.Error("dataset: refresh failed", "error", err, "source", v.cfg.Source.String())
		if v.cfg.OnRefreshError != nil {
			v.cfg.OnRefreshError(err)
		}
	}
}

// Refresh fetches and loads the dataset, swapping it in on success. A
// failed refresh keeps the previous snapshot.
func (v *View) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	start := time.Now()
	v.log.Debug("dataset: refresh started")

	ds, err := v.load(ctx)
	records := 0
	if ds != nil {
		records = ds.Len()
	}
	metrics.RecordDatasetRefresh(time.Since(start), records, err)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.current = ds
	v.mu.Unlock()
	v.readyOnce.Do(func() { close(v.readyCh) })

	v.log.Info("dataset: refresh completed",
		"records", ds.Len(),
		"countries", len(ds.Countries()),
		"age_columns", len(ds.Schema().AgeColumns),
		"duration", time.Since(start).String())
	return nil
}

func (v *View) load(ctx context.Context) (*Dataset, error) {
	rc, err := v.cfg.Source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	defer rc.Close()

	ds, err := Load(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return ds, nil
}
