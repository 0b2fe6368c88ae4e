// Package refresh implements the hot-cache reconciliation subsystem: one
// algorithm (refresh_once) shared by an on-demand Service and a
// long-lived Scheduler.
//
// Grounded on original_source/.../refresh.rs for the load-then-clear-
// then-repopulate ordering, and on the common/log package's shape for
// structured logging of background-loop outcomes.
package refresh

import (
	"context"
	"time"

	"github.com/fencio-dev/prism/internal/bridge/common/clock"
	"github.com/fencio-dev/prism/internal/bridge/common/log"
	"github.com/fencio-dev/prism/internal/bridge/hotcache"
	"github.com/fencio-dev/prism/internal/bridge/metrics"
	"github.com/fencio-dev/prism/internal/bridge/warmstore"
)

// Result reports the outcome of one refresh_once run.
type Result struct {
	RulesRefreshed int
	ElapsedMs      int64
	Timestamp      time.Time
}

// Service performs on-demand refreshes against a hot cache and warm
// store pair. It holds no scheduling state; a Scheduler wraps it to run
// on a timer.
type Service struct {
	hot   *hotcache.Cache
	warm  *warmstore.Store
	clock clock.Clock
}

// NewService builds a refresh Service over an existing hot cache and
// warm store, normally the ones owned by a bridge.Bridge.
func NewService(hot *hotcache.Cache, warm *warmstore.Store, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{hot: hot, warm: warm, clock: clk}
}

// RefreshOnce loads the full anchor map from warm storage, then clears
// and repopulates the hot cache with it. If the load fails, the hot
// cache is left untouched: load-then-clear-and-repopulate must not
// reorder, or a warm storage outage would silently empty the cache.
func (s *Service) RefreshOnce(ctx context.Context) (Result, error) {
	start := s.clock.Now()

	anchors, err := s.warm.LoadAnchors()
	if err != nil {
		metrics.RefreshFailuresTotal.Inc()
		return Result{}, err
	}

	s.hot.Clear()
	for ruleId, v := range anchors {
		s.hot.Insert(ruleId, v)
	}

	elapsed := s.clock.Now().Sub(start)
	metrics.RefreshDuration.Observe(elapsed.Seconds())
	metrics.HotCacheEntries.Set(float64(len(anchors)))

	return Result{
		RulesRefreshed: len(anchors),
		ElapsedMs:      elapsed.Milliseconds(),
		Timestamp:      s.clock.Now(),
	}, nil
}

// Scheduler runs Service.RefreshOnce on a fixed interval until its
// context is canceled. The Rust original had no cancellation path; this
// uses context.Context instead, the idiomatic Go equivalent of a
// cooperative shutdown signal.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	enabled  bool

	lastRefreshAt   time.Time
	lastRefreshSet  bool
}

// SchedulerConfig mirrors config.SchedulerConfig to avoid an import
// cycle between config and refresh.
type SchedulerConfig struct {
	RefreshInterval time.Duration
	Enabled         bool
}

// NewScheduler builds a Scheduler for svc using cfg.
func NewScheduler(svc *Service, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{svc: svc, interval: cfg.RefreshInterval, enabled: cfg.Enabled}
}

// LastRefreshAt returns the timestamp of the most recent successful
// refresh and whether one has happened yet.
func (s *Scheduler) LastRefreshAt() (time.Time, bool) {
	return s.lastRefreshAt, s.lastRefreshSet
}

// Run blocks, waiting one interval and then refreshing, in a loop, until
// ctx is canceled. If the scheduler is disabled it returns immediately.
// A failed refresh is logged and does not stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.enabled {
		log.Info(nil, "refresh scheduler disabled, exiting")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info(nil, "refresh scheduler stopping")
			return
		case <-ticker.C:
			result, err := s.svc.RefreshOnce(ctx)
			if err != nil {
				log.Error(map[string]any{"error": err}, "scheduled refresh failed")
				continue
			}
			s.lastRefreshAt = result.Timestamp
			s.lastRefreshSet = true
			log.Info(map[string]any{
				"rules_refreshed": result.RulesRefreshed,
				"elapsed_ms":      result.ElapsedMs,
			}, "scheduled refresh completed")
		}
	}
}
