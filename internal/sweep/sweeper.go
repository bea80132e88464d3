package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/afterhours/backend/internal/entitlement"
)

type LapsedUsers interface {
	ListLapsedUserIDs(ctx context.Context, now time.Time) ([]string, error)
}

type PostPurger interface {
	DeleteByUsers(ctx context.Context, userIDs []string) (int64, error)
}

// Recorder is satisfied by observability.Prom; nil disables metrics.
type Recorder interface {
	ObserveSweep(result string, deleted int64, d time.Duration)
}

type Config struct {
	// Interval between runs; zero means run once and return.
	Interval time.Duration
	// per-run store timeout
	RunTimeout time.Duration
	// InitialDelay postpones the first run, for hosts that already swept at startup.
	InitialDelay time.Duration
}

type Result struct {
	ExpiredUsers int   `json:"expiredUsers"`
	Deleted      int64 `json:"deletedCount"`
}

type Sweeper struct {
	cfg     Config
	users   LapsedUsers
	posts   PostPurger
	clock   entitlement.Clock
	metrics Recorder
	log     *slog.Logger

	ready   atomic.Bool
	lastRun atomic.Int64
}

func New(cfg Config, users LapsedUsers, posts PostPurger, clock entitlement.Clock, metrics Recorder, log *slog.Logger) *Sweeper {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	if clock == nil {
		clock = entitlement.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}

	return &Sweeper{
		cfg:     cfg,
		users:   users,
		posts:   posts,
		clock:   clock,
		metrics: metrics,
		log:     log,
	}
}

// RunOnce collects every lapsed non-subscriber and deletes their posts in one bulk call.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	res, err := s.run(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.ObserveSweep(outcome, res.Deleted, time.Since(start))
	}
	s.lastRun.Store(time.Now().Unix())

	return res, err
}

func (s *Sweeper) run(ctx context.Context) (Result, error) {
	ids, err := s.users.ListLapsedUserIDs(ctx, s.clock())
	if err != nil {
		return Result{}, fmt.Errorf("sweep.list_lapsed: %w", err)
	}

	if len(ids) == 0 {
		s.log.InfoContext(ctx, "sweep: no expired-trial users found")
		return Result{}, nil
	}

	deleted, err := s.posts.DeleteByUsers(ctx, ids)
	if err != nil {
		return Result{ExpiredUsers: len(ids)}, fmt.Errorf("sweep.delete_posts: %w", err)
	}

	s.log.InfoContext(ctx, "sweep: deleted posts from expired users", "expired_users", len(ids), "deleted", deleted)

	return Result{ExpiredUsers: len(ids), Deleted: deleted}, nil
}

// Run sweeps immediately and then on every interval tick until ctx is cancelled.
// Failures are logged; the next attempt is pulled forward with backoff.
func (s *Sweeper) Run(ctx context.Context) error {
	s.ready.Store(true)
	defer s.ready.Store(false)

	if s.cfg.InitialDelay > 0 {
		timer := time.NewTimer(s.cfg.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	failures := 0

	for {
		_, err := s.RunOnce(ctx)

		wait := s.cfg.Interval
		if err != nil {
			s.log.ErrorContext(ctx, "sweep failed", "err", err, "attempt", failures+1)
			wait = Backoff(failures, s.cfg.Interval)
			failures++
		} else {
			failures = 0
		}

		if s.cfg.Interval <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("sweeper received shutdown signal")
			return nil
		case <-timer.C:
		}
	}
}

func (s *Sweeper) Ready() bool {
	return s.ready.Load()
}

// LastRun is zero until the first run completes.
func (s *Sweeper) LastRun() time.Time {
	v := s.lastRun.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
