// Package refresh re-fetches live widgets on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "schedview/internal/log"
)

// Target is what a tick refreshes.
type Target interface {
	ReloadAll(ctx context.Context)
	EvictIdle() int
}

// Invalidator drops cached upstream data before a reload.
type Invalidator interface {
	Invalidate()
}

// Options configures a Scheduler.
type Options struct {
	// Spec is a standard five-field cron expression.
	Spec     string
	Location *time.Location
	Target   Target
	// Cache, if set, is invalidated at the start of every tick.
	Cache Invalidator
	// AfterReload runs once the reload of a tick has finished.
	AfterReload func(ctx context.Context) error
}

// Scheduler runs refresh ticks. Ticks never overlap; a tick that fires
// while the previous one is still running is skipped.
type Scheduler struct {
	opts Options
	cron *cron.Cron

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// New validates opts.Spec and builds a stopped Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Target == nil {
		return nil, fmt.Errorf("refresh: target is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &Scheduler{opts: opts, ctx: context.Background()}
	s.cron = cron.New(cron.WithLocation(opts.Location))
	if _, err := s.cron.AddFunc(opts.Spec, s.fire); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", opts.Spec, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	appLog.Info("refresh scheduler started", "spec", s.opts.Spec)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if !s.Tick(ctx) {
		appLog.Warn("refresh tick skipped, previous tick still running")
	}
}

// Tick runs one refresh now. It reports false when a tick is already
// running.
func (s *Scheduler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	if s.opts.Cache != nil {
		s.opts.Cache.Invalidate()
	}
	evicted := s.opts.Target.EvictIdle()
	s.opts.Target.ReloadAll(ctx)
	if s.opts.AfterReload != nil {
		if err := s.opts.AfterReload(ctx); err != nil {
			appLog.Error("refresh follow-up failed", err)
		}
	}
	appLog.Info("refresh tick completed", "evicted", evicted, "duration", time.Since(start).String())
	return true
}
