// Package scheduler runs enrichment and rescoring at fixed times of day.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/enrichment"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/scoring"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

// Enricher enriches pending listings.
type Enricher interface {
	EnrichAll(ctx context.Context, filter store.ListingFilter) (*enrichment.BatchReport, error)
}

// Rescorer rescores every listing.
type Rescorer interface {
	RescoreAll(ctx context.Context, batchSize int) (*scoring.RescoreReport, error)
}

// Scheduler triggers the daily job at each configured time.
type Scheduler struct {
	cron      *cron.Cron
	enricher  Enricher
	rescorer  Rescorer
	batchSize int

	// ctx is the parent of every cron-triggered run; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler for times ("HH:MM") in the named timezone.
func New(times []string, timezone string, enricher Enricher, rescorer Rescorer, batchSize int) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "scheduler: timezone %q", timezone)
	}
	if len(times) == 0 {
		return nil, eris.New("scheduler: no run times configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		enricher:  enricher,
		rescorer:  rescorer,
		batchSize: batchSize,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, t := range times {
		spec, err := CronSpec(t)
		if err != nil {
			cancel()
			return nil, err
		}
		if _, err := s.cron.AddFunc(spec, s.runJob); err != nil {
			cancel()
			return nil, eris.Wrapf(err, "scheduler: add %q", spec)
		}
		zap.L().Info("scheduler: job registered", zap.String("time", t), zap.String("cron", spec))
	}
	return s, nil
}

// CronSpec converts "HH:MM" to a daily cron expression.
func CronSpec(hhmm string) (string, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return "", eris.Errorf("scheduler: invalid time %q, want HH:MM", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", eris.Errorf("scheduler: invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", eris.Errorf("scheduler: invalid minute in %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron and waits for a running job to finish or ctx to end,
// then cancels the context of any job still in flight.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		zap.L().Warn("scheduler: stop deadline reached, canceling running job")
	}
	s.cancel()
}

func (s *Scheduler) runJob() {
	s.Run(s.ctx)
}

// Entries returns the next fire times, soonest first.
func (s *Scheduler) Entries() []time.Time {
	var next []time.Time
	for _, e := range s.cron.Entries() {
		next = append(next, e.Next)
	}
	return next
}

// Run executes one enrich-then-rescore cycle. Overlapping calls are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		zap.L().Warn("scheduler: previous run still in progress, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log := zap.L().With(zap.String("component", "scheduler"))
	start := time.Now()
	log.Info("scheduler: run started")

	if report, err := s.enricher.EnrichAll(ctx, store.ListingFilter{OnlyPending: true}); err != nil {
		log.Error("scheduler: enrichment failed", zap.Error(err))
	} else {
		log.Info("scheduler: enrichment done",
			zap.Int("total", report.Total),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
	}

	if report, err := s.rescorer.RescoreAll(ctx, s.batchSize); err != nil {
		log.Error("scheduler: rescore failed", zap.Error(err))
	} else {
		log.Info("scheduler: rescore done",
			zap.Int("total", report.Total),
			zap.Int("scored", report.Scored),
			zap.Int("failed_batches", report.FailedBatches),
		)
	}

	log.Info("scheduler: run finished", zap.Duration("elapsed", time.Since(start)))
}
