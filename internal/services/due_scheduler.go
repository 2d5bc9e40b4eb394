package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the scheduler checks for due tasks
const DefaultSweepInterval = 30 * time.Second

// DueScheduler runs CheckDue on a fixed interval until its context is cancelled
type DueScheduler struct {
	service  *TaskService
	interval time.Duration
	logger   zerolog.Logger
}

// NewDueScheduler creates a scheduler for service
func NewDueScheduler(service *TaskService, interval time.Duration, logger zerolog.Logger) *DueScheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &DueScheduler{
		service:  service,
		interval: interval,
		logger:   logger.With().Str("component", "due_scheduler").Logger(),
	}
}

// Run sweeps once immediately and then on every tick. It returns when ctx is done.
func (d *DueScheduler) Run(ctx context.Context) {
	d.logger.Info().Dur("interval", d.interval).Msg("Due scheduler started")
	defer d.logger.Info().Msg("Due scheduler stopped")

	d.sweep(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Start runs the scheduler in a goroutine. The returned channel is closed once it has stopped.
func (d *DueScheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	return done
}

func (d *DueScheduler) sweep(ctx context.Context) {
	result, err := d.service.CheckDue(ctx, d.service.Now())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		d.logger.Error().Err(err).Msg("Due sweep failed")
		return
	}

	if result.Skipped {
		d.logger.Debug().Msg("Due sweep coalesced with a running sweep")
		return
	}

	event := d.logger.Debug()
	if len(result.Notified) > 0 {
		event = d.logger.Info()
	}
	event.
		Int("scanned", result.Scanned).
		Int("due", result.Due).
		Int("notified", len(result.Notified)).
		Msg("Due sweep finished")
}
