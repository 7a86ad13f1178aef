package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/observability/metrics"
)

// Janitor purges delivered emails and old read notifications on a cron
// schedule.
type Janitor struct {
	outbox        domain.OutboxRepository
	notifications domain.NotificationRepository
	sentRetention time.Duration
	readRetention time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewJanitor creates a retention janitor
func NewJanitor(
	outbox domain.OutboxRepository,
	notifications domain.NotificationRepository,
	sentRetention, readRetention time.Duration,
	logger *slog.Logger,
) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		outbox:        outbox,
		notifications: notifications,
		sentRetention: sentRetention,
		readRetention: readRetention,
		logger:        logger,
		now:           time.Now,
	}
}

// Purge runs one retention pass
func (j *Janitor) Purge(ctx context.Context) error {
	now := j.now()
	var errs []error

	sent, err := j.outbox.PurgeSent(ctx, now.Add(-j.sentRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge sent emails: %w", err))
	} else {
		metrics.ObservePurge("outbox", sent)
	}

	read, err := j.notifications.PurgeRead(ctx, now.Add(-j.readRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge read notifications: %w", err))
	} else {
		metrics.ObservePurge("notifications", read)
	}

	j.logger.Info("retention purge completed",
		slog.Int64("emails", sent),
		slog.Int64("notifications", read),
	)
	return errors.Join(errs...)
}

// Start schedules Purge with spec and blocks until ctx is cancelled. The
// running pass, if any, is allowed to finish.
func (j *Janitor) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLogger(cronLogger{j.logger}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{j.logger})))
	if _, err := c.AddFunc(spec, func() {
		if err := j.Purge(ctx); err != nil {
			j.logger.Error("retention purge failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}

	c.Start()
	j.logger.Info("janitor scheduled", slog.String("spec", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info("janitor stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
