package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/notify"
	"github.com/laala/laala-api/internal/observability/metrics"
	"github.com/laala/laala-api/internal/reliability/circuitbreaker"
)

// DispatcherConfig tunes the outbox dispatcher
type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	StaleAfter  time.Duration
	Concurrency int
}

// Dispatcher periodically claims queued emails and hands them to the mailer.
// A message is marked sent only after the mailer accepted it; failures go
// back to pending until MaxAttempts is reached.
type Dispatcher struct {
	outbox domain.OutboxRepository
	mailer notify.Mailer
	cfg    DispatcherConfig
	logger *slog.Logger
}

// NewDispatcher creates an outbox dispatcher
func NewDispatcher(outbox domain.OutboxRepository, mailer notify.Mailer, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Dispatcher{outbox: outbox, mailer: mailer, cfg: cfg, logger: logger}
}

// Start runs the dispatch loop until ctx is cancelled
func (d *Dispatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher started",
		slog.Duration("interval", d.cfg.Interval),
		slog.Int("batch_size", d.cfg.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("outbox dispatch failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce claims one batch and delivers it. It returns how many messages
// were sent, and an error when a delivery outcome could not be recorded.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.ObserveOutboxBatch(time.Since(start)) }()

	batch, err := d.outbox.ClaimPending(ctx, d.cfg.BatchSize, d.cfg.StaleAfter)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	// send failures stay in the outbox for the next tick; only errors
	// recording a delivery outcome fail the batch
	sent := make([]bool, len(batch))
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, msg := range batch {
		g.Go(func() error {
			ok, err := d.deliver(ctx, msg)
			sent[i] = ok
			return err
		})
	}
	waitErr := g.Wait()

	n := 0
	for _, ok := range sent {
		if ok {
			n++
		}
	}
	d.logger.Info("outbox batch processed",
		slog.Int("claimed", len(batch)),
		slog.Int("sent", n),
	)
	return n, waitErr
}

func (d *Dispatcher) deliver(ctx context.Context, msg *domain.OutboxMessage) (bool, error) {
	logger := d.logger.With(
		slog.String("message_id", msg.ID),
		slog.String("kind", msg.Kind),
	)

	err := d.mailer.Send(ctx, notify.Message{To: msg.Recipient, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		result := "error"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			result = "breaker_open"
		}
		metrics.ObserveOutboxDelivery(result)
		logger.Warn("email delivery failed",
			slog.Int("attempt", msg.Attempts+1),
			slog.String("error", err.Error()),
		)
		if merr := d.outbox.MarkFailed(context.WithoutCancel(ctx), msg.ID, err.Error(), d.cfg.MaxAttempts); merr != nil {
			return false, fmt.Errorf("failed to record delivery failure for %s: %w", msg.ID, merr)
		}
		return false, nil
	}

	// the mailer accepted it; a crash before MarkSent resends after StaleAfter
	if err := d.outbox.MarkSent(context.WithoutCancel(ctx), msg.ID); err != nil {
		return false, fmt.Errorf("failed to mark email %s sent: %w", msg.ID, err)
	}
	metrics.ObserveOutboxDelivery("sent")
	logger.Debug("email sent")
	return true, nil
}
