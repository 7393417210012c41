// Package redeliver implements the scheduled recovery jobs: retrying failed
// channel deliveries within the attempt budget and sweeping up notifications
// whose initial dispatch pass never completed.
package redeliver

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"school-notify/internal/domain/entity"
	"school-notify/internal/usecase/dispatch"
)

const (
	defaultMaxAttempts   = 5
	defaultBatchSize     = 200
	defaultMaxConcurrent = 5
	// defaultSweepMinAge keeps the sweep from racing an initial dispatch pass
	// that is still in flight.
	defaultSweepMinAge = 5 * time.Minute
)

// Redeliverer is the slice of the dispatch engine the jobs need: retrying a
// single failed channel and re-running a full pass.
type Redeliverer interface {
	RedeliverChannel(ctx context.Context, record *entity.DeliveryRecord, ch entity.Channel) (bool, error)
	Send(ctx context.Context, notificationID uuid.UUID) (*dispatch.Summary, error)
}

// RetryableFinder is the slice of the delivery repository the retry job needs.
type RetryableFinder interface {
	FindRetryable(ctx context.Context, ch entity.Channel, maxAttempts, limit int) ([]*entity.DeliveryRecord, error)
}

// UnsentLister is the slice of the notification repository the sweep job needs.
type UnsentLister interface {
	ListUnsent(ctx context.Context, limit int) ([]*entity.Notification, error)
}

// RetrySummary reports one retry job run.
type RetrySummary struct {
	Scanned     int // failed (record, channel) pairs picked up
	Redelivered int // retries that reached the recipient
	Errors      int // retries that failed with a ledger or load error
}

// SweepSummary reports one sweep job run.
type SweepSummary struct {
	Scanned    int // unsent notifications considered
	Dispatched int // dispatch passes started
	Errors     int // passes that returned an error
}

// Coordinator owns the scheduled recovery jobs. It scans the delivery ledger
// for failed channels still under the attempt budget and hands each one back
// to the engine, which re-applies the preference gate before sending.
type Coordinator struct {
	DeliveryRepo     RetryableFinder
	NotificationRepo UnsentLister
	Engine           Redeliverer

	// MaxAttempts is the per-(record, channel) attempt budget including the
	// original send. Zero falls back to the default.
	MaxAttempts int
	// BatchSize bounds how many records one run picks up per channel.
	BatchSize int
	// MaxConcurrent bounds concurrent redeliveries within one run.
	MaxConcurrent int
	// SweepMinAge is how old an unsent notification must be before the sweep
	// re-dispatches it.
	SweepMinAge time.Duration
}

func (c *Coordinator) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c *Coordinator) batchSize() int {
	if c.BatchSize <= 0 {
		return defaultBatchSize
	}
	return c.BatchSize
}

func (c *Coordinator) maxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return defaultMaxConcurrent
	}
	return c.MaxConcurrent
}

func (c *Coordinator) sweepMinAge() time.Duration {
	if c.SweepMinAge <= 0 {
		return defaultSweepMinAge
	}
	return c.SweepMinAge
}

// RetryFailed runs one retry pass over all channels. Each failed channel
// delivery under the attempt budget is retried independently; a record whose
// email failed but whose push got through is retried on email only.
//
// Unit errors are counted and logged, never fatal: the run continues so one
// poisoned record cannot block the rest of the batch.
func (c *Coordinator) RetryFailed(ctx context.Context) (*RetrySummary, error) {
	start := time.Now()
	defer func() { recordRetryRun(time.Since(start)) }()

	var scanned, redelivered, errCount int64

	for _, ch := range entity.Channels() {
		records, err := c.DeliveryRepo.FindRetryable(ctx, ch, c.maxAttempts(), c.batchSize())
		if err != nil {
			return nil, fmt.Errorf("find retryable %s deliveries: %w", ch, err)
		}
		if len(records) == 0 {
			continue
		}

		sem := make(chan struct{}, c.maxConcurrent())
		eg, egCtx := errgroup.WithContext(ctx)

		for _, record := range records {
			record := record
			eg.Go(func() error {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-egCtx.Done():
					return egCtx.Err()
				}

				atomic.AddInt64(&scanned, 1)
				recordRetryScanned(string(ch))

				delivered, err := c.Engine.RedeliverChannel(egCtx, record, ch)
				if err != nil {
					atomic.AddInt64(&errCount, 1)
					slog.Warn("redelivery failed",
						slog.Int64("record_id", record.ID),
						slog.String("channel", string(ch)),
						slog.String("error", err.Error()))
					return nil
				}
				if delivered {
					atomic.AddInt64(&redelivered, 1)
					recordRetryDelivered(string(ch))
				}
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			// Context cancellation; report what completed.
			break
		}
	}

	summary := &RetrySummary{
		Scanned:     int(scanned),
		Redelivered: int(redelivered),
		Errors:      int(errCount),
	}
	slog.Info("retry run completed",
		slog.Int("scanned", summary.Scanned),
		slog.Int("redelivered", summary.Redelivered),
		slog.Int("errors", summary.Errors),
		slog.Duration("duration", time.Since(start)))
	return summary, nil
}

// SweepUnsent re-dispatches notifications that never completed a dispatch
// pass, typically because the worker crashed mid-pass. Passes are run
// sequentially: each Send fans out internally, so the sweep itself does not
// need a worker pool.
func (c *Coordinator) SweepUnsent(ctx context.Context) (*SweepSummary, error) {
	unsent, err := c.NotificationRepo.ListUnsent(ctx, c.batchSize())
	if err != nil {
		return nil, fmt.Errorf("list unsent notifications: %w", err)
	}

	summary := &SweepSummary{}
	minAge := c.sweepMinAge()

	for _, n := range unsent {
		if err := ctx.Err(); err != nil {
			break
		}
		summary.Scanned++
		if time.Since(n.CreatedAt) < minAge {
			continue
		}

		summary.Dispatched++
		recordSweepDispatched()
		if _, err := c.Engine.Send(ctx, n.ID); err != nil {
			summary.Errors++
			slog.Warn("sweep dispatch failed",
				slog.String("notification_id", n.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	if summary.Dispatched > 0 {
		slog.Info("sweep run completed",
			slog.Int("scanned", summary.Scanned),
			slog.Int("dispatched", summary.Dispatched),
			slog.Int("errors", summary.Errors))
	}
	return summary, nil
}
