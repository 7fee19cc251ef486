// Package sensor pumps device events from the source transport into the
// tracking core.
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/observability"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

// Source delivers raw sensor messages. Fetch blocks until a message is
// available or the context is cancelled.
type Source interface {
	Fetch(ctx context.Context) (domain.SensorMessage, error)
}

// Feed is the ingest loop: fetch, decode, dispatch, commit. Decode failures
// skip the message; source failures back off exponentially.
type Feed struct {
	source     Source
	visits     *tracker.VisitTracker
	controller *tracker.ModeController
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Feed dispatching to the given tracker and controller.
func New(source Source, visits *tracker.VisitTracker, controller *tracker.ModeController, logger *slog.Logger, metrics *observability.Metrics) *Feed {
	return &Feed{
		source:     source,
		visits:     visits,
		controller: controller,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once the feed has processed at least one event.
func (f *Feed) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("sensor feed has not processed any events yet")
	}
	return nil
}

// Run executes the ingest loop until the context is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("sensor feed started")
	f.metrics.FeedRunning.Set(1)
	defer f.metrics.FeedRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("sensor feed stopping", "reason", ctx.Err())
			return nil
		default:
		}

		msg, err := f.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Error("fetch sensor message failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		f.process(ctx, msg)
		f.commit(ctx, msg)
		f.ready.Store(true)
	}
}

// process decodes and dispatches one message. Malformed messages are logged
// and dropped; redelivering them cannot succeed.
func (f *Feed) process(ctx context.Context, msg domain.SensorMessage) {
	var env domain.SensorEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		f.logger.Warn("decode sensor message failed, skipping",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		f.metrics.SensorDecodeErrors.Inc()
		return
	}

	switch env.Kind {
	case domain.KindVisit:
		f.metrics.SensorEventsConsumed.WithLabelValues(domain.KindVisit).Inc()
		if env.Visit != nil {
			f.visits.HandleVisit(ctx, *env.Visit)
		}
	case domain.KindFixes:
		f.metrics.SensorEventsConsumed.WithLabelValues(domain.KindFixes).Inc()
		f.visits.HandleFixes(ctx, env.Fixes)
	case domain.KindPermission:
		f.metrics.SensorEventsConsumed.WithLabelValues(domain.KindPermission).Inc()
		f.controller.HandlePermissionChange(ctx, env.Permission)
	default:
		f.metrics.SensorEventsConsumed.WithLabelValues("unknown").Inc()
		f.logger.Warn("unknown sensor event kind, skipping", "kind", env.Kind)
	}
}

func (f *Feed) commit(ctx context.Context, msg domain.SensorMessage) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		f.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
