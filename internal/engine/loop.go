package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source topic.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Loop is the consume side of the engine: it drains the signal topic in
// batches and fans each batch out to an ingest worker pool. Offsets commit
// individually after a signal is durably stored, or immediately for
// messages that can never succeed.
type Loop struct {
	engine    *Engine
	extractor BatchExtractor
	logger    *slog.Logger
	metrics   *observability.Metrics
	workers   int
	batchSize int
	ready     atomic.Bool
}

// NewLoop creates the ingest loop.
func NewLoop(e *Engine, extractor BatchExtractor, workers, batchSize int) *Loop {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Loop{
		engine:    e,
		extractor: extractor,
		logger:    e.logger,
		metrics:   e.metrics,
		workers:   workers,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the loop has processed at least one
// message.
func (l *Loop) CheckReadiness(_ context.Context) error {
	if !l.ready.Load() {
		return errors.New("ingest loop has not processed any messages yet")
	}
	return nil
}

// Run executes the consume loop until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("ingest loop started", "workers", l.workers, "batch_size", l.batchSize)
	l.metrics.EngineRunning.Set(1)
	defer l.metrics.EngineRunning.Set(0)

	// Exponential backoff for broker failures: 200ms doubling to a 5s cap.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("ingest loop stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !l.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-and-ingest cycle. Returns false if the loop
// should stop.
func (l *Loop) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	batch, err := l.extractor.ExtractBatch(ctx, l.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.logger.Error("extract batch failed", "error", err)
		return l.backoffOrStop(ctx, backoff, maxBackoff)
	}
	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	l.metrics.SignalsConsumed.Add(float64(len(batch)))
	*backoff = 200 * time.Millisecond

	jobs := make(chan domain.RawEvent)
	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				l.handleEvent(ctx, raw)
			}
		}()
	}
	for _, raw := range batch {
		jobs <- raw
	}
	close(jobs)
	wg.Wait()

	l.ready.Store(true)
	return true
}

// handleEvent ingests one raw message. Undecodable or invalid messages are
// committed and dropped; infrastructure failures leave the offset
// uncommitted so the broker redelivers.
func (l *Loop) handleEvent(ctx context.Context, raw domain.RawEvent) {
	var rawSignal domain.RawSignal
	if err := json.Unmarshal(raw.Value, &rawSignal); err != nil {
		l.logger.Warn("undecodable signal message, skipping",
			"error", err, "topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
		l.metrics.SignalsRejected.WithLabelValues("decode").Inc()
		l.commit(ctx, raw)
		return
	}

	if _, err := l.engine.IngestSignal(ctx, rawSignal); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCoordinates),
			errors.Is(err, domain.ErrEmptyText),
			errors.Is(err, domain.ErrUnknownSource):
			l.logger.Warn("invalid signal, skipping", "error", err, "offset", raw.Offset)
			l.metrics.SignalsRejected.WithLabelValues("invalid").Inc()
			l.commit(ctx, raw)
		default:
			l.logger.Error("ingest failed, leaving offset uncommitted",
				"error", err, "offset", raw.Offset)
		}
		return
	}
	l.commit(ctx, raw)
}

func (l *Loop) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		l.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the loop should stop.
func (l *Loop) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(*backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	if next := *backoff * 2; next <= maxBackoff {
		*backoff = next
	} else {
		*backoff = maxBackoff
	}
	return true
}
