// Package pipeline moves applied layer sets from explorer sessions to the
// feed topic. Sessions enqueue without blocking; a single loop drains the
// queue in batches and retries failed writes with backoff.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

// ErrQueueFull is returned by PublishLayerSet when the queue has no room.
var ErrQueueFull = errors.New("feed queue is full")

// ErrClosed is returned by PublishLayerSet after Close.
var ErrClosed = errors.New("feed is closed")

// BatchLoader writes multiple layer sets to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, sets []domain.LayerSet) error
}

// Options tunes a Pipeline. Zero values take the defaults.
type Options struct {
	BatchSize  int
	QueueSize  int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Clock      clockwork.Clock
}

// Pipeline is an asynchronous explorer.LayerSetPublisher.
type Pipeline struct {
	loader  BatchLoader
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	batchSize  int
	minBackoff time.Duration
	maxBackoff time.Duration

	mu     sync.RWMutex
	queue  chan domain.LayerSet
	closed bool
}

// New creates a Pipeline writing to l.
func New(l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	// Start at 200ms, double each retry, cap at 5s.
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		loader:     l,
		logger:     logger,
		metrics:    metrics,
		clock:      opts.Clock,
		batchSize:  opts.BatchSize,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		queue:      make(chan domain.LayerSet, opts.QueueSize),
	}
}

// PublishLayerSet enqueues a layer set. It never blocks: a full queue drops
// the set and returns ErrQueueFull.
func (p *Pipeline) PublishLayerSet(_ context.Context, set domain.LayerSet) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- set:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting layer sets. Run flushes what is already queued and
// returns.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

// Run drains the queue until Close is called or ctx is cancelled. A batch
// that fails to load is retried until it succeeds or ctx ends.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("feed pipeline started", "batch_size", p.batchSize)
	p.metrics.FeedRunning.Set(1)
	defer p.metrics.FeedRunning.Set(0)

	backoff := p.minBackoff
	for {
		batch, open := p.nextBatch(ctx)
		if len(batch) > 0 && !p.loadWithRetry(ctx, batch, &backoff) {
			p.logger.Warn("feed pipeline stopping with unsent layer sets", "dropped", len(batch), "reason", ctx.Err())
			return nil
		}
		if !open || ctx.Err() != nil {
			p.logger.Info("feed pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// nextBatch blocks for the first layer set, then takes whatever else is
// already queued up to the batch size. open is false once the queue is
// closed and drained.
func (p *Pipeline) nextBatch(ctx context.Context) (batch []domain.LayerSet, open bool) {
	select {
	case <-ctx.Done():
		return nil, true
	case set, ok := <-p.queue:
		if !ok {
			return nil, false
		}
		batch = append(batch, set)
	}

	for len(batch) < p.batchSize {
		select {
		case set, ok := <-p.queue:
			if !ok {
				return batch, false
			}
			batch = append(batch, set)
		default:
			return batch, true
		}
	}
	return batch, true
}

// loadWithRetry writes the batch, backing off between failures. Returns
// false if ctx ended first.
func (p *Pipeline) loadWithRetry(ctx context.Context, batch []domain.LayerSet, backoff *time.Duration) bool {
	for {
		err := p.loader.LoadBatch(ctx, batch)
		if err == nil {
			p.metrics.FeedPublished.Add(float64(len(batch)))
			p.metrics.FeedBatchSize.Observe(float64(len(batch)))
			*backoff = p.minBackoff
			return true
		}

		p.metrics.FeedPublishErrors.Inc()
		p.logger.Error("load batch failed", "error", err, "batch_size", len(batch), "retry_in", *backoff)
		if ctx.Err() != nil || !p.sleep(ctx, *backoff) {
			return false
		}
		*backoff = nextBackoff(*backoff, p.maxBackoff)
	}
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
