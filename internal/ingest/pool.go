package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/observability"
)

const defaultQueueDepth = 256

// Pool fans envelopes out to a fixed set of workers so the webhook handler
// can acknowledge receipt before processing finishes. Envelopes for the same
// entity converge through the repositories' idempotent writes, so ordering
// across workers does not need to be preserved.
type Pool struct {
	registry *Registry
	metrics  *observability.Metrics
	logger   *zap.Logger
	jobs     chan *Envelope
	wg       sync.WaitGroup
	timeout  time.Duration
}

// NewPool creates the pool and starts its workers.
func NewPool(registry *Registry, workers int, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		jobs:     make(chan *Envelope, defaultQueueDepth),
		timeout:  timeout,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues an envelope for processing. Returns false when the queue is
// full; the caller decides whether that becomes a retryable webhook response.
func (p *Pool) Submit(env *Envelope) bool {
	select {
	case p.jobs <- env:
		return true
	default:
		p.metrics.RecordEvent(env.Action(), "dropped")
		p.logger.Warn("event queue full, dropping envelope",
			zap.String("event_id", env.EventID),
			zap.String("action", env.Action()))
		return false
	}
}

// Shutdown stops accepting work and waits for in-flight envelopes to drain.
func (p *Pool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for env := range p.jobs {
		p.process(env)
	}
}

func (p *Pool) process(env *Envelope) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	action := env.Action()
	matched, err := p.registry.Dispatch(ctx, env)
	switch {
	case err != nil:
		p.metrics.RecordEvent(action, "failed")
		p.logger.Error("event handling failed",
			zap.String("event_id", env.EventID),
			zap.String("action", action),
			zap.Error(err))
	case !matched:
		p.metrics.RecordEvent(action, "dropped")
	default:
		p.metrics.RecordEvent(action, "handled")
	}
}
