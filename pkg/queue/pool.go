package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerPool manages a bounded event buffer and the workers draining it.
type WorkerPool struct {
	cfg       Config
	processor Processor
	events    chan map[string]any
	workers   []*Worker

	mu      sync.Mutex
	started bool
}

// NewWorkerPool creates a pool; Start launches its workers.
func NewWorkerPool(cfg Config, processor Processor) *WorkerPool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &WorkerPool{
		cfg:       cfg,
		processor: processor,
		events:    make(chan map[string]any, cfg.BufferSize),
		workers:   make([]*Worker, 0, cfg.WorkerCount),
	}
}

// Start spawns the worker goroutines. Safe to call multiple times;
// subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("Starting event worker pool",
		"worker_count", p.cfg.WorkerCount, "buffer_size", p.cfg.BufferSize)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.events, p.processor)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}
}

// Stop signals every worker and waits; each finishes its current event.
// Events still buffered at shutdown are dropped with a warning.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping event worker pool")
	for _, worker := range p.workers {
		worker.Stop()
	}
	if dropped := len(p.events); dropped > 0 {
		slog.Warn("Dropping undelivered events at shutdown", "count", dropped)
	}
	slog.Info("Event worker pool stopped")
}

// Enqueue adds an event without blocking; a full buffer returns ErrQueueFull
// so the API can push back on the producer.
func (p *WorkerPool) Enqueue(event map[string]any) error {
	select {
	case p.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth returns the number of buffered events.
func (p *WorkerPool) Depth() int {
	return len(p.events)
}

// Health returns the pool's current health snapshot.
func (p *WorkerPool) Health() *PoolHealth {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	stats := make([]WorkerHealth, len(workers))
	active := 0
	for i, worker := range workers {
		stats[i] = worker.Health()
		if stats[i].Status == WorkerStatusWorking {
			active++
		}
	}

	return &PoolHealth{
		IsHealthy:     len(workers) > 0,
		ActiveWorkers: active,
		TotalWorkers:  len(workers),
		QueueDepth:    len(p.events),
		QueueCapacity: cap(p.events),
		WorkerStats:   stats,
	}
}
