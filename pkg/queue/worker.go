package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Worker drains the shared event channel and hands each event to the
// processor.
type Worker struct {
	id        string
	events    <-chan map[string]any
	processor Processor
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu              sync.RWMutex
	status          WorkerStatus
	eventsProcessed int
	lastActivity    time.Time
}

// NewWorker creates a worker over the pool's event channel.
func NewWorker(id string, events <-chan map[string]any, processor Processor) *Worker {
	return &Worker{
		id:           id,
		events:       events,
		processor:    processor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current
// event. Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the worker's current health snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:              w.id,
		Status:          w.status,
		EventsProcessed: w.eventsProcessed,
		LastActivity:    w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Queue worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Queue worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, queue worker shutting down")
			return
		case event, ok := <-w.events:
			if !ok {
				log.Info("Event channel closed, queue worker shutting down")
				return
			}
			w.process(ctx, event)
		}
	}
}

func (w *Worker) process(ctx context.Context, event map[string]any) {
	w.setStatus(WorkerStatusWorking)
	defer w.setStatus(WorkerStatusIdle)

	if _, err := w.processor.ProcessEvent(ctx, event); err != nil {
		slog.Error("Event processing failed", "worker_id", w.id, "error", err)
	}

	w.mu.Lock()
	w.eventsProcessed++
	w.mu.Unlock()
}

func (w *Worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.lastActivity = time.Now()
	w.mu.Unlock()
}
