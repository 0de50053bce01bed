// Package queue decouples event ingestion from event processing: the API
// enqueues raw events, a pool of workers feeds them to the engine.
package queue

import (
	"context"
	"errors"
	"time"
)

// Processor consumes one event; the engine facade satisfies it.
type Processor interface {
	ProcessEvent(ctx context.Context, event map[string]any) (bool, error)
}

// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
var ErrQueueFull = errors.New("event queue is full")

// Config holds worker pool settings.
type Config struct {
	WorkerCount int
	BufferSize  int
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a point-in-time view of one worker.
type WorkerHealth struct {
	ID              string       `json:"id"`
	Status          WorkerStatus `json:"status"`
	EventsProcessed int          `json:"events_processed"`
	LastActivity    time.Time    `json:"last_activity"`
}

// PoolHealth is a point-in-time view of the pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
