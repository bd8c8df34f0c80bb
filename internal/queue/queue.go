// Package queue is the durable job queue between the upload path and the
// ingestion worker pool: a Job carries a document id and the job id it was
// enqueued under, so the worker can no-op a stale or duplicate delivery.
package queue

import "context"

// Job names one document awaiting ingestion.
type Job struct {
	DocumentID string
	JobID      string
}

// Producer enqueues jobs for the worker pool to consume.
type Producer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Consumer pulls the next job, blocking until one is available or ctx is
// cancelled.
type Consumer interface {
	Dequeue(ctx context.Context) (Job, error)
}

// Queue is both ends of the job channel.
type Queue interface {
	Producer
	Consumer
	Close() error
}
