package queue

import "context"

// Memory is a channel-backed Queue used for the "memory" backend and tests.
type Memory struct {
	ch chan Job
}

// NewMemory builds a buffered in-process queue.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 256
	}
	return &Memory{ch: make(chan Job, buffer)}
}

func (m *Memory) Enqueue(ctx context.Context, job Job) error {
	select {
	case m.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-m.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (m *Memory) Close() error {
	close(m.ch)
	return nil
}

var _ Queue = (*Memory)(nil)
