package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryEnqueueDequeueRoundTrip(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: "d1", JobID: "j1"}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "d1", job.DocumentID)
}

func TestMemoryDequeueBlocksUntilCancelled(t *testing.T) {
	q := NewMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryPreservesFIFOOrder(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: "first"}))
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: "second"}))

	j1, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", j1.DocumentID)

	j2, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", j2.DocumentID)
}
