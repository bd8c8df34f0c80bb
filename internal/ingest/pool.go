package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"docintel/internal/logging"
	"docintel/internal/queue"
)

// Pool runs a fixed number of Workers pulling jobs from a shared Consumer.
type Pool struct {
	Consumer queue.Consumer
	Worker   *Worker
	Size     int
}

// Run blocks until ctx is cancelled, at which point every worker goroutine
// returns and the pool shuts down cleanly.
func (p *Pool) Run(ctx context.Context) error {
	size := p.Size
	if size <= 0 {
		size = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		g.Go(func() error {
			return p.loop(gctx)
		})
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context) error {
	log := logging.FromContext(ctx)
	for {
		job, err := p.Consumer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("dequeue_failed")
			continue
		}
		if err := p.Worker.Process(ctx, job.DocumentID, job.JobID); err != nil {
			log.Error().Err(err).Str("document_id", job.DocumentID).Msg("process_job_error")
		}
	}
}
