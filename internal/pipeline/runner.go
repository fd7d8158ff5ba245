package pipeline

import (
	"context"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notifyhub/internal/bus"
)

// Runner fans a queue's deliveries out across a fixed-size goroutine pool,
// generalizing the teacher's internal/worker.Notifier.Run from one
// hard-coded queue to any Pipeline's queue.
type Runner struct {
	bus        *bus.Bus
	pipeline   *Pipeline
	queueName  string
	workerCount int
}

// NewRunner builds a Runner that drains queueName into pipeline using
// workerCount goroutines.
func NewRunner(b *bus.Bus, p *Pipeline, queueName string, workerCount int) *Runner {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Runner{bus: b, pipeline: p, queueName: queueName, workerCount: workerCount}
}

// Run blocks until ctx is cancelled, consuming queueName and dispatching
// every delivery to the pipeline across the worker pool.
func (r *Runner) Run(ctx context.Context, strategy retry.Strategy) {
	deliveries := make(chan bus.Delivery)

	go func() {
		if err := r.bus.Consume(r.queueName, strategy, deliveries); err != nil {
			zlog.Logger.Fatal().Err(err).Str("queue", r.queueName).Msg("failed to consume messages")
		}
	}()

	for i := 0; i < r.workerCount; i++ {
		go func(id int) {
			zlog.Logger.Info().Int("worker", id).Str("queue", r.queueName).Msg("worker started")

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Info().Int("worker", id).Msg("worker shutting down")
					return
				case d := <-deliveries:
					r.pipeline.Handle(ctx, d)
				}
			}
		}(i)
	}

	<-ctx.Done()
	zlog.Logger.Info().Str("queue", r.queueName).Msg("runner stopped")
}
