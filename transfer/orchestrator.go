package transfer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dominant-strategies/tx-spammer/log"
)

// Orchestrator runs one goroutine per intent. All goroutines start at once;
// the limiter decides how many of them are past the delay at the same time.
type Orchestrator struct {
	submitter *Submitter
	limiter   *Limiter
	log       *log.Logger
}

func NewOrchestrator(submitter *Submitter, limiter *Limiter, lg *log.Logger) *Orchestrator {
	return &Orchestrator{submitter: submitter, limiter: limiter, log: lg}
}

// Run submits every intent and returns when all of them have finished.
func (o *Orchestrator) Run(ctx context.Context, intents []Intent) {
	var g errgroup.Group
	for _, in := range intents {
		in := in
		g.Go(func() error {
			o.transfer(ctx, in)
			return nil
		})
	}
	g.Wait()
}

func (o *Orchestrator) transfer(ctx context.Context, in Intent) {
	if err := o.limiter.Acquire(ctx); err != nil {
		o.log.Error("transfer cancelled before start", "error", err)
		return
	}
	defer o.limiter.Release()

	o.log.Info("sleeping", "seconds", int(in.Delay/time.Second), "active", o.limiter.Active())
	if err := sleep(ctx, in.Delay); err != nil {
		o.log.Error("transfer cancelled during delay", "error", err)
		return
	}
	o.submitter.Submit(ctx, in)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
