package crawl

import (
	"context"
	"errors"
	"sync"
)

type job func(ctx context.Context)

// unitPool runs unit jobs with bounded parallelism. Cancellation never
// strands an accepted job: workers drain the queue until it closes, and a
// job scheduled after cancellation still runs, observes the cancelled
// context, and returns. That keeps completion accounting exact, which the
// run depends on before it may close its event channel.
type unitPool struct {
	ctx     context.Context
	jobs    chan job
	workers sync.WaitGroup
	pending sync.WaitGroup
}

func newUnitPool(ctx context.Context, concurrency, queueSize int) (*unitPool, error) {
	if concurrency <= 0 || queueSize <= 0 {
		return nil, errors.New("unit pool requires positive concurrency and queue size")
	}
	p := &unitPool{
		ctx:  ctx,
		jobs: make(chan job, queueSize),
	}
	for i := 0; i < concurrency; i++ {
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			for fn := range p.jobs {
				fn(p.ctx)
				p.pending.Done()
			}
		}()
	}
	return p, nil
}

// submit schedules a job. Every accepted job is guaranteed to run;
// submission is refused once the pool's context is cancelled.
func (p *unitPool) submit(fn job) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.pending.Add(1)
	select {
	case p.jobs <- fn:
		return nil
	case <-p.ctx.Done():
		p.pending.Done()
		return p.ctx.Err()
	}
}

// wait blocks until every accepted job has finished.
func (p *unitPool) wait() {
	p.pending.Wait()
}

// close stops the workers; no submissions may follow.
func (p *unitPool) close() {
	close(p.jobs)
	p.workers.Wait()
}
