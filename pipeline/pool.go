package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// pool is a bounded worker pool draining submitted runs. Admission happens
// before enqueue, so the queue depth only smooths bursts of already-admitted
// runs.
type pool struct {
	jobs     chan *run
	workers  int
	timeout  time.Duration
	process  func(ctx context.Context, r *run)
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      *logrus.Entry
}

func newPool(workers, depth int, timeout time.Duration, process func(ctx context.Context, r *run), log *logrus.Entry) *pool {
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 64
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &pool{
		jobs:     make(chan *run, depth),
		workers:  workers,
		timeout:  timeout,
		process:  process,
		stopChan: make(chan struct{}),
		log:      log,
	}
}

func (p *pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.WithField("workers", p.workers).Info("Worker pool started")
}

func (p *pool) stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	p.log.Info("Worker pool stopped")
}

// drain hands back runs that were queued but never executed so the caller
// can finalize them. Only valid after stop.
func (p *pool) drain() []*run {
	var leftover []*run
	for {
		select {
		case r := <-p.jobs:
			leftover = append(leftover, r)
		default:
			return leftover
		}
	}
}

func (p *pool) submit(ctx context.Context, r *run) error {
	select {
	case <-p.stopChan:
		return ErrShuttingDown
	default:
	}

	select {
	case p.jobs <- r:
		return nil
	case <-p.stopChan:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case r := <-p.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			p.process(ctx, r)
			cancel()
		}
	}
}
