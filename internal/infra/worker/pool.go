package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool closed")
)

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines. Queued tasks are
// drained when the pool stops; tasks run with a context that outlives Run's.
type Pool struct {
	jobs    chan Task
	workers int

	mu     sync.RWMutex
	closed bool

	log *zerolog.Logger
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	l := logger.With().Str("component", "worker_pool").Logger()
	return &Pool{jobs: make(chan Task, queue), workers: workers, log: &l}
}

// Run starts the workers and blocks until ctx is done and the queue is drained.
func (p *Pool) Run(ctx context.Context) error {
	taskCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for task := range p.jobs {
				p.exec(taskCtx, id, task)
			}
		}(i)
	}

	<-ctx.Done()
	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	wg.Wait()
	p.log.Info().Msg("worker pool drained")
	return nil
}

func (p *Pool) exec(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Str("panic", fmt.Sprint(r)).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Error().Err(err).Int("worker", id).Msg("task failed")
	}
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}
