package workers

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"media-shelf/internal/logging"
)

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	pool *ants.Pool
	wg   sync.WaitGroup
}

// NewPool starts a pool of size workers. A panicking task is logged and
// does not take the worker down.
func NewPool(size int) (*Pool, error) {
	p, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		logging.Error("Worker task panicked: %v", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Go blocks until a worker is free and hands it task.
func (p *Pool) Go(task func()) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		task()
	})
	if err != nil {
		p.wg.Done()
		return fmt.Errorf("failed to submit task: %w", err)
	}
	return nil
}

// Wait blocks until every task handed to Go has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Size() int {
	return p.pool.Cap()
}

// Release stops the workers. Go fails afterwards.
func (p *Pool) Release() {
	p.pool.Release()
}
