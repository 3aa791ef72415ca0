package server

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

// pool runs a fixed number of workers that each serve one connection at a
// time. Accepted connections wait in a bounded queue.
type pool struct {
	jobs  chan net.Conn
	quit  chan struct{}
	group errgroup.Group
	size  int
}

func newPool(size int, handle func(net.Conn)) *pool {
	if size <= 0 {
		size = 1
	}
	p := &pool{
		jobs: make(chan net.Conn, size),
		quit: make(chan struct{}),
		size: size,
	}
	for i := 0; i < size; i++ {
		p.group.Go(func() error {
			for conn := range p.jobs {
				handle(conn)
			}
			return nil
		})
	}
	return p
}

// submit queues conn, blocking while the queue is full. It reports false
// once the pool is shutting down; the caller still owns conn then.
func (p *pool) submit(conn net.Conn) bool {
	select {
	case <-p.quit:
		return false
	default:
	}

	select {
	case p.jobs <- conn:
		return true
	case <-p.quit:
		return false
	}
}

// abort releases a submitter blocked on a full queue.
func (p *pool) abort() {
	close(p.quit)
}

// shutdown closes the queue and waits for the workers to drain it. Only
// call it once nothing can submit any more.
func (p *pool) shutdown(timeout time.Duration) error {
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("workers still busy after %v", timeout)
	}
}
