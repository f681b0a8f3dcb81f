package usecase

import (
	"context"
	"log"
	"sync"

	"shotlocator/internal/domain/entity"
)

type KeyHandler func(ctx context.Context, key entity.EventKey)

// Scheduler is a bounded queue of ready event keys drained by a fixed pool of
// workers. Distinct keys run concurrently up to the pool size.
type Scheduler struct {
	queue   chan entity.EventKey
	workers int
	wg      sync.WaitGroup
}

func NewScheduler(workers, queueSize int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Scheduler{
		queue:   make(chan entity.EventKey, queueSize),
		workers: workers,
	}
}

// Enqueue blocks until the key is queued or ctx is done.
func (s *Scheduler) Enqueue(ctx context.Context, key entity.EventKey) error {
	select {
	case s.queue <- key:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Start(ctx context.Context, handle KeyHandler) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					log.Printf("scheduler worker %d shutting down", id)
					return
				case key := <-s.queue:
					handle(ctx, key)
				}
			}
		}(i)
	}
}

// Wait blocks until every worker has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Drain empties the queue without handling the keys and returns them. It is
// meant for shutdown, after the workers have stopped.
func (s *Scheduler) Drain() []entity.EventKey {
	var keys []entity.EventKey
	for {
		select {
		case key := <-s.queue:
			keys = append(keys, key)
		default:
			return keys
		}
	}
}

func (s *Scheduler) Pending() int {
	return len(s.queue)
}
