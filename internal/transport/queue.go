package transport

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const queueSize = 1000

// Queue runs delivery jobs one at a time on a single worker goroutine.
type Queue struct {
	jobs chan func()
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewQueue() *Queue {
	q := &Queue{
		jobs: make(chan func(), queueSize),
		done: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.runLoop()
	return q
}

// Add enqueues fn. It returns false when the queue is full or closed.
func (q *Queue) Add(fn func()) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.jobs <- fn:
		return true
	default:
		log.Warn().Msg("websee: report queue full, dropping report")
		return false
	}
}

func (q *Queue) runLoop() {
	defer q.wg.Done()
	for {
		select {
		case fn := <-q.jobs:
			q.run(fn)
		case <-q.done:
			// Flush remaining
			for {
				select {
				case fn := <-q.jobs:
					q.run(fn)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("websee: report job panicked")
		}
	}()
	fn()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.wg.Wait()
	})
}
