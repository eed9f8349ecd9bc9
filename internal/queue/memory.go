package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned when enqueuing on a closed MemoryQueue
var ErrQueueClosed = errors.New("queue is closed")

// MemoryQueue is an in-process JobQueue for running the server without a
// broker and for tests. Jobs are lost on restart. Nacked messages without
// requeue land in DeadLetters.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   chan *Job
	dead   []*Job
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewMemoryQueue creates a queue holding up to capacity pending jobs
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryQueue{
		jobs: make(chan *Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue adds a job. Jobs scheduled in the future are held back until due.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	copied := *job

	if copied.NotBefore != nil {
		if delay := time.Until(*copied.NotBefore); delay > 0 {
			q.mu.Lock()
			if q.closed {
				q.mu.Unlock()
				return ErrQueueClosed
			}
			q.wg.Add(1)
			q.mu.Unlock()

			go func() {
				defer q.wg.Done()
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-timer.C:
					_ = q.push(context.Background(), &copied)
				case <-q.done:
				}
			}()
			return nil
		}
	}
	return q.push(ctx, &copied)
}

func (q *MemoryQueue) push(ctx context.Context, job *Job) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers jobs until ctx is cancelled or the queue is closed
func (q *MemoryQueue) Consume(ctx context.Context, _ int) (<-chan *Message, <-chan error, error) {
	msgChan := make(chan *Message)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)

		for {
			select {
			case <-ctx.Done():
				return
			case <-q.done:
				return
			case job := <-q.jobs:
				if job.IsExpired() {
					q.deadLetter(job)
					continue
				}
				msg := &Message{Job: job, delivery: &memoryDelivery{queue: q, job: job}}
				select {
				case msgChan <- msg:
				case <-ctx.Done():
					// hand the job back for the next consumer
					select {
					case q.jobs <- job:
					default:
						q.deadLetter(job)
					}
					return
				case <-q.done:
					return
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// Len returns the number of jobs waiting for a consumer
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// DeadLetters returns the jobs that were rejected without requeue
func (q *MemoryQueue) DeadLetters() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *MemoryQueue) deadLetter(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, job)
}

// HealthCheck reports whether the queue is still open
func (q *MemoryQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

// Close stops consumers and drops pending delayed jobs
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

type memoryDelivery struct {
	queue *MemoryQueue
	job   *Job
}

func (d *memoryDelivery) Ack(bool) error {
	return nil
}

func (d *memoryDelivery) Nack(_ bool, requeue bool) error {
	if requeue {
		return d.queue.push(context.Background(), d.job)
	}
	d.queue.deadLetter(d.job)
	return nil
}
