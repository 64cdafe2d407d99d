package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull indicates the submission queue is at capacity
	ErrQueueFull = errors.New("workqueue: queue full")
	// ErrPoolClosed indicates the pool no longer accepts work
	ErrPoolClosed = errors.New("workqueue: pool closed")
)

// Job is one unit of asynchronous work. Jobs sharing a Key never run
// concurrently. OnExhausted fires once when the job leaves the retry path
// for good, with the total attempt count and the final error.
type Job struct {
	Key         string
	Run         func(ctx context.Context) error
	OnExhausted func(ctx context.Context, attempts int, lastErr error)
}

// Pool is a bounded worker pool with per-key serialization and geometric
// retry for transient failures.
type Pool struct {
	queue  chan *execution
	locks  *KeyLock
	policy RetryPolicy
	logger *zap.Logger

	workers sync.WaitGroup
	jobs    sync.WaitGroup
	closed  atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	size   int
}

type execution struct {
	job     *Job
	attempt int
}

// NewPool creates a pool of size workers over a queue of depth entries.
// The KeyLock may be shared with synchronous callers so async and sync work
// on the same key stays serialized.
func NewPool(size, depth int, policy RetryPolicy, locks *KeyLock, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if depth <= 0 {
		depth = 256
	}
	if locks == nil {
		locks = NewKeyLock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:  make(chan *execution, depth),
		locks:  locks,
		policy: policy,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		size:   size,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.workers.Add(1)
		go p.worker()
	}
}

// Submit enqueues a job without blocking
func (p *Pool) Submit(job *Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.jobs.Add(1)
	select {
	case p.queue <- &execution{job: job}:
		return nil
	default:
		p.jobs.Done()
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and drains outstanding jobs, including
// scheduled retries, until the context expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closed.Store(true)

	drained := make(chan struct{})
	go func() {
		p.jobs.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}

	p.cancel()
	p.workers.Wait()
	return err
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case exec := <-p.queue:
			p.process(exec)
		}
	}
}

func (p *Pool) process(exec *execution) {
	unlock := p.locks.Lock(exec.job.Key)
	err := exec.job.Run(p.ctx)
	unlock()

	if err == nil {
		p.jobs.Done()
		return
	}

	attempts := exec.attempt + 1
	if !IsTransient(err) || exec.attempt >= p.policy.MaxRetries {
		p.logger.Warn("job left retry path",
			zap.String("key", exec.job.Key),
			zap.Int("attempts", attempts),
			zap.Bool("transient", IsTransient(err)),
			zap.Error(err))
		if exec.job.OnExhausted != nil {
			exec.job.OnExhausted(p.ctx, attempts, err)
		}
		p.jobs.Done()
		return
	}

	delay := p.policy.Delay(exec.attempt)
	p.logger.Debug("rescheduling transient failure",
		zap.String("key", exec.job.Key),
		zap.Int("attempt", attempts),
		zap.Duration("delay", delay),
		zap.Error(err))

	next := &execution{job: exec.job, attempt: exec.attempt + 1}
	time.AfterFunc(delay, func() {
		select {
		case p.queue <- next:
		case <-p.ctx.Done():
			p.jobs.Done()
		}
	})
}
