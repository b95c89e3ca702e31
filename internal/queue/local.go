package queue

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/yae-assistant/yae/pkg/logger"
	"github.com/yae-assistant/yae/pkg/metrics"
)

const localQueueLabel = "local"

// Options tunes a LocalQueue.
type Options struct {
	Workers         int
	Size            int
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Size <= 0 {
		o.Size = 256
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 200 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 10 * time.Second
	}
}

// LocalQueue is an in-process worker pool with retries. Pending tasks are
// drained on Close but lost if the process dies first.
type LocalQueue struct {
	handler Handler
	opts    Options
	log     *logger.Logger

	tasks chan Task
	wg    sync.WaitGroup

	// closing is closed first by Close so blocked Enqueue calls return
	// before Close takes mu.
	closing   chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	// ctx is handed to the handler; it is only cancelled when Close gives up.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLocalQueue starts the workers.
func NewLocalQueue(handler Handler, opts Options, log *logger.Logger) *LocalQueue {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	q := &LocalQueue{
		handler: handler,
		opts:    opts,
		log:     log.Named("reply-queue"),
		tasks:   make(chan Task, opts.Size),
		closing: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue adds a task, blocking while the queue is full. It returns
// ErrClosed once Close has been called, even while blocked.
func (q *LocalQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.tasks <- task:
		metrics.ReplyQueueDepth.WithLabelValues(localQueueLabel).Inc()
		return nil
	case <-q.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake and waits for pending tasks. If ctx ends first,
// in-flight retries are abandoned and ctx.Err() is returned.
func (q *LocalQueue) Close(ctx context.Context) error {
	q.closeOnce.Do(func() { close(q.closing) })

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		q.log.Warn("reply queue closed before draining", zap.Int("pending", len(q.tasks)))
		return ctx.Err()
	}
}

func (q *LocalQueue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		metrics.ReplyQueueDepth.WithLabelValues(localQueueLabel).Dec()
		q.process(task)
	}
}

func (q *LocalQueue) process(task Task) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = q.opts.InitialInterval
	exp.MaxInterval = q.opts.MaxInterval
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(q.opts.MaxAttempts-1)), q.ctx)

	attempt := 0
	operation := func() error {
		attempt++
		return q.handler(q.ctx, task)
	}
	notify := func(err error, wait time.Duration) {
		metrics.RecordReplyPersist(localQueueLabel, "retry")
		q.log.Warn("reply persistence failed, retrying",
			zap.String("task_id", task.ID),
			zap.String("session_uuid", task.SessionUUID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		metrics.RecordReplyPersist(localQueueLabel, "dropped")
		q.log.Error("dropping assistant reply",
			zap.String("task_id", task.ID),
			zap.String("session_uuid", task.SessionUUID.String()),
			zap.Uint("session_id", task.SessionID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return
	}
	metrics.RecordReplyPersist(localQueueLabel, "ok")
}
