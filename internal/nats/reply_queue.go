package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/yae-assistant/yae/internal/queue"
	"github.com/yae-assistant/yae/pkg/logger"
	"github.com/yae-assistant/yae/pkg/metrics"
)

const (
	// ReplyStream holds assistant replies until they are persisted.
	ReplyStream = "REPLIES"

	// ReplySubject is the subject replies are published on.
	ReplySubject = "replies.persist"

	// ReplyConsumer is the durable consumer that writes replies to the store.
	ReplyConsumer = "reply-writer"

	jetstreamQueueLabel = "jetstream"
)

// ReplyQueueOptions tunes the durable consumer.
type ReplyQueueOptions struct {
	MaxAttempts int
	AckWait     time.Duration
	NakDelay    time.Duration
}

func (o *ReplyQueueOptions) setDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.AckWait <= 0 {
		o.AckWait = 30 * time.Second
	}
	if o.NakDelay <= 0 {
		o.NakDelay = 2 * time.Second
	}
}

// ReplyQueue is a queue.Queue backed by a JetStream work-queue stream.
// Replies survive process restarts once Enqueue returns.
type ReplyQueue struct {
	js      jetstream.JetStream
	handler queue.Handler
	opts    ReplyQueueOptions
	log     *logger.Logger
	consume jetstream.ConsumeContext
}

var _ queue.Queue = (*ReplyQueue)(nil)

// NewReplyQueue ensures the stream and durable consumer exist and starts consuming.
func NewReplyQueue(ctx context.Context, client *Client, handler queue.Handler, opts ReplyQueueOptions, log *logger.Logger) (*ReplyQueue, error) {
	opts.setDefaults()
	q := &ReplyQueue{
		js:      client.JetStream(),
		handler: handler,
		opts:    opts,
		log:     log.Named("reply-queue"),
	}

	if _, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        ReplyStream,
		Subjects:    []string{ReplySubject},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Description: "Assistant replies waiting to be persisted",
	}); err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	consumer, err := q.js.CreateOrUpdateConsumer(ctx, ReplyStream, jetstream.ConsumerConfig{
		Durable:       ReplyConsumer,
		FilterSubject: ReplySubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       opts.AckWait,
		MaxDeliver:    opts.MaxAttempts,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	q.consume, err = consumer.Consume(q.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}
	return q, nil
}

// Enqueue publishes the task. The task id deduplicates republished tasks.
func (q *ReplyQueue) Enqueue(ctx context.Context, task queue.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	if _, err := q.js.Publish(ctx, ReplySubject, data, jetstream.WithMsgID(task.ID)); err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}
	return nil
}

// Close stops consuming. Unacknowledged replies are redelivered later.
func (q *ReplyQueue) Close(context.Context) error {
	if q.consume != nil {
		q.consume.Stop()
	}
	return nil
}

func (q *ReplyQueue) handle(msg jetstream.Msg) {
	var task queue.Task
	if err := json.Unmarshal(msg.Data(), &task); err != nil {
		q.log.Error("discarding malformed reply", zap.Error(err))
		metrics.RecordReplyPersist(jetstreamQueueLabel, "dropped")
		_ = msg.Term()
		return
	}

	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}

	fields := []zap.Field{
		zap.String("task_id", task.ID),
		zap.String("session_uuid", task.SessionUUID.String()),
		zap.Int("attempt", attempt),
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.opts.AckWait)
	defer cancel()

	err := q.handler(ctx, task)
	switch {
	case err == nil:
		metrics.RecordReplyPersist(jetstreamQueueLabel, "ok")
		if ackErr := msg.Ack(); ackErr != nil {
			q.log.Warn("reply ack failed", append(fields, zap.Error(ackErr))...)
		}
	case queue.IsPermanent(err) || attempt >= q.opts.MaxAttempts:
		metrics.RecordReplyPersist(jetstreamQueueLabel, "dropped")
		q.log.Error("dropping assistant reply", append(fields, zap.Error(err))...)
		_ = msg.Term()
	default:
		metrics.RecordReplyPersist(jetstreamQueueLabel, "retry")
		q.log.Warn("reply persistence failed, retrying", append(fields, zap.Error(err))...)
		_ = msg.NakWithDelay(q.opts.NakDelay * time.Duration(attempt))
	}
}
