package eventing

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liftlog/routinecache/logger"
)

type redisMsgPayload struct {
	InternalData    []byte  `msgpack:"data"`
	InternalHeaders Headers `msgpack:"headers"`
}

func (m *redisMsgPayload) Data() []byte {
	return m.InternalData
}

func (m *redisMsgPayload) Headers() Headers {
	return m.InternalHeaders
}

type redisSubscription struct {
	pubsub *redis.PubSub
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

type redisBus struct {
	rdb    *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger
}

var _ Bus = (*redisBus)(nil)

// NewRedis returns a Bus backed by Redis pub/sub. The caller owns the
// redis.Client lifecycle; Close only stops the bus's subscriptions.
func NewRedis(ctx context.Context, logger logger.Logger, rdb *redis.Client) Bus {
	ctx, cancel := context.WithCancel(ctx)
	return &redisBus{
		rdb:    rdb,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(map[string]interface{}{"component": "eventing"}),
	}
}

func (b *redisBus) Publish(ctx context.Context, subject string, data []byte, opts ...PublishOption) error {
	msg := redisMsgPayload{
		InternalData:    data,
		InternalHeaders: headersFromOptions(opts),
	}
	// inject the trace context into the headers before starting a span
	propagator.Inject(ctx, msg.InternalHeaders)

	spanCtx, span := tracer.Start(ctx, "Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	payload, err := msgpack.Marshal(msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := b.rdb.Publish(spanCtx, subject, payload).Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetStatus(codes.Ok, "message published")
	return nil
}

func (b *redisBus) internalCallback(ctx context.Context, payload []byte, cb MessageCallback) {
	var msg redisMsgPayload
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		b.logger.Error("failed to decode message %s", err)
		return
	}
	// extract the trace context from the headers
	spanCtx, span := tracer.Start(
		propagator.Extract(ctx, msg.InternalHeaders),
		"internalCallback",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	cb(spanCtx, &msg)
}

func (b *redisBus) Subscribe(ctx context.Context, subject string, cb MessageCallback) (Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, subject)

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-b.ctx.Done():
				return
			case <-ctx.Done():
				return
			case redisMsg, ok := <-ch:
				if !ok {
					return
				}
				b.internalCallback(ctx, []byte(redisMsg.Payload), cb)
			}
		}
	}()

	return &redisSubscription{pubsub: pubsub}, nil
}

func (b *redisBus) Close() error {
	b.cancel()
	return nil
}
