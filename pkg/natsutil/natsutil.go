// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation. The ingestion pipeline uses it to move
// crisis events between the loader and the ingest worker.
package natsutil

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// RetryHeader counts redelivery attempts for consumers that republish failed
// messages.
const RetryHeader = "X-Retry-Count"

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	return publish(ctx, nc, subject, v, -1)
}

// PublishRetry is Publish with the retry count header set, for consumers that
// requeue failed messages.
func PublishRetry[T any](ctx context.Context, nc *nats.Conn, subject string, v T, retries int) error {
	return publish(ctx, nc, subject, v, retries)
}

func publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T, retries int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	if retries >= 0 {
		msg.Header = nats.Header{}
		msg.Header.Set(RetryHeader, strconv.Itoa(retries))
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// retryKey carries a message's retry count through the handler context.
type retryKey struct{}

// Retries returns the retry count extracted from the message that produced
// ctx, zero for a first delivery.
func Retries(ctx context.Context) int {
	n, _ := ctx.Value(retryKey{}).(int)
	return n
}

// msgContext builds the handler context: trace context and retry count both
// come from the message headers.
func msgContext(msg *nats.Msg) context.Context {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
	if msg.Header != nil {
		if n, err := strconv.Atoi(msg.Header.Get(RetryHeader)); err == nil {
			ctx = context.WithValue(ctx, retryKey{}, n)
		}
	}
	return ctx
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the
// handler. Malformed messages are silently dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return // drop malformed messages
		}
		handler(msgContext(msg), v)
	})
}

// QueueSubscribe is Subscribe with a queue group, so multiple ingest workers
// share one subject without duplicate processing.
func QueueSubscribe[T any](nc *nats.Conn, subject, queue string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		handler(msgContext(msg), v)
	})
}
