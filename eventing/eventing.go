// Package eventing provides the message bus the cache uses to signal key
// changes to other execution contexts. Two implementations exist: an
// in-process bus for single-process use and tests, and a Redis pub/sub bus
// for contexts that do not share memory.
package eventing

import "context"

// Message represents a message received from the bus
type Message interface {
	Data() []byte
	Headers() Headers
}

// Headers represents message headers that can be used for both map operations and propagation
type Headers map[string]string

func (h Headers) Get(key string) string {
	return h[key]
}

func (h Headers) Set(key string, value string) {
	h[key] = value
}

func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

type MessageCallback func(ctx context.Context, msg Message)

type Subscription interface {
	// Close stops the subscription
	Close() error
}

type PublishOption func(*publishOptions)

type publishOptions struct {
	Headers [][]string
}

func WithHeader(key, value string) PublishOption {
	return func(o *publishOptions) {
		o.Headers = append(o.Headers, []string{key, value})
	}
}

func headersFromOptions(opts []PublishOption) Headers {
	options := &publishOptions{}
	for _, opt := range opts {
		opt(options)
	}
	headers := make(Headers)
	for _, header := range options.Headers {
		if len(header) == 2 {
			headers[header[0]] = header[1]
		}
	}
	return headers
}

// Bus defines the interface for event transports. Delivery is asynchronous:
// a Publish returns once the message is committed to the transport, and
// subscribers observe it on a later turn.
type Bus interface {
	// Publish publishes a message to a subject
	Publish(ctx context.Context, subject string, data []byte, opts ...PublishOption) error
	// Subscribe subscribes to a subject
	Subscribe(ctx context.Context, subject string, cb MessageCallback) (Subscription, error)
	// Close closes the bus and every subscription
	Close() error
}
