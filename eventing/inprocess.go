package eventing

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("eventing: bus closed")

type inProcessMessage struct {
	data    []byte
	headers Headers
}

func (m *inProcessMessage) Data() []byte {
	return m.data
}

func (m *inProcessMessage) Headers() Headers {
	return m.headers
}

type inProcessSub struct {
	bus     *inProcessBus
	subject string
	id      int
	cb      MessageCallback

	mu     sync.Mutex
	queue  []*inProcessMessage
	wake   chan struct{}
	closed bool
}

func (s *inProcessSub) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	select {
	case <-s.wake:
	default:
		close(s.wake)
	}
	s.mu.Unlock()
	s.bus.remove(s.subject, s.id)
	return nil
}

// run drains the queue and invokes the callback outside any lock.
func (s *inProcessSub) run(ctx context.Context) {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			wake := s.wake
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
			s.mu.Lock()
		}
		batch := s.queue
		s.queue = nil
		s.wake = make(chan struct{})
		s.mu.Unlock()

		for _, msg := range batch {
			s.cb(ctx, msg)
		}
	}
}

func (s *inProcessSub) deliver(msg *inProcessMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, msg)
	select {
	case <-s.wake:
	default:
		close(s.wake)
	}
}

type inProcessBus struct {
	mu     sync.Mutex
	subs   map[string]map[int]*inProcessSub
	nextID int
	closed bool
}

var _ Bus = (*inProcessBus)(nil)

// NewInProcess returns a Bus that delivers messages to subscribers within
// the same process. Delivery is asynchronous with respect to Publish,
// matching the cross-context signal of the durable store: a subscriber
// never runs inside the publishing call.
func NewInProcess() Bus {
	return &inProcessBus{subs: make(map[string]map[int]*inProcessSub)}
}

func (b *inProcessBus) Publish(_ context.Context, subject string, data []byte, opts ...PublishOption) error {
	msg := &inProcessMessage{data: data, headers: headersFromOptions(opts)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	targets := make([]*inProcessSub, 0, len(b.subs[subject]))
	for _, sub := range b.subs[subject] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(msg)
	}
	return nil
}

func (b *inProcessBus) Subscribe(ctx context.Context, subject string, cb MessageCallback) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.nextID++
	sub := &inProcessSub{
		bus:     b,
		subject: subject,
		id:      b.nextID,
		cb:      cb,
		wake:    make(chan struct{}),
	}
	if b.subs[subject] == nil {
		b.subs[subject] = make(map[int]*inProcessSub)
	}
	b.subs[subject][sub.id] = sub
	b.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

func (b *inProcessBus) remove(subject string, id int) {
	b.mu.Lock()
	if m := b.subs[subject]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(b.subs, subject)
		}
	}
	b.mu.Unlock()
}

func (b *inProcessBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*inProcessSub
	for _, m := range b.subs {
		for _, sub := range m {
			all = append(all, sub)
		}
	}
	b.subs = make(map[string]map[int]*inProcessSub)
	b.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
	return nil
}
