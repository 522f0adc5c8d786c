package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrHubClosed = errors.New("realtime: hub closed")

// Handler receives events for a subscription. Handlers for one subscription
// run sequentially, in publish order.
type Handler func(Event)

// Publisher emits events to a topic.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers on topics.
type Subscriber interface {
	Subscribe(topic string, pred Predicate, h Handler) *Subscription
}

// Transport is the change feed: publish on one side, subscribe on the other.
type Transport interface {
	Publisher
	Subscriber
}

// Hub is an in-process topic fan-out. Publish never blocks on subscribers:
// every subscription owns an unbounded mailbox drained by its own goroutine.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscription
	nextID uint64
	closed bool
	log    zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[uint64]*Subscription),
		log:    log.With().Str("component", "hub").Logger(),
	}
}

// Subscribe registers h for events on topic matching pred. The returned
// handle must be closed to release it. Subscribing to a closed hub returns a
// handle that is already closed.
func (h *Hub) Subscribe(topic string, pred Predicate, handler Handler) *Subscription {
	s := newSubscription(topic, pred, handler, h.log)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.markClosed()
		return s
	}
	h.nextID++
	s.id = h.nextID
	s.hub = h
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[uint64]*Subscription)
		h.topics[topic] = subs
	}
	subs[s.id] = s
	h.mu.Unlock()

	go s.run()
	return s
}

// Publish queues e for every current subscriber of e.Topic.
func (h *Hub) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for _, s := range h.topics[e.Topic] {
		s.enqueue(e)
	}
	return nil
}

// SubscriberCount returns the number of open subscriptions on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close releases every subscription. Later publishes fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, subs := range h.topics {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	h.topics = make(map[string]map[uint64]*Subscription)
	h.mu.Unlock()

	for _, s := range all {
		s.markClosed()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[s.topic]
	if !ok {
		return
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(h.topics, s.topic)
	}
}

// Subscription is a disposable handle returned by Subscribe.
type Subscription struct {
	id      uint64
	topic   string
	pred    Predicate
	handler Handler
	hub     *Hub
	log     zerolog.Logger

	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(topic string, pred Predicate, handler Handler, log zerolog.Logger) *Subscription {
	return &Subscription{
		topic:   topic,
		pred:    pred,
		handler: handler,
		log:     log,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Close stops delivery and releases the handle. It is safe to call more than
// once and from inside the handler. Queued events are discarded.
func (s *Subscription) Close() {
	if s.hub != nil {
		s.hub.remove(s)
	}
	s.markClosed()
}

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) markClosed() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) enqueue(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.queue) == 0 {
		return Event{}, false
	}
	e := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return e, true
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			e, ok := s.next()
			if !ok {
				break
			}
			s.deliver(e)
		}
	}
}

func (s *Subscription) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("topic", s.topic).Interface("panic", r).Msg("subscriber panicked")
		}
	}()
	if s.pred != nil && !s.pred(e) {
		return
	}
	s.handler(e)
}
