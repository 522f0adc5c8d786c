package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 1024)}
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", i, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func mustEvent(t *testing.T, topic string, row interface{}) Event {
	t.Helper()
	e, err := NewEvent(topic, TableMessages, EventInsert, row)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestHubDeliversInPublishOrder(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	rec := newRecorder()
	sub := hub.Subscribe("conversation:a", nil, rec.handle)
	defer sub.Close()

	for i := 0; i < 50; i++ {
		if err := hub.Publish(context.Background(), mustEvent(t, "conversation:a", map[string]int{"n": i})); err != nil {
			t.Fatal(err)
		}
	}

	events := rec.wait(t, 50)
	for i, e := range events {
		var row map[string]int
		if err := e.Decode(&row); err != nil {
			t.Fatal(err)
		}
		if row["n"] != i {
			t.Fatalf("event %d carried n=%d", i, row["n"])
		}
	}
}

func TestHubScopesByTopicAndPredicate(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	conv := uuid.New()
	rec := newRecorder()
	sub := hub.Subscribe("conversation:a", ColumnEquals("conversation_id", conv.String()), rec.handle)
	defer sub.Close()

	ctx := context.Background()
	_ = hub.Publish(ctx, mustEvent(t, "conversation:b", map[string]string{"conversation_id": conv.String()}))
	_ = hub.Publish(ctx, mustEvent(t, "conversation:a", map[string]string{"conversation_id": uuid.NewString()}))
	_ = hub.Publish(ctx, mustEvent(t, "conversation:a", map[string]string{"conversation_id": conv.String(), "content": "Hi"}))

	events := rec.wait(t, 1)
	var row map[string]string
	_ = events[0].Decode(&row)
	if row["content"] != "Hi" {
		t.Errorf("delivered the wrong event: %v", row)
	}

	select {
	case <-rec.got:
		t.Error("received an event that should have been filtered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	release := make(chan struct{})
	sub := hub.Subscribe("t", nil, func(Event) { <-release })
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = hub.Publish(context.Background(), Event{Topic: "t"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked behind a slow handler")
	}
	close(release)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	rec := newRecorder()
	sub := hub.Subscribe("t", nil, rec.handle)

	sub.Close()
	sub.Close()

	if n := hub.SubscriberCount("t"); n != 0 {
		t.Fatalf("SubscriberCount = %d after Close", n)
	}
	_ = hub.Publish(context.Background(), Event{Topic: "t"})
	select {
	case <-rec.got:
		t.Error("closed subscription received an event")
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-sub.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestSubscriptionCanCloseItself(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	var sub *Subscription
	fired := make(chan struct{})
	sub = hub.Subscribe("t", nil, func(Event) {
		sub.Close()
		close(fired)
	})
	_ = hub.Publish(context.Background(), Event{Topic: "t"})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	<-sub.Done()
}

func TestHubCloseReleasesSubscriptions(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub := hub.Subscribe("t", nil, func(Event) {})
	hub.Close()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed with hub")
	}
	if err := hub.Publish(context.Background(), Event{Topic: "t"}); err != ErrHubClosed {
		t.Errorf("Publish after Close = %v, want ErrHubClosed", err)
	}
	late := hub.Subscribe("t", nil, func(Event) {})
	select {
	case <-late.Done():
	default:
		t.Error("subscribing to a closed hub should return a closed handle")
	}
	late.Close()
}

func TestPanickingHandlerKeepsDelivering(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	rec := newRecorder()
	first := true
	sub := hub.Subscribe("t", nil, func(e Event) {
		if first {
			first = false
			panic("boom")
		}
		rec.handle(e)
	})
	defer sub.Close()

	_ = hub.Publish(context.Background(), Event{Topic: "t"})
	_ = hub.Publish(context.Background(), Event{Topic: "t"})
	rec.wait(t, 1)
}

func TestGroupClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	var g Group
	g.Add(hub.Subscribe("a", nil, func(Event) {}))
	g.Add(hub.Subscribe("b", nil, func(Event) {}))
	if g.Len() != 2 {
		t.Fatalf("Len = %d", g.Len())
	}

	g.Close()
	g.Close()
	if hub.SubscriberCount("a")+hub.SubscriberCount("b") != 0 {
		t.Error("group left subscriptions open")
	}

	late := hub.Subscribe("c", nil, func(Event) {})
	g.Add(late)
	select {
	case <-late.Done():
	default:
		t.Error("Add on a closed group should close the subscription")
	}
}

func TestParseTopic(t *testing.T) {
	id := uuid.New()
	kind, got, err := ParseTopic(TypingTopic(id))
	if err != nil || kind != KindTyping || got != id {
		t.Errorf("ParseTopic = %q %v %v", kind, got, err)
	}
	for _, bad := range []string{"", "conversation", "rooms:" + id.String(), "presence:nope"} {
		if _, _, err := ParseTopic(bad); err == nil {
			t.Errorf("ParseTopic(%q) accepted", bad)
		}
	}
}
