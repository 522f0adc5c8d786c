package realtime

import "sync"

// Group owns a set of subscriptions and closes them together.
type Group struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// Add takes ownership of s. Adding to a closed group closes s at once.
func (g *Group) Add(s *Subscription) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		s.Close()
		return
	}
	g.subs = append(g.subs, s)
	g.mu.Unlock()
}

func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Close closes every owned subscription. It is idempotent.
func (g *Group) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.closed = true
	g.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}
