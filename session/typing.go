package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/techagentng/rentchat/models"
)

const (
	// TypingIdleAfter is the keystroke gap after which the sender reports
	// it stopped typing.
	TypingIdleAfter = 2 * time.Second
	// TypingStaleAfter is how long a receiver trusts a typing flag that
	// has not been refreshed.
	TypingStaleAfter = 5 * time.Second
)

// TypingDebouncer turns keystrokes into typing on/off transitions. emit is
// called with the debouncer locked and must not call back into it.
type TypingDebouncer struct {
	clock clockwork.Clock
	idle  time.Duration
	emit  func(isTyping bool)

	mu      sync.Mutex
	typing  bool
	timer   clockwork.Timer
	gen     uint64
	stopped bool
}

func NewTypingDebouncer(clock clockwork.Clock, emit func(isTyping bool)) *TypingDebouncer {
	return &TypingDebouncer{clock: clock, idle: TypingIdleAfter, emit: emit}
}

// Keystroke reports typing on the first keystroke and restarts the idle
// timer on every one.
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if !d.typing {
		d.typing = true
		d.emit(true)
	}
	d.stopTimer()
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.idle, func() { d.expire(gen) })
}

func (d *TypingDebouncer) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || gen != d.gen || !d.typing {
		return
	}
	d.typing = false
	d.timer = nil
	d.emit(false)
}

// Sent reports typing off at once when a message goes out.
func (d *TypingDebouncer) Sent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimer()
	d.gen++
	if d.typing && !d.stopped {
		d.typing = false
		d.emit(false)
	}
}

// Typing reports the state last emitted.
func (d *TypingDebouncer) Typing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}

// Stop cancels the timer for good. Nothing is emitted afterwards.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimer()
	d.gen++
	d.stopped = true
}

func (d *TypingDebouncer) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// TypingTracker keeps the latest typing state of every other participant.
type TypingTracker struct {
	self       uuid.UUID
	staleAfter time.Duration

	mu     sync.Mutex
	states map[uuid.UUID]models.TypingState
}

func NewTypingTracker(self uuid.UUID) *TypingTracker {
	return &TypingTracker{
		self:       self,
		staleAfter: TypingStaleAfter,
		states:     make(map[uuid.UUID]models.TypingState),
	}
}

// Apply records st unless it is the viewer's own or older than what is held.
func (t *TypingTracker) Apply(st models.TypingState) bool {
	if st.UserID == t.self {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.states[st.UserID]; ok && cur.UpdatedAt.After(st.UpdatedAt) {
		return false
	}
	t.states[st.UserID] = st
	return true
}

// Typing reports whether anyone else is typing at now.
func (t *TypingTracker) Typing(now time.Time) bool {
	return len(t.TypingUsers(now)) > 0
}

// TypingUsers lists who is typing at now, earliest first.
func (t *TypingTracker) TypingUsers(now time.Time) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var active []models.TypingState
	for _, st := range t.states {
		if st.Active(now, t.staleAfter) {
			active = append(active, st)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].UpdatedAt.Before(active[j].UpdatedAt) })
	users := make([]uuid.UUID, len(active))
	for i, st := range active {
		users[i] = st.UserID
	}
	return users
}
