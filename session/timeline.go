package session

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/techagentng/rentchat/models"
)

// Status is the local delivery state of a timeline entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

const (
	// DefaultMatchWindow bounds how far a keyless confirmation may sit from
	// the local send time and still replace a pending entry.
	DefaultMatchWindow = 10 * time.Second
	// DefaultConfirmTimeout is how long an entry may stay pending before it
	// is flagged failed.
	DefaultConfirmTimeout = 15 * time.Second

	localIDPrefix = "local-"
)

// Entry is one row of the rendered conversation. Pending and failed entries
// have a nil Message.ID and are addressed by LocalID.
type Entry struct {
	LocalID     string
	Message     models.Message
	Status      Status
	LocalAt     time.Time
	SubmittedAt time.Time

	seq uint64
}

// Key is the id the UI addresses the entry by.
func (e Entry) Key() string {
	if e.Message.ID != uuid.Nil {
		return e.Message.ID.String()
	}
	return e.LocalID
}

// Confirmed reports whether the entry carries an authoritative row.
func (e Entry) Confirmed() bool {
	return e.Message.ID != uuid.Nil
}

func (e Entry) sortKey() time.Time {
	if e.Confirmed() {
		return e.Message.CreatedAt
	}
	return e.LocalAt
}

// IsLocalID reports whether id names a not yet confirmed entry.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

func statusOf(m models.Message) Status {
	if m.ReadAt != nil {
		return StatusRead
	}
	return StatusConfirmed
}

// Timeline reconciles optimistic local sends with the authoritative rows
// arriving from fetches, write responses and the change feed. It is not
// safe for concurrent use; ConversationView guards it.
type Timeline struct {
	conversationID uuid.UUID
	viewerID       uuid.UUID
	matchWindow    time.Duration

	entries []*Entry
	seq     uint64
}

func NewTimeline(conversationID, viewerID uuid.UUID) *Timeline {
	return &Timeline{
		conversationID: conversationID,
		viewerID:       viewerID,
		matchWindow:    DefaultMatchWindow,
	}
}

// SetMatchWindow overrides DefaultMatchWindow.
func (t *Timeline) SetMatchWindow(d time.Duration) {
	t.matchWindow = d
}

// AddPending appends an optimistic entry for a message the viewer is about
// to send. The entry gets a fresh client key the server echoes back.
func (t *Timeline) AddPending(msg models.Message, now time.Time) Entry {
	t.seq++
	msg.ID = uuid.Nil
	msg.ConversationID = t.conversationID
	msg.SenderID = t.viewerID
	msg.ClientKey = uuid.NewString()
	msg.CreatedAt = now
	msg.ReadAt = nil

	e := &Entry{
		LocalID:     localIDPrefix + uuid.NewString(),
		Message:     msg,
		Status:      StatusPending,
		LocalAt:     now,
		SubmittedAt: now,
		seq:         t.seq,
	}
	t.entries = append(t.entries, e)
	return *e
}

// Confirm applies an authoritative row. It replaces the pending entry the
// row answers, merges into an entry already holding the row, or appends.
// Confirming the same row twice changes nothing the second time. The result
// reports whether the timeline changed.
func (t *Timeline) Confirm(row models.Message) bool {
	if row.ID == uuid.Nil || row.ConversationID != t.conversationID {
		return false
	}
	if e := t.byID(row.ID); e != nil {
		return t.merge(e, models.PatchFromRow(row))
	}
	if e := t.matchPending(row); e != nil {
		e.Message = row
		e.Status = statusOf(row)
		return true
	}
	t.seq++
	t.entries = append(t.entries, &Entry{Message: row, Status: statusOf(row), seq: t.seq})
	return true
}

// Reconcile confirms every fetched row. Pending entries the fetch does not
// answer are kept.
func (t *Timeline) Reconcile(rows []models.Message) bool {
	changed := false
	for _, row := range rows {
		if t.Confirm(row) {
			changed = true
		}
	}
	return changed
}

// ApplyUpdate merges p into the confirmed entry with the given id. Unknown
// ids are ignored; the row will arrive with the next fetch.
func (t *Timeline) ApplyUpdate(id uuid.UUID, p models.MessagePatch) bool {
	e := t.byID(id)
	if e == nil {
		return false
	}
	return t.merge(e, p)
}

func (t *Timeline) merge(e *Entry, p models.MessagePatch) bool {
	if p.Empty() {
		return false
	}
	before := e.Message.ReadAt
	e.Message = models.MergeMessage(e.Message, p)
	e.Status = statusOf(e.Message)
	return before == nil || !before.Equal(*e.Message.ReadAt)
}

func (t *Timeline) byID(id uuid.UUID) *Entry {
	for _, e := range t.entries {
		if e.Message.ID == id {
			return e
		}
	}
	return nil
}

func (t *Timeline) byLocalID(localID string) *Entry {
	for _, e := range t.entries {
		if e.LocalID == localID && !e.Confirmed() {
			return e
		}
	}
	return nil
}

// matchPending finds the unconfirmed entry row answers. The client key is
// authoritative; rows without one fall back to sender, kind and payload
// within the match window, oldest entry first.
func (t *Timeline) matchPending(row models.Message) *Entry {
	if row.ClientKey != "" {
		for _, e := range t.entries {
			if !e.Confirmed() && e.Message.ClientKey == row.ClientKey {
				return e
			}
		}
		return nil
	}
	if row.SenderID != t.viewerID {
		return nil
	}
	var best *Entry
	for _, e := range t.entries {
		if e.Confirmed() || !e.Message.SamePayload(&row) {
			continue
		}
		if d := row.CreatedAt.Sub(e.LocalAt); d > t.matchWindow || d < -t.matchWindow {
			continue
		}
		if best == nil || e.seq < best.seq {
			best = e
		}
	}
	return best
}

// MarkFailed flags a pending entry after its write failed.
func (t *Timeline) MarkFailed(localID string) bool {
	e := t.byLocalID(localID)
	if e == nil || e.Status == StatusFailed {
		return false
	}
	e.Status = StatusFailed
	return true
}

// Retry puts a failed entry back to pending and returns it for
// resubmission under its original client key.
func (t *Timeline) Retry(localID string, now time.Time) (Entry, bool) {
	e := t.byLocalID(localID)
	if e == nil || e.Status != StatusFailed {
		return Entry{}, false
	}
	e.Status = StatusPending
	e.SubmittedAt = now
	return *e, true
}

// ExpirePending flags entries that have waited longer than timeout for a
// confirmation and returns their local ids. Nothing is resubmitted.
func (t *Timeline) ExpirePending(now time.Time, timeout time.Duration) []string {
	var expired []string
	for _, e := range t.entries {
		if e.Status == StatusPending && now.Sub(e.SubmittedAt) > timeout {
			e.Status = StatusFailed
			expired = append(expired, e.LocalID)
		}
	}
	return expired
}

// Entry returns the entry addressed by key, either a message id or a local id.
func (t *Timeline) Entry(key string) (Entry, bool) {
	for _, e := range t.entries {
		if e.Key() == key || e.LocalID == key {
			return *e, true
		}
	}
	return Entry{}, false
}

func (t *Timeline) Len() int {
	return len(t.entries)
}

// Messages returns the entries in render order: authoritative created-at for
// confirmed rows, local send time for the rest, insertion order on ties.
func (t *Timeline) Messages() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].sortKey(), out[j].sortKey()
		if ki.Equal(kj) {
			return out[i].seq < out[j].seq
		}
		return ki.Before(kj)
	})
	return out
}

// Rows returns the confirmed messages in render order.
func (t *Timeline) Rows() []models.Message {
	var rows []models.Message
	for _, e := range t.Messages() {
		if e.Confirmed() {
			rows = append(rows, e.Message)
		}
	}
	return rows
}
