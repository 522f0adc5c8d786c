package models

import "time"

// MessagePatch holds the mutable message columns an update event may carry.
// A nil field means "unchanged".
type MessagePatch struct {
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p MessagePatch) Empty() bool {
	return p.ReadAt == nil
}

// Fields lists the column names the patch sets.
func (p MessagePatch) Fields() []string {
	var f []string
	if p.ReadAt != nil {
		f = append(f, "read_at")
	}
	return f
}

// PatchFromRow extracts the mutable columns of a confirmed row.
func PatchFromRow(row Message) MessagePatch {
	var p MessagePatch
	if row.ReadAt != nil {
		t := *row.ReadAt
		p.ReadAt = &t
	}
	return p
}

// MergeMessage returns m with p applied. ReadAt is never cleared and never
// moved earlier, so replaying an older update is harmless.
func MergeMessage(m Message, p MessagePatch) Message {
	if p.ReadAt != nil {
		if m.ReadAt == nil || p.ReadAt.After(*m.ReadAt) {
			t := *p.ReadAt
			m.ReadAt = &t
		}
	}
	return m
}
