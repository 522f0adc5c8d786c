package models

import (
	"time"

	"github.com/google/uuid"
)

// Subject kinds a conversation can be about.
const (
	SubjectListing = "listing"
	SubjectJob     = "job"
)

// Conversation is a two-party thread about one listing or job. The participant
// pair never changes after creation.
type Conversation struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_parties" json:"tenant_id"`
	CounterpartyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_parties" json:"counterparty_id"`
	SubjectType    string    `gorm:"not null" json:"subject_type"`
	SubjectID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_parties" json:"subject_id"`
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateConversationRequest struct {
	CounterpartyID uuid.UUID `json:"counterparty_id" binding:"required"`
	SubjectType    string    `json:"subject_type" binding:"required,oneof=listing job"`
	SubjectID      uuid.UUID `json:"subject_id" binding:"required"`
}

// InboxEntry is a conversation as listed in a user's inbox.
type InboxEntry struct {
	Conversation
	UnreadCount int64 `json:"unread_count"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.TenantID == userID || c.CounterpartyID == userID
}

// Counterpart returns the other participant, or uuid.Nil if userID is not part
// of the conversation.
func (c *Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	switch userID {
	case c.TenantID:
		return c.CounterpartyID
	case c.CounterpartyID:
		return c.TenantID
	}
	return uuid.Nil
}

// Participants returns both sides in a fixed order.
func (c *Conversation) Participants() []uuid.UUID {
	return []uuid.UUID{c.TenantID, c.CounterpartyID}
}
