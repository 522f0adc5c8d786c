package realtime

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Topic kinds.
const (
	KindConversation = "conversation"
	KindTyping       = "typing"
	KindPresence     = "presence"
	KindInbox        = "inbox"
)

// ConversationTopic carries message and reaction events for a conversation.
func ConversationTopic(conversationID uuid.UUID) string {
	return KindConversation + ":" + conversationID.String()
}

func TypingTopic(conversationID uuid.UUID) string {
	return KindTyping + ":" + conversationID.String()
}

// PresenceTopic carries one user's presence record.
func PresenceTopic(userID uuid.UUID) string {
	return KindPresence + ":" + userID.String()
}

// InboxTopic carries conversation activity for one user's inbox badges.
func InboxTopic(userID uuid.UUID) string {
	return KindInbox + ":" + userID.String()
}

// ParseTopic splits a topic into its kind and id.
func ParseTopic(topic string) (kind string, id uuid.UUID, err error) {
	kind, rest, ok := strings.Cut(topic, ":")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("malformed topic %q", topic)
	}
	switch kind {
	case KindConversation, KindTyping, KindPresence, KindInbox:
	default:
		return "", uuid.Nil, fmt.Errorf("unknown topic kind %q", kind)
	}
	id, err = uuid.Parse(rest)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("topic %q: %w", topic, err)
	}
	return kind, id, nil
}
