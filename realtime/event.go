package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Table names carried on events.
const (
	TableMessages      = "messages"
	TableReactions     = "reactions"
	TablePresence      = "presence_records"
	TableTyping        = "typing_states"
	TableConversations = "conversations"
)

// Event is a row-level change delivered on a topic. Row holds the JSON
// encoding of the affected record.
type Event struct {
	Topic     string          `json:"topic"`
	Table     string          `json:"table"`
	Type      EventType       `json:"type"`
	Row       json.RawMessage `json:"row"`
	EmittedAt time.Time       `json:"emitted_at"`
}

func NewEvent(topic, table string, typ EventType, row interface{}) (Event, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s row: %w", table, err)
	}
	return Event{
		Topic:     topic,
		Table:     table,
		Type:      typ,
		Row:       raw,
		EmittedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the row into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Row, v)
}

// Predicate filters events for one subscriber. A nil Predicate matches all.
type Predicate func(Event) bool

// ColumnEquals matches rows whose column renders as value, e.g.
// ColumnEquals("conversation_id", id.String()).
func ColumnEquals(column, value string) Predicate {
	return func(e Event) bool {
		var row map[string]interface{}
		if err := json.Unmarshal(e.Row, &row); err != nil {
			return false
		}
		v, ok := row[column]
		if !ok || v == nil {
			return false
		}
		return fmt.Sprint(v) == value
	}
}

// TableIs matches events for one table.
func TableIs(table string) Predicate {
	return func(e Event) bool { return e.Table == table }
}

// All matches when every predicate matches.
func All(preds ...Predicate) Predicate {
	return func(e Event) bool {
		for _, p := range preds {
			if p != nil && !p(e) {
				return false
			}
		}
		return true
	}
}
