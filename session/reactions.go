package session

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/techagentng/rentchat/models"
	"github.com/techagentng/rentchat/realtime"
)

// ReactionGroup is one emoji under a message with who used it.
type ReactionGroup struct {
	Emoji string
	Count int
	Users []string
	Mine  bool
}

// UnknownUser labels a reacting user missing from the names map.
const UnknownUser = "Unknown user"

// GroupReactions groups reactions by emoji in order of first appearance.
// viewer marks the groups the viewer is part of.
func GroupReactions(reactions []models.Reaction, names map[uuid.UUID]string, viewer uuid.UUID) []ReactionGroup {
	var groups []ReactionGroup
	index := make(map[string]int)
	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		name, ok := names[r.UserID]
		if !ok {
			name = UnknownUser
		}
		g := &groups[i]
		g.Count++
		g.Users = append(g.Users, name)
		if r.UserID == viewer {
			g.Mine = true
		}
	}
	return groups
}

// ReactionSet is the local copy of the reactions in a conversation. Inserts
// and deletes are idempotent so the feed and write responses may overlap.
type ReactionSet struct {
	byKey map[models.ReactionKey]models.Reaction
}

func NewReactionSet() *ReactionSet {
	return &ReactionSet{byKey: make(map[models.ReactionKey]models.Reaction)}
}

func (s *ReactionSet) Insert(r models.Reaction) bool {
	if _, ok := s.byKey[r.Key()]; ok {
		return false
	}
	s.byKey[r.Key()] = r
	return true
}

func (s *ReactionSet) Delete(key models.ReactionKey) bool {
	if _, ok := s.byKey[key]; !ok {
		return false
	}
	delete(s.byKey, key)
	return true
}

// Replace drops what is held for messageID and stores reactions instead.
func (s *ReactionSet) Replace(messageID uuid.UUID, reactions []models.Reaction) {
	for k := range s.byKey {
		if k.MessageID == messageID {
			delete(s.byKey, k)
		}
	}
	for _, r := range reactions {
		s.byKey[r.Key()] = r
	}
}

// ApplyEvent folds a reactions feed event into the set.
func (s *ReactionSet) ApplyEvent(e realtime.Event) (bool, error) {
	var r models.Reaction
	if err := e.Decode(&r); err != nil {
		return false, err
	}
	switch e.Type {
	case realtime.EventInsert:
		return s.Insert(r), nil
	case realtime.EventDelete:
		return s.Delete(r.Key()), nil
	}
	return false, fmt.Errorf("unexpected reaction event %q", e.Type)
}

// ApplyToggle folds a toggle response into the set.
func (s *ReactionSet) ApplyToggle(res models.ToggleReactionResponse) bool {
	if res.Added {
		return s.Insert(res.Reaction)
	}
	return s.Delete(res.Reaction.Key())
}

// Has reports whether the tuple is present.
func (s *ReactionSet) Has(key models.ReactionKey) bool {
	_, ok := s.byKey[key]
	return ok
}

// For lists the reactions on a message, oldest first.
func (s *ReactionSet) For(messageID uuid.UUID) []models.Reaction {
	var out []models.Reaction
	for k, r := range s.byKey {
		if k.MessageID == messageID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
