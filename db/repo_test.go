package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/techagentng/rentchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func newTestDB(t *testing.T) *GormDB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := migrate(gdb); err != nil {
		t.Fatal(err)
	}
	return &GormDB{DB: gdb}
}

func textMessage(conv uuid.UUID, key, content string, at time.Time) *models.Message {
	return &models.Message{
		ID:             uuid.New(),
		ConversationID: conv,
		SenderID:       uuid.New(),
		ClientKey:      key,
		Kind:           models.KindText,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestClientKeyIndexIsPerConversation(t *testing.T) {
	s, err := schema.Parse(&models.Message{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatal(err)
	}
	idx := s.LookIndex("idx_message_client_key")
	if idx == nil {
		t.Fatal("client key index missing")
	}
	if idx.Class != "UNIQUE" || idx.Where != "client_key <> ''" {
		t.Errorf("index class %q where %q", idx.Class, idx.Where)
	}
	var cols []string
	for _, opt := range idx.Fields {
		cols = append(cols, opt.DBName)
	}
	if len(cols) != 2 || cols[0] != "conversation_id" || cols[1] != "client_key" {
		t.Errorf("index columns = %v", cols)
	}
}

func TestCreateMessageDedupesWithinConversation(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	first, second := uuid.New(), uuid.New()

	a, created, err := repo.CreateMessage(ctx, textMessage(first, "k-1", "Is the flat still free?", now))
	if err != nil || !created {
		t.Fatalf("first send = %v, %v", created, err)
	}
	again, created, err := repo.CreateMessage(ctx, textMessage(first, "k-1", "Is the flat still free?", now))
	if err != nil || created || again.ID != a.ID {
		t.Fatalf("retry = %+v, %v, %v", again, created, err)
	}

	// another conversation may reuse the key
	b, created, err := repo.CreateMessage(ctx, textMessage(second, "k-1", "Can I view it Friday?", now))
	if err != nil || !created || b.ID == a.ID {
		t.Fatalf("other conversation = %+v, %v, %v", b, created, err)
	}

	for conv, want := range map[uuid.UUID]string{first: a.Content, second: b.Content} {
		msgs, err := repo.ListMessages(ctx, conv, 0)
		if err != nil || len(msgs) != 1 || msgs[0].Content != want {
			t.Errorf("conversation %s holds %+v, %v", conv, msgs, err)
		}
	}
}

func TestListMessagesLimitKeepsNewest(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()
	conv := uuid.New()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		if _, _, err := repo.CreateMessage(ctx, textMessage(conv, "", c, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := repo.ListMessages(ctx, conv, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "four" || msgs[1].Content != "five" {
		t.Errorf("limit 2 = %v", contentsOf(msgs))
	}

	all, _ := repo.ListMessages(ctx, conv, 0)
	if len(all) != len(contents) || all[0].Content != "one" {
		t.Errorf("full history = %v", contentsOf(all))
	}
}

func contentsOf(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestTouchPresenceKeepsOnlineFlag(t *testing.T) {
	repo := NewPresenceRepo(newTestDB(t))
	ctx := context.Background()
	user := uuid.New()
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	rec, err := repo.TouchPresence(ctx, user, start)
	if err != nil || rec.Online {
		t.Fatalf("touch of unknown user = %+v, %v", rec, err)
	}

	if err := repo.UpsertPresence(ctx, &models.PresenceRecord{UserID: user, Online: true, LastSeenAt: start}); err != nil {
		t.Fatal(err)
	}
	later := start.Add(30 * time.Second)
	rec, err = repo.TouchPresence(ctx, user, later)
	if err != nil || !rec.Online || !rec.LastSeenAt.Equal(later) {
		t.Fatalf("touch of online user = %+v, %v", rec, err)
	}

	stored, err := repo.FindPresence(ctx, user)
	if err != nil || !stored.Online || !stored.LastSeenAt.Equal(later) {
		t.Errorf("stored = %+v, %v", stored, err)
	}
}
