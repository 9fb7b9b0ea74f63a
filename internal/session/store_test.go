package session

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chatrelay/chatrelay/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.Message{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestHistory_EmptyForUnknownUser(t *testing.T) {
	store := NewStore(openTestDB(t), 12)

	rows, err := store.History(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(rows))
	}
}

func TestAppend_PreservesOrder(t *testing.T) {
	store := NewStore(openTestDB(t), 12)
	ctx := context.Background()

	pairs := []struct {
		role    string
		content string
	}{
		{models.RoleUser, "hello"},
		{models.RoleAssistant, "hi there"},
		{models.RoleUser, "how are you"},
		{models.RoleAssistant, "fine"},
	}
	for _, pair := range pairs {
		if errAppend := store.Append(ctx, "alice", pair.role, pair.content); errAppend != nil {
			t.Fatalf("append: %v", errAppend)
		}
	}

	rows, errHistory := store.History(ctx, "alice")
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(rows) != len(pairs) {
		t.Fatalf("expected %d entries, got %d", len(pairs), len(rows))
	}
	for i, row := range rows {
		if row.Role != pairs[i].role || row.Content != pairs[i].content {
			t.Fatalf("entry %d out of order: got %s/%q", i, row.Role, row.Content)
		}
	}
}

func TestAppend_TruncatesToNewestEntries(t *testing.T) {
	store := NewStore(openTestDB(t), 12)
	ctx := context.Background()

	for i := 1; i <= 15; i++ {
		if errAppend := store.Append(ctx, "alice", models.RoleUser, fmt.Sprintf("msg-%d", i)); errAppend != nil {
			t.Fatalf("append %d: %v", i, errAppend)
		}
	}

	rows, errHistory := store.History(ctx, "alice")
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(rows) != 12 {
		t.Fatalf("expected 12 surviving entries, got %d", len(rows))
	}
	// The survivors are entries 4 through 15 in original relative order.
	for i, row := range rows {
		want := fmt.Sprintf("msg-%d", i+4)
		if row.Content != want {
			t.Fatalf("entry %d: expected %q, got %q", i, want, row.Content)
		}
	}
}

func TestAppend_TruncationIsPerUser(t *testing.T) {
	store := NewStore(openTestDB(t), 12)
	ctx := context.Background()

	for i := 1; i <= 15; i++ {
		if errAppend := store.Append(ctx, "alice", models.RoleUser, fmt.Sprintf("a-%d", i)); errAppend != nil {
			t.Fatalf("append alice: %v", errAppend)
		}
	}
	if errAppend := store.Append(ctx, "bob", models.RoleUser, "b-1"); errAppend != nil {
		t.Fatalf("append bob: %v", errAppend)
	}

	bobRows, errHistory := store.History(ctx, "bob")
	if errHistory != nil {
		t.Fatalf("history bob: %v", errHistory)
	}
	if len(bobRows) != 1 || bobRows[0].Content != "b-1" {
		t.Fatalf("bob's log affected by alice's truncation: %+v", bobRows)
	}
}
