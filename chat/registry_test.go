package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/klipach/vchat/store"
	"github.com/klipach/vchat/user"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Memory) {
	t.Helper()
	gw := store.NewMemory()
	return NewRegistry(gw, user.NewDirectory(gw)), gw
}

func seedUser(t *testing.T, gw *store.Memory, id, name string) {
	t.Helper()
	err := gw.Set(context.Background(), user.Collection, id, map[string]any{
		"name":   name,
		"email":  id + "@example.com",
		"avatar": user.AvatarURL(name),
	}, false)
	if err != nil {
		t.Fatalf("seeding user %s: %v", id, err)
	}
}

func TestPairID(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{name: "order independent", a: "u1", b: "u2"},
		{name: "distinct ids", a: "alice", b: "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if PairID(tt.a, tt.b) != PairID(tt.b, tt.a) {
				t.Errorf("PairID not symmetric for (%q, %q)", tt.a, tt.b)
			}
		})
	}
	if PairID("a", "b_c") == PairID("a_b", "c") {
		t.Error("distinct pairs collided")
	}
}

func TestCreateDedup(t *testing.T) {
	r, gw := newTestRegistry(t)
	ctx := context.Background()
	seedUser(t, gw, "u1", "Alice")
	seedUser(t, gw, "u2", "Bob")

	first, err := r.Create(ctx, "u1", "u2", "hi")
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := r.Create(ctx, "u1", "u2", "hello again")
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if first != second {
		t.Errorf("creates diverged: %q vs %q", first, second)
	}

	// the reversed direction converges on the same conversation
	reversed, err := r.Create(ctx, "u2", "u1", "other way")
	if err != nil {
		t.Fatalf("reversed create failed: %v", err)
	}
	if reversed != first {
		t.Errorf("reversed create produced a second chat: %q vs %q", reversed, first)
	}

	chats, err := gw.Query(ctx, store.Query{Path: "chats"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected exactly one chat, got %d", len(chats))
	}

	msgs, err := gw.Query(ctx, store.Query{Path: "chats/" + first + "/messages"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one first message, got %d", len(msgs))
	}
	if msgs[0].Data["text"] != "hi" {
		t.Errorf("first message is not the first call's text: %v", msgs[0].Data["text"])
	}
}

func TestCreateErrors(t *testing.T) {
	r, gw := newTestRegistry(t)
	seedUser(t, gw, "u1", "Alice")

	tests := []struct {
		name        string
		actor       string
		other       string
		message     string
		expectedErr error
	}{
		{name: "no actor", actor: "", other: "u1", message: "hi", expectedErr: ErrUnauthenticated},
		{name: "missing target", actor: "u1", other: "ghost", message: "hi", expectedErr: ErrNotFound},
		{name: "empty target id", actor: "u1", other: "", message: "hi", expectedErr: ErrInvalidInput},
		{name: "blank message", actor: "u1", other: "u1", message: "   ", expectedErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(context.Background(), tt.actor, tt.other, tt.message)
			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("expected %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestCreateSupportChatConverges(t *testing.T) {
	r, gw := newTestRegistry(t)
	ctx := context.Background()
	seedUser(t, gw, "u1", "Alice")

	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		id, err := r.CreateSupportChat(ctx, "u1")
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		ids[id] = true
	}
	if len(ids) != 1 {
		t.Fatalf("support chat did not converge: %d distinct ids", len(ids))
	}

	chats, err := gw.Query(ctx, store.Query{Path: "chats"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected one support chat, got %d", len(chats))
	}

	// support user was created on the way
	if _, err := gw.Get(ctx, user.Collection, user.SupportUserID); err != nil {
		t.Errorf("support user missing after bootstrap: %v", err)
	}

	// welcome message authored by support, exactly once
	var chatID string
	for id := range ids {
		chatID = id
	}
	msgs, err := gw.Query(ctx, store.Query{Path: "chats/" + chatID + "/messages"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one welcome message, got %d", len(msgs))
	}
	if msgs[0].Data["senderId"] != user.SupportUserID {
		t.Errorf("welcome message not from support: %v", msgs[0].Data["senderId"])
	}
}

func TestSubscribeRows(t *testing.T) {
	r, gw := newTestRegistry(t)
	ctx := context.Background()
	seedUser(t, gw, "u1", "Alice")
	seedUser(t, gw, "u2", "Bob")
	seedUser(t, gw, "u3", "Carol")

	older, err := r.Create(ctx, "u1", "u2", "first chat")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	newer, err := r.Create(ctx, "u1", "u3", "second chat")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// a chat u1 is not part of must never show up
	if _, err := r.Create(ctx, "u2", "u3", "not ours"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	feed, err := r.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer feed.Cancel()

	rows := recvRows(t, feed)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != newer || rows[1].ID != older {
		t.Errorf("rows not ordered by recency: %q, %q", rows[0].ID, rows[1].ID)
	}
	if rows[0].From != "Carol" {
		t.Errorf("other participant not resolved: %q", rows[0].From)
	}
	if rows[1].From != "Bob" {
		t.Errorf("other participant not resolved: %q", rows[1].From)
	}
	if rows[0].LastMessage != "second chat" {
		t.Errorf("unexpected summary: %q", rows[0].LastMessage)
	}
	if rows[0].UnreadCount != 1 {
		t.Errorf("unexpected unread count: %d", rows[0].UnreadCount)
	}

	// the list reorders when the older chat becomes active again
	ch := NewChannel(gw)
	if _, err := ch.Send(ctx, older, "u2", Content{Kind: KindText, Text: "bump"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	rows = waitForRows(t, feed, func(rows []Row) bool {
		return len(rows) == 2 && rows[0].ID == older
	})
	if rows[0].LastMessage != "bump" {
		t.Errorf("summary not refreshed: %q", rows[0].LastMessage)
	}
}

func TestSubscribeUnauthenticated(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Subscribe(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func recvRows(t *testing.T, feed *Feed) []Row {
	t.Helper()
	select {
	case rows, ok := <-feed.Rows:
		if !ok {
			t.Fatalf("feed closed unexpectedly: %v", feed.Err())
		}
		return rows
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rows")
		return nil
	}
}

// waitForRows skips intermediate snapshots until cond holds.
func waitForRows(t *testing.T, feed *Feed, cond func([]Row) bool) []Row {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case rows, ok := <-feed.Rows:
			if !ok {
				t.Fatalf("feed closed unexpectedly: %v", feed.Err())
			}
			if cond(rows) {
				return rows
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
			return nil
		}
	}
}
