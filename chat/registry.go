package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klipach/vchat/store"
	"github.com/klipach/vchat/user"
)

const welcomeMessage = "Welcome to VChat! I'm your support assistant. How can I help you today?"

// Registry maintains the chat list for an actor and owns the creation
// path, including its dedup guarantee.
type Registry struct {
	gw  store.Gateway
	dir *user.Directory
}

func NewRegistry(gw store.Gateway, dir *user.Directory) *Registry {
	return &Registry{gw: gw, dir: dir}
}

// Feed is a live, ordered view of an actor's conversations. Rows closes
// after Cancel or a terminal subscription error (check Err).
type Feed struct {
	Rows <-chan []Row

	sub  *store.Subscription
	done chan struct{}
	once sync.Once
}

func (f *Feed) Err() error { return f.sub.Err() }

func (f *Feed) Cancel() {
	f.once.Do(func() {
		f.sub.Cancel()
		close(f.done)
	})
}

// Subscribe opens the actor's chat list stream, ordered by last activity.
// Display info for the other participant comes from the embedded
// participantInfo map; no per-row lookups.
func (r *Registry) Subscribe(ctx context.Context, actorID string) (*Feed, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	sub, err := r.gw.Subscribe(ctx, store.Query{
		Path:    chatsCollection,
		Filters: []store.Filter{{Path: participantsField, Op: "array-contains", Value: actorID}},
		OrderBy: lastMessageAtField,
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan []Row, 1)
	feed := &Feed{Rows: out, sub: sub, done: make(chan struct{})}
	go func() {
		defer close(out)
		for docs := range sub.Snapshots() {
			rows := make([]Row, 0, len(docs))
			for _, doc := range docs {
				rows = append(rows, rowFromDocument(doc, actorID))
			}
			select {
			case out <- rows:
			case <-feed.done:
				return
			}
		}
	}()
	return feed, nil
}

// Create starts a conversation with another user, appending the first
// message. Creation is keyed by the pair id, so a concurrent or repeated
// call converges on the existing chat and the first message is written
// exactly once.
func (r *Registry) Create(ctx context.Context, actorID, otherID, firstMessage string) (string, error) {
	if actorID == "" {
		return "", ErrUnauthenticated
	}
	if otherID == "" || strings.TrimSpace(firstMessage) == "" {
		return "", ErrInvalidInput
	}

	otherDoc, err := r.gw.Get(ctx, user.Collection, otherID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("user %s: %w", otherID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading user %s: %w", otherID, err)
	}
	other := user.FromDocument(otherDoc)
	actor := r.actor(ctx, actorID)

	return r.create(ctx, actor, other, actor, firstMessage)
}

// CreateSupportChat starts (or returns) the actor's conversation with the
// support contact, healing the support user record first. The welcome
// message is authored by support.
func (r *Registry) CreateSupportChat(ctx context.Context, actorID string) (string, error) {
	if actorID == "" {
		return "", ErrUnauthenticated
	}
	support, err := r.dir.EnsureSupportUser(ctx)
	if err != nil {
		return "", fmt.Errorf("ensuring support user: %w", err)
	}
	actor := r.actor(ctx, actorID)
	return r.create(ctx, actor, support, support, welcomeMessage)
}

// create conditionally writes the chat document, then the first message.
// sender is the author of the first message. A failure after the chat
// document exists leaves a chat without messages; a retry returns the
// same id via the ErrExists short-circuit and the next send repairs the
// summary.
func (r *Registry) create(ctx context.Context, actor, other, sender user.User, firstMessage string) (string, error) {
	chatID := PairID(actor.ID, other.ID)
	data := map[string]any{
		participantsField: []string{actor.ID, other.ID},
		participantInfoField: map[string]any{
			actor.ID: map[string]any{"name": actor.Name, "avatar": actor.Avatar},
			other.ID: map[string]any{"name": other.Name, "avatar": other.Avatar},
		},
		lastMessageField:   firstMessage,
		lastMessageAtField: r.gw.ServerTimestamp(),
		readField:          false,
		unreadCountField:   1,
		createdAtField:     r.gw.ServerTimestamp(),
	}

	err := r.gw.Create(ctx, chatsCollection, chatID, data)
	if errors.Is(err, store.ErrExists) {
		return chatID, nil
	}
	if err != nil {
		return "", fmt.Errorf("creating chat: %w", err)
	}

	if _, err := appendMessage(ctx, r.gw, chatID, sender, Content{Kind: KindText, Text: firstMessage}); err != nil {
		return chatID, fmt.Errorf("appending first message: %w", err)
	}
	return chatID, nil
}

// actor resolves the acting user's display info, falling back to a
// defaulted record when the profile document does not exist yet.
func (r *Registry) actor(ctx context.Context, actorID string) user.User {
	doc, err := r.gw.Get(ctx, user.Collection, actorID)
	if err != nil {
		return user.User{ID: actorID, Name: "You", Avatar: user.AvatarURL("You")}
	}
	return user.FromDocument(doc)
}

func rowFromDocument(doc store.Document, actorID string) Row {
	row := Row{ID: doc.ID}

	var otherID string
	switch participants := doc.Data[participantsField].(type) {
	case []string:
		for _, p := range participants {
			if p != actorID {
				otherID = p
			}
		}
	case []any:
		for _, p := range participants {
			if s, ok := p.(string); ok && s != actorID {
				otherID = s
			}
		}
	}
	if info, ok := doc.Data[participantInfoField].(map[string]any); ok {
		if other, ok := info[otherID].(map[string]any); ok {
			row.From, _ = other["name"].(string)
			row.Avatar, _ = other["avatar"].(string)
		}
	}
	if row.From == "" {
		row.From = "Unknown User"
	}
	if row.Avatar == "" {
		row.Avatar = user.AvatarURL(row.From)
	}

	row.LastMessage, _ = doc.Data[lastMessageField].(string)
	if at, ok := doc.Data[lastMessageAtField].(time.Time); ok {
		row.Date = at
	}
	row.Read, _ = doc.Data[readField].(bool)
	switch n := doc.Data[unreadCountField].(type) {
	case int:
		row.UnreadCount = n
	case int64:
		row.UnreadCount = int(n)
	case float64:
		row.UnreadCount = int(n)
	}
	return row
}
