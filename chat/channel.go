package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klipach/vchat/store"
	"github.com/klipach/vchat/user"
)

// Channel streams and appends the messages of one conversation.
type Channel struct {
	gw store.Gateway
}

func NewChannel(gw store.Gateway) *Channel {
	return &Channel{gw: gw}
}

// MessageFeed is a live view of one conversation. Every element on
// Messages is a full replacement list, ascending by creation time.
// The channel closes after Cancel or a terminal subscription error
// (check Err); a fresh Subscribe is required after an error.
type MessageFeed struct {
	Messages <-chan []Message

	sub  *store.Subscription
	done chan struct{}
	once sync.Once
}

func (f *MessageFeed) Err() error { return f.sub.Err() }

func (f *MessageFeed) Cancel() {
	f.once.Do(func() {
		f.sub.Cancel()
		close(f.done)
	})
}

// Subscribe opens the message stream for a conversation. Messages with
// equal timestamps keep their arrival order (stable sort), so the stream
// is deterministic even on server clock collisions.
func (c *Channel) Subscribe(ctx context.Context, chatID string) (*MessageFeed, error) {
	if chatID == "" {
		return nil, ErrInvalidInput
	}
	sub, err := c.gw.Subscribe(ctx, store.Query{
		Path:    messagesPath(chatID),
		OrderBy: createdAtField,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan []Message, 1)
	feed := &MessageFeed{Messages: out, sub: sub, done: make(chan struct{})}
	go func() {
		defer close(out)
		for docs := range sub.Snapshots() {
			msgs := make([]Message, 0, len(docs))
			for _, doc := range docs {
				msgs = append(msgs, messageFromDocument(doc))
			}
			sort.SliceStable(msgs, func(i, j int) bool {
				return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
			})
			select {
			case out <- msgs:
			case <-feed.done:
				return
			}
		}
	}()
	return feed, nil
}

// Send appends a message and then refreshes the parent chat's summary
// fields. The two writes are not atomic: when the second fails the
// summary stays stale until the next successful send, which is fine
// because the message list is the source of truth.
func (c *Channel) Send(ctx context.Context, chatID, senderID string, content Content) (string, error) {
	if senderID == "" {
		return "", ErrUnauthenticated
	}
	if chatID == "" {
		return "", ErrInvalidInput
	}
	if err := validateContent(content); err != nil {
		return "", err
	}

	sender := c.sender(ctx, senderID)
	id, err := appendMessage(ctx, c.gw, chatID, sender, content)
	if err != nil {
		return "", fmt.Errorf("appending message: %w", err)
	}

	summary := map[string]any{
		lastMessageField:   summaryText(content),
		lastMessageAtField: c.gw.ServerTimestamp(),
		updatedAtField:     c.gw.ServerTimestamp(),
		readField:          false,
	}
	if err := c.gw.Update(ctx, chatsCollection, chatID, summary); err != nil {
		return id, fmt.Errorf("updating chat summary: %w", err)
	}
	return id, nil
}

func (c *Channel) sender(ctx context.Context, senderID string) user.User {
	doc, err := c.gw.Get(ctx, user.Collection, senderID)
	if err != nil {
		return user.User{ID: senderID, Name: "You", Avatar: user.AvatarURL("You")}
	}
	return user.FromDocument(doc)
}

// validateContent fails fast, before any store call.
func validateContent(content Content) error {
	switch content.Kind {
	case KindText, KindEmoji:
		if strings.TrimSpace(content.Text) == "" {
			return fmt.Errorf("empty %s payload: %w", content.Kind, ErrInvalidInput)
		}
	case KindSticker:
		if content.StickerRef == "" {
			return fmt.Errorf("sticker without reference: %w", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown message kind %q: %w", content.Kind, ErrInvalidInput)
	}
	return nil
}

func summaryText(content Content) string {
	if content.Kind == KindSticker {
		return "Sticker"
	}
	return content.Text
}

func appendMessage(ctx context.Context, gw store.Gateway, chatID string, sender user.User, content Content) (string, error) {
	data := map[string]any{
		"text":         content.Text,
		"kind":         string(content.Kind),
		"senderId":     sender.ID,
		"senderName":   sender.Name,
		"senderAvatar": sender.Avatar,
		createdAtField: gw.ServerTimestamp(),
	}
	if content.StickerRef != "" {
		data["stickerRef"] = content.StickerRef
	}
	return gw.Add(ctx, messagesPath(chatID), data)
}

func messageFromDocument(doc store.Document) Message {
	m := Message{
		ID:         doc.ID,
		Text:       str(doc.Data["text"]),
		Kind:       Kind(str(doc.Data["kind"])),
		StickerRef: str(doc.Data["stickerRef"]),
		SenderID:   str(doc.Data["senderId"]),
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
	m.SenderName = str(doc.Data["senderName"])
	if m.SenderName == "" {
		m.SenderName = "Unknown"
	}
	m.SenderAvatar = str(doc.Data["senderAvatar"])
	if at, ok := doc.Data[createdAtField].(time.Time); ok {
		m.CreatedAt = at
	}
	return m
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
