// Package chat maintains a user's live conversation list and the
// per-conversation message stream. A conversation is strictly pairwise;
// its document id is derived from the participant pair, so creation is a
// conditional write and repeated creations converge on one record.
package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"

	participantsField    = "participants"
	participantInfoField = "participantInfo"
	lastMessageField     = "lastMessage"
	lastMessageAtField   = "lastMessageAt"
	createdAtField       = "createdAt"
	updatedAtField       = "updatedAt"
	readField            = "read"
	unreadCountField     = "unreadCount"
)

var (
	ErrUnauthenticated = errors.New("no authenticated actor")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// Kind classifies message content.
type Kind string

const (
	KindText    Kind = "text"
	KindEmoji   Kind = "emoji"
	KindSticker Kind = "sticker"
)

// Content is an outgoing message payload.
type Content struct {
	Kind       Kind
	Text       string
	StickerRef string
}

// Message is one entry of a conversation's append-only message stream.
type Message struct {
	ID           string
	Text         string
	Kind         Kind
	StickerRef   string
	SenderID     string
	SenderName   string
	SenderAvatar string
	CreatedAt    time.Time
}

// Row is a conversation as shown in the chat list: the other
// participant's display info plus the denormalized last-message summary.
type Row struct {
	ID          string
	From        string
	Avatar      string
	LastMessage string
	Date        time.Time
	Read        bool
	UnreadCount int
}

// PairID derives the canonical chat document id for two participants.
// The pair is unordered: PairID(a, b) == PairID(b, a).
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "\x00" + b))
	return hex.EncodeToString(sum[:16])
}

func messagesPath(chatID string) string {
	return chatsCollection + "/" + chatID + "/" + messagesCollection
}
