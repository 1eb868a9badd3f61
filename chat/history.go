package chat

import (
	"context"
	"sort"

	"github.com/klipach/vchat/store"
	"github.com/klipach/vchat/user"
	"github.com/tmc/langchaingo/llms"
)

// historyLimit bounds how much of a conversation is replayed to the
// support model.
const historyLimit = 50

// LoadHistory converts a conversation's message stream into LLM chat
// history: messages authored by the support contact become AI turns,
// everything else human turns.
func LoadHistory(ctx context.Context, gw store.Gateway, chatID string) ([]llms.MessageContent, error) {
	if chatID == "" {
		return nil, ErrInvalidInput
	}
	docs, err := gw.Query(ctx, store.Query{
		Path:    messagesPath(chatID),
		OrderBy: createdAtField,
		Limit:   historyLimit,
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, messageFromDocument(doc))
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	return historyFromMessages(msgs), nil
}

func historyFromMessages(msgs []Message) []llms.MessageContent {
	var history []llms.MessageContent
	for _, m := range msgs {
		if m.Kind == KindSticker {
			// stickers carry no text the model can use
			continue
		}
		role := llms.ChatMessageTypeHuman
		if m.SenderID == user.SupportUserID {
			role = llms.ChatMessageTypeAI
		}
		history = append(history, llms.TextParts(role, m.Text))
	}
	return history
}
