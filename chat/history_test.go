package chat

import (
	"reflect"
	"testing"

	"github.com/klipach/vchat/user"
	"github.com/tmc/langchaingo/llms"
)

func TestHistoryFromMessages(t *testing.T) {
	tests := []struct {
		name     string
		msgs     []Message
		expected []llms.MessageContent
	}{
		{
			name: "roles by sender",
			msgs: []Message{
				{SenderID: "u1", Kind: KindText, Text: "hello"},
				{SenderID: user.SupportUserID, Kind: KindText, Text: "hi, how can I help?"},
				{SenderID: "u1", Kind: KindEmoji, Text: "\U0001F44D"},
			},
			expected: []llms.MessageContent{
				llms.TextParts(llms.ChatMessageTypeHuman, "hello"),
				llms.TextParts(llms.ChatMessageTypeAI, "hi, how can I help?"),
				llms.TextParts(llms.ChatMessageTypeHuman, "\U0001F44D"),
			},
		},
		{
			name: "stickers skipped",
			msgs: []Message{
				{SenderID: "u1", Kind: KindSticker, StickerRef: "ref"},
				{SenderID: "u1", Kind: KindText, Text: "that was a sticker"},
			},
			expected: []llms.MessageContent{
				llms.TextParts(llms.ChatMessageTypeHuman, "that was a sticker"),
			},
		},
		{
			name:     "empty chat",
			msgs:     nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := historyFromMessages(tt.msgs)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("historyFromMessages() = %v; want %v", got, tt.expected)
			}
		})
	}
}
