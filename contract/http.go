// Package contract holds the JSON shapes of the HTTP function surface.
package contract

type CreateChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type CreateChatResponse struct {
	ChatID string `json:"chat_id"`
}

type SendMessageRequest struct {
	ChatID     string `json:"chat_id"`
	Text       string `json:"text"`
	Kind       string `json:"kind"`
	StickerRef string `json:"sticker_ref,omitempty"`
}

type SendMessageResponse struct {
	MessageID string `json:"message_id"`
}

type SupportBotRequest struct {
	Message string `json:"message"`
}

// SupportBotChunk is one SSE data event of a streamed support reply.
type SupportBotChunk struct {
	Response string `json:"response"`
}

// SupportBotDone closes a streamed support reply with the persisted
// message id and the sanitized HTML rendering of the full text.
type SupportBotDone struct {
	Done      bool   `json:"done"`
	MessageID string `json:"message_id,omitempty"`
	HTML      string `json:"html,omitempty"`
}
