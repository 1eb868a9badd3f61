package vchat

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/klipach/vchat/auth"
	"github.com/klipach/vchat/chat"
	"github.com/klipach/vchat/contract"
	"github.com/klipach/vchat/log"
	"github.com/klipach/vchat/store"
)

func init() {
	functions.HTTP("SendMessage", SendMessage)
}

// SendMessage appends a message to a conversation on behalf of the
// authenticated actor.
func SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := log.WithRequestTrace(r.Context(), r)
	logger := log.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.Error("invalid method: " + r.Method)
		http.Error(w, "Method Not Implemented", http.StatusNotImplemented)
		return
	}

	token, err := auth.Authenticate(r)
	if err != nil {
		logger.Error("error while authenticating", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	logger = logger.With(slog.String(userIDLogField, token.UID))

	data, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("error while reading request body", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var req contract.SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Error("error while decoding request", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	logger = logger.With(slog.String(chatIDLogField, req.ChatID))
	ctx = log.WithLogger(ctx, logger)

	content := chat.Content{
		Kind:       chat.Kind(req.Kind),
		Text:       req.Text,
		StickerRef: req.StickerRef,
	}
	if content.Kind == "" {
		content.Kind = chat.KindText
	}
	if content.Kind == chat.KindText {
		content.Text = expandMentions(content.Text)
	}

	gw, err := store.NewFirestore(ctx)
	if err != nil {
		logger.Error("error while connecting to firestore", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer gw.Close()

	messageID, err := chat.NewChannel(gw).Send(ctx, req.ChatID, token.UID, content)
	if err != nil {
		logger.Error("error while sending message", slog.String(errorMsgLogField, err.Error()))
		writeChatError(w, err)
		return
	}
	logger.Info("message sent", slog.String(messageLogField, messageID))
	if err := writeJSON(w, contract.SendMessageResponse{MessageID: messageID}); err != nil {
		logger.Error("error while writing response", slog.String(errorMsgLogField, err.Error()))
	}
}
