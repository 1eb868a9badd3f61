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
	"github.com/klipach/vchat/user"
)

func init() {
	functions.HTTP("CreateChat", CreateChat)
	functions.HTTP("CreateSupportChat", CreateSupportChat)
}

// CreateChat starts a conversation between the authenticated actor and
// another user, appending the first message. Repeated calls for the same
// pair return the same chat id.
func CreateChat(w http.ResponseWriter, r *http.Request) {
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
	var req contract.CreateChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Error("error while decoding request", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	logger = logger.With(slog.String(targetLogField, req.UserID))
	ctx = log.WithLogger(ctx, logger)

	gw, err := store.NewFirestore(ctx)
	if err != nil {
		logger.Error("error while connecting to firestore", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer gw.Close()

	registry := chat.NewRegistry(gw, user.NewDirectory(gw))
	chatID, err := registry.Create(ctx, token.UID, req.UserID, req.Message)
	if err != nil {
		logger.Error("error while creating chat", slog.String(errorMsgLogField, err.Error()))
		writeChatError(w, err)
		return
	}
	logger.Info("chat created", slog.String(chatIDLogField, chatID))
	if err := writeJSON(w, contract.CreateChatResponse{ChatID: chatID}); err != nil {
		logger.Error("error while writing response", slog.String(errorMsgLogField, err.Error()))
	}
}

// CreateSupportChat bootstraps the actor's conversation with the support
// contact. Calling it again returns the existing chat.
func CreateSupportChat(w http.ResponseWriter, r *http.Request) {
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
	ctx = log.WithLogger(ctx, logger)

	gw, err := store.NewFirestore(ctx)
	if err != nil {
		logger.Error("error while connecting to firestore", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer gw.Close()

	registry := chat.NewRegistry(gw, user.NewDirectory(gw))
	chatID, err := registry.CreateSupportChat(ctx, token.UID)
	if err != nil {
		logger.Error("error while creating support chat", slog.String(errorMsgLogField, err.Error()))
		writeChatError(w, err)
		return
	}
	logger.Info("support chat ready", slog.String(chatIDLogField, chatID))
	if err := writeJSON(w, contract.CreateChatResponse{ChatID: chatID}); err != nil {
		logger.Error("error while writing response", slog.String(errorMsgLogField, err.Error()))
	}
}
