// Package vchat is the backend of the VChat messenger: a thin Cloud
// Function surface over the chat registry, message channel and user
// directory, all backed by Firestore.
package vchat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klipach/vchat/chat"
)

const (
	errorMsgLogField = "errorMsg"
	bodyLogField     = "body"
	userIDLogField   = "userID"
	chatIDLogField   = "chatID"
	targetLogField   = "targetUserID"
	messageLogField  = "messageID"
)

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// writeChatError maps the chat error taxonomy onto HTTP statuses;
// anything unrecognized is treated as a transient store failure.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, chat.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, chat.ErrInvalidInput):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
