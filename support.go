package vchat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/template"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/klipach/vchat/auth"
	"github.com/klipach/vchat/chat"
	"github.com/klipach/vchat/contract"
	"github.com/klipach/vchat/filter"
	"github.com/klipach/vchat/log"
	"github.com/klipach/vchat/store"
	"github.com/klipach/vchat/user"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	openAIModel     = "gpt-4o-mini"
	maxReplyTokens  = 1000
	supportPromptID = "support.tmpl"

	supportPrompt = `You are the VChat support assistant, chatting with {{.ActorName}}.
Answer questions about the VChat messenger: finding contacts, starting
conversations, sending messages, emoji and stickers.
Be brief and friendly. When you point the user at a contact or an open
conversation, reference it as {Label|users/<id>} or {Label|chats/<id>}.
Never include links to external websites.`
)

var openaiAPIKey = os.Getenv("OPENAI_API_KEY")

func init() {
	functions.HTTP("SupportBot", SupportBot)
}

// replyStream forwards the LLM's chunks through the output filters as
// SSE data events, collecting the cleaned text for persistence. The
// filters buffer chunks that might start a construct, so Flush must run
// once the model is done to release anything still held back.
type replyStream struct {
	w       io.Writer
	flusher http.Flusher
	full    *strings.Builder

	// filter state persists across chunks of one reply
	df *filter.DeepLinkFilter
	ef *filter.ExternalLinkFilter
}

func newReplyStream(w io.Writer, flusher http.Flusher, full *strings.Builder) *replyStream {
	return &replyStream{
		w:       w,
		flusher: flusher,
		full:    full,
		df:      &filter.DeepLinkFilter{},
		ef:      &filter.ExternalLinkFilter{},
	}
}

// StreamFunc is the langchaingo streaming callback.
func (s *replyStream) StreamFunc(ctx context.Context, chunk []byte) error {
	return s.emit(ctx, s.df.ProcessChunk(ctx, s.ef.ProcessChunk(ctx, string(chunk))))
}

// Flush releases the filters' end-of-stream buffers. A reply whose last
// chunk left a filter buffering would otherwise be truncated.
func (s *replyStream) Flush(ctx context.Context) error {
	text := s.df.ProcessChunk(ctx, s.ef.ProcessChunk(ctx, ""))
	text += s.df.ProcessChunk(ctx, "")
	return s.emit(ctx, text)
}

func (s *replyStream) emit(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	s.full.WriteString(text)
	jsonData, err := json.Marshal(contract.SupportBotChunk{Response: text})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// SupportBot answers a message in the actor's support conversation. The
// user message and the generated reply are both persisted, so the
// conversation reads back like any other chat.
func SupportBot(w http.ResponseWriter, r *http.Request) {
	ctx := log.WithRequestTrace(r.Context(), r)
	logger := log.LoggerFromContext(ctx)
	logger.Info("support bot called")

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
	logger.Info("incoming request", slog.String(bodyLogField, string(data)))

	var req contract.SupportBotRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Error("error while decoding request", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		logger.Error("empty support message")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	gw, err := store.NewFirestore(ctx)
	if err != nil {
		logger.Error("error while connecting to firestore", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer gw.Close()

	dir := user.NewDirectory(gw)
	registry := chat.NewRegistry(gw, dir)
	channel := chat.NewChannel(gw)

	chatID, err := registry.CreateSupportChat(ctx, token.UID)
	if err != nil {
		logger.Error("error while opening support chat", slog.String(errorMsgLogField, err.Error()))
		writeChatError(w, err)
		return
	}
	logger = logger.With(slog.String(chatIDLogField, chatID))
	ctx = log.WithLogger(ctx, logger)

	if _, err := channel.Send(ctx, chatID, token.UID, chat.Content{Kind: chat.KindText, Text: req.Message}); err != nil {
		logger.Error("error while persisting user message", slog.String(errorMsgLogField, err.Error()))
		writeChatError(w, err)
		return
	}

	history, err := chat.LoadHistory(ctx, gw, chatID)
	if err != nil {
		logger.Error("error while loading chat history", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	prompt, err := renderSupportPrompt(ctx, gw, token.UID)
	if err != nil {
		logger.Error("error while rendering prompt", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	openAIClient, err := openai.New(
		openai.WithModel(openAIModel),
		openai.WithToken(openaiAPIKey),
	)
	if err != nil {
		logger.Error("error while creating openAI client", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming unsupported!")
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	var full strings.Builder
	stream := newReplyStream(w, flusher, &full)
	_, err = openAIClient.GenerateContent(
		ctx,
		append(
			[]llms.MessageContent{
				llms.TextParts(llms.ChatMessageTypeSystem, prompt),
			},
			history...,
		),
		llms.WithStreamingFunc(stream.StreamFunc),
		llms.WithMaxTokens(maxReplyTokens),
	)
	if err != nil {
		logger.Error("ChatCompletion error", slog.String(errorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := stream.Flush(ctx); err != nil {
		logger.Error("error while flushing reply stream", slog.String(errorMsgLogField, err.Error()))
	}

	reply := strings.TrimSpace(full.String())
	if reply == "" {
		logger.Error("no support reply generated")
		return
	}

	messageID, err := channel.Send(ctx, chatID, user.SupportUserID, chat.Content{Kind: chat.KindText, Text: reply})
	if err != nil {
		// the streamed reply already reached the client, only persistence failed
		logger.Error("error while persisting reply", slog.String(errorMsgLogField, err.Error()))
	}

	done := contract.SupportBotDone{Done: true, MessageID: messageID, HTML: renderMarkdown(reply)}
	jsonData, err := json.Marshal(done)
	if err != nil {
		logger.Error("error while encoding done event", slog.String(errorMsgLogField, err.Error()))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
	logger.Info("support reply persisted", slog.String(messageLogField, messageID))
}

func renderSupportPrompt(ctx context.Context, gw store.Gateway, actorID string) (string, error) {
	actorName := "there"
	if doc, err := gw.Get(ctx, user.Collection, actorID); err == nil {
		actorName = user.FromDocument(doc).Name
	}

	tmpl, err := template.New(supportPromptID).Parse(supportPrompt)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	err = tmpl.Execute(&out, struct{ ActorName string }{ActorName: actorName})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
