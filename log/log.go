// Package log carries a structured slog logger through request contexts
// and renders records in the Google Cloud structured logging format.
package log

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const traceContextHeader = "X-Cloud-Trace-Context"

type ctxKey struct{}

type traceKey struct{}

// CloudLoggingHandler is a slog.Handler writing one JSON object per
// record, in the shape Cloud Logging ingests natively.
type CloudLoggingHandler struct {
	out   io.Writer
	attrs []slog.Attr
}

func NewCloudLoggingHandler() *CloudLoggingHandler {
	return &CloudLoggingHandler{out: os.Stdout}
}

func (h *CloudLoggingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := map[string]any{
		"severity": r.Level.String(),
		"time":     time.Now().Format(time.RFC3339),
		"message":  r.Message,
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		entry["logging.googleapis.com/trace"] = traceID
	}
	for _, attr := range h.attrs {
		entry[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(attr slog.Attr) bool {
		entry[attr.Key] = attr.Value.Any()
		return true
	})

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := h.out.Write(jsonData); err != nil {
		return err
	}
	_, err = h.out.Write([]byte("\n"))
	return err
}

func (h *CloudLoggingHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *CloudLoggingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &CloudLoggingHandler{out: h.out, attrs: newAttrs}
}

// WithGroup returns the handler unchanged; grouping is not used here.
func (h *CloudLoggingHandler) WithGroup(_ string) slog.Handler {
	return h
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(NewCloudLoggingHandler())
}

// WithTraceID attaches the Cloud Trace id propagated by the request.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// WithRequestTrace extracts the trace id from the request's
// X-Cloud-Trace-Context header, so all records of one invocation
// correlate in the log explorer. The header carries
// "TRACE_ID/SPAN_ID;o=OPTIONS"; only the trace id part is kept.
func WithRequestTrace(ctx context.Context, r *http.Request) context.Context {
	header := r.Header.Get(traceContextHeader)
	if header == "" {
		return ctx
	}
	traceID, _, _ := strings.Cut(header, "/")
	if traceID == "" {
		return ctx
	}
	if projectID := os.Getenv("GOOGLE_CLOUD_PROJECT"); projectID != "" {
		traceID = "projects/" + projectID + "/traces/" + traceID
	}
	return WithTraceID(ctx, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(traceKey{}).(string)
	return traceID
}
