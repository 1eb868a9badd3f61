package filter

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/klipach/vchat/log"
)

var (
	deepLinkRegex = regexp.MustCompile(`\{([^}]+)\}`)
	targetRegex   = regexp.MustCompile(`^(users|chats)/[A-Za-z0-9_-]+$`)
)

// DeepLinkFilter converts `{Label|users/<id>}` references in model
// output into vchat:// deep links the client can open. Targets outside
// the users/ and chats/ namespaces are dropped, keeping the label.
type DeepLinkFilter struct {
	buffer    string
	buffering bool
}

func (df *DeepLinkFilter) ProcessChunk(ctx context.Context, chunk string) string {
	if chunk == "" { // end of stream, flush
		df.buffering = false
		ret := df.buffer
		df.buffer = ""
		return ret
	}
	if deepLinkRegex.MatchString(chunk) {
		df.buffering = false
		ret := df.buffer + chunk
		df.buffer = ""
		return convertDeepLinks(ctx, ret)
	}
	if strings.Contains(chunk, "{") {
		if df.buffering { // a second { flushes the stale buffer
			ret := df.buffer
			df.buffer = chunk
			return ret
		}
		df.buffering = true
		df.buffer += chunk
		return ""
	}
	if strings.Contains(chunk, "}") && df.buffering { // reference may be complete now
		ret := df.buffer + chunk
		ret = convertDeepLinks(ctx, ret)
		df.buffering = false
		df.buffer = ""
		return ret
	}
	if df.buffering {
		df.buffer += chunk
		return ""
	}
	return chunk
}

func convertDeepLinks(ctx context.Context, text string) string {
	return deepLinkRegex.ReplaceAllStringFunc(text, func(match string) string {
		logger := log.LoggerFromContext(ctx)
		content := match[1 : len(match)-1]

		parts := strings.Split(content, "|")
		if len(parts) != 2 {
			logger.Info("invalid deep link reference", slog.String("match", match))
			return ""
		}

		label, target := parts[0], parts[1]
		if !targetRegex.MatchString(target) {
			logger.Info("deep link target rejected", slog.String("target", target))
			return label
		}
		return "[" + label + "](vchat://" + target + ")"
	})
}
