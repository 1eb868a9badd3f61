// Package filter cleans streamed support-bot output before it reaches a
// conversation. Filters work chunk-wise: a chunk that might be the start
// of a construct is buffered until the construct either completes or is
// ruled out, so no partial markup leaks to the client.
package filter

import (
	"context"
	"regexp"
	"strings"
)

var markdownLinkRegex = regexp.MustCompile(`\(?\[[^\]]*\]\((?:https?|www)[^)]*\)\)?`)

// ExternalLinkFilter removes markdown links pointing outside the app.
// vchat:// deep links produced by DeepLinkFilter are left alone, which is
// why this filter runs before it in the chain.
type ExternalLinkFilter struct {
	buffer    string
	buffering bool
}

func (ef *ExternalLinkFilter) ProcessChunk(_ context.Context, chunk string) string {
	if chunk == "" { // end of stream, flush
		ef.buffering = false
		ret := ef.buffer
		ef.buffer = ""
		return markdownLinkRegex.ReplaceAllString(ret, "")
	}
	if markdownLinkRegex.MatchString(chunk) {
		ef.buffering = false
		ret := ef.buffer + chunk
		ef.buffer = ""
		return markdownLinkRegex.ReplaceAllString(ret, "")
	}
	if strings.Contains(chunk, "[") {
		if ef.buffering { // a second [ flushes the stale buffer
			ret := ef.buffer
			ef.buffer = chunk
			return ret
		}
		ef.buffering = true
		ef.buffer += chunk
		return ""
	}
	if strings.Contains(chunk, "]") && !strings.Contains(chunk, "](") { // not a link
		ef.buffering = false
		ret := ef.buffer
		ef.buffer = ""
		return ret + chunk
	}
	if strings.Contains(chunk, ")") && ef.buffering { // link may be complete now
		ret := ef.buffer + chunk
		ret = markdownLinkRegex.ReplaceAllString(ret, "")
		ef.buffering = false
		ef.buffer = ""
		return ret
	}
	if ef.buffering {
		ef.buffer += chunk
		return ""
	}
	return chunk
}
