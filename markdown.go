package vchat

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

var htmlPolicy = bluemonday.UGCPolicy()

// renderMarkdown renders a support reply to HTML safe to embed in the
// client, stripping any markup the model should not have produced.
func renderMarkdown(text string) string {
	unsafe := blackfriday.Run([]byte(text))
	return string(htmlPolicy.SanitizeBytes(unsafe))
}
