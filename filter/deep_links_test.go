package filter

import (
	"context"
	"strings"
	"testing"
)

func TestDeepLinkFilter(t *testing.T) {
	tests := []struct {
		name     string
		chunks   []string
		expected string
	}{
		{
			name:     "user reference in one chunk",
			chunks:   []string{"ask {Alice|users/u1} about it", ""},
			expected: "ask [Alice](vchat://users/u1) about it",
		},
		{
			name:     "reference split across chunks",
			chunks:   []string{"open {Support ", "Chat|chats/abc123} now", ""},
			expected: "open [Support Chat](vchat://chats/abc123) now",
		},
		{
			name:     "invalid namespace keeps label",
			chunks:   []string{"{Settings|settings/profile}", ""},
			expected: "Settings",
		},
		{
			name:     "malformed reference dropped",
			chunks:   []string{"{just some braces}", ""},
			expected: "",
		},
		{
			name:     "plain text untouched",
			chunks:   []string{"hello ", "world", ""},
			expected: "hello world",
		},
		{
			name:     "unterminated brace flushed at end of stream",
			chunks:   []string{"dangling {oops", ""},
			expected: "dangling {oops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := &DeepLinkFilter{}
			var out strings.Builder
			for _, chunk := range tt.chunks {
				out.WriteString(df.ProcessChunk(context.Background(), chunk))
			}
			if out.String() != tt.expected {
				t.Errorf("got %q; want %q", out.String(), tt.expected)
			}
		})
	}
}

func TestExternalLinkFilter(t *testing.T) {
	tests := []struct {
		name     string
		chunks   []string
		expected string
	}{
		{
			name:     "external link removed",
			chunks:   []string{"see [docs](https://example.com) here", ""},
			expected: "see  here",
		},
		{
			name:     "link split across chunks",
			chunks:   []string{"go [site](http", "s://spam.example)", " done", ""},
			expected: "go  done",
		},
		{
			name:     "deep link preserved",
			chunks:   []string{"open [Alice](vchat://users/u1)", ""},
			expected: "open [Alice](vchat://users/u1)",
		},
		{
			name:     "brackets without link flushed",
			chunks:   []string{"array[3] indexing", ""},
			expected: "array[3] indexing",
		},
		{
			name:     "plain text untouched",
			chunks:   []string{"nothing to filter", ""},
			expected: "nothing to filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ef := &ExternalLinkFilter{}
			var out strings.Builder
			for _, chunk := range tt.chunks {
				out.WriteString(ef.ProcessChunk(context.Background(), chunk))
			}
			if out.String() != tt.expected {
				t.Errorf("got %q; want %q", out.String(), tt.expected)
			}
		})
	}
}
