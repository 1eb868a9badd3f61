package vchat

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
	}{
		{
			name:     "basic formatting",
			input:    "you can **bold** text",
			contains: []string{"<strong>bold</strong>"},
		},
		{
			name:        "script stripped",
			input:       "hi <script>alert(1)</script> there",
			contains:    []string{"hi"},
			notContains: []string{"<script", "alert(1)"},
		},
		{
			name:     "list rendered",
			input:    "- one\n- two\n",
			contains: []string{"<ul>", "<li>one</li>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderMarkdown(tt.input)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output %q missing %q", got, want)
				}
			}
			for _, bad := range tt.notContains {
				if strings.Contains(got, bad) {
					t.Errorf("output %q should not contain %q", got, bad)
				}
			}
		})
	}
}
