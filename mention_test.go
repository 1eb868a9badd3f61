package vchat

import (
	"testing"
)

func TestExpandMentions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single mention",
			input:    `ping <m id="u42">Alice</m> about this`,
			expected: `ping <a href="vchat://users/u42">Alice</a> about this`,
		},
		{
			name:     "multiple mentions",
			input:    `<m id="u1">Bob</m> and <m id="u2">Carol</m>`,
			expected: `<a href="vchat://users/u1">Bob</a> and <a href="vchat://users/u2">Carol</a>`,
		},
		{
			name:     "invalid id degrades to name",
			input:    `hey <m id="../etc">Mallory</m>`,
			expected: `hey Mallory`,
		},
		{
			name:     "no mentions",
			input:    "just a plain message",
			expected: "just a plain message",
		},
		{
			name:     "unclosed tag untouched",
			input:    `<m id="u1">Bob`,
			expected: `<m id="u1">Bob`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			output := expandMentions(test.input)
			if output != test.expected {
				t.Errorf("expandMentions(%q) = %q; want %q", test.input, output, test.expected)
			}
		})
	}
}
