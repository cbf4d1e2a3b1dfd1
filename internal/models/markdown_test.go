package models_test

import (
	"strings"
	"testing"

	"github.com/wirechat/wirechat/internal/models"
)

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain text",
			content: "Hello",
			want:    "<p>Hello</p>",
		},
		{
			name:    "emphasis",
			content: "Hi **there**",
			want:    "<strong>there</strong>",
		},
		{
			name:    "code block",
			content: "```\nfmt.Println()\n```",
			want:    "fmt.Println()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.RenderMarkdown(tt.content)
			if err != nil {
				t.Fatalf("RenderMarkdown() error = %v", err)
			}
			if !strings.Contains(string(got), tt.want) {
				t.Errorf("RenderMarkdown(%q) = %q, want it to contain %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	got, err := models.RenderMarkdown("")
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if strings.TrimSpace(string(got)) != "" {
		t.Errorf("RenderMarkdown(\"\") = %q, want empty output", got)
	}
}
