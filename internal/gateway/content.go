// ABOUTME: Provider-neutral request contents for the gateway
// ABOUTME: Each backend client converts these into its own wire format
package gateway

import (
	"strings"

	"github.com/harper/roleplay-core/internal/models"
)

// Part is one segment of a content turn. Inline images carry base64 Data;
// ImageURL parts are fetched and inlined before a backend sees them.
type Part struct {
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// IsImage reports whether the part carries image data or a link to one
func (p Part) IsImage() bool {
	return p.Data != "" || p.ImageURL != ""
}

// Content is one turn sent to a backend
type Content struct {
	Role  models.Role `json:"role"`
	Parts []Part      `json:"parts"`
}

// TextContent builds a single-part text turn
func TextContent(role models.Role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// Text joins the text parts of the turn
func (c Content) Text() string {
	var texts []string
	for _, p := range c.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// insertBefore returns a copy of contents with turn placed at index i
func insertBefore(contents []Content, i int, turn Content) []Content {
	if i < 0 {
		i = 0
	}
	if i > len(contents) {
		i = len(contents)
	}
	out := make([]Content, 0, len(contents)+1)
	out = append(out, contents[:i]...)
	out = append(out, turn)
	return append(out, contents[i:]...)
}

// lastUserIndex returns the index of the final user turn, or len(contents)
func lastUserIndex(contents []Content) int {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == models.RoleUser {
			return i
		}
	}
	return len(contents)
}

// lastIndex returns the index of the final turn, or 0 for no turns
func lastIndex(contents []Content) int {
	if len(contents) == 0 {
		return 0
	}
	return len(contents) - 1
}
