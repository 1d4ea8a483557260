// ABOUTME: Tests for history summarization thresholds and the replaced range
// ABOUTME: Uses a scripted text generator in place of a model backend
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/models"
)

type scriptedText struct {
	reply   string
	err     error
	prompts []string
}

func (s *scriptedText) Generate(_ context.Context, contents []gateway.Content) (string, error) {
	for _, c := range contents {
		s.prompts = append(s.prompts, c.Text())
	}
	return s.reply, s.err
}

func turns(n int) *models.ChatHistory {
	h := models.NewChatHistory("")
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 0 {
			role = models.RoleModel
		}
		h.Parts = append(h.Parts, models.NewTextEntry(role, fmt.Sprintf("message %d", i)))
	}
	return h
}

func TestSummarizer_BelowThreshold(t *testing.T) {
	gen := &scriptedText{reply: "summary"}
	s := NewSummarizer(gen, 10000, 0, nil)

	h := turns(12)
	got, err := s.CheckAndSummarize(context.Background(), "c", "c", h)
	require.NoError(t, err)
	assert.Same(t, h, got)
	assert.Empty(t, gen.prompts)
}

func TestSummarizer_RangeTooSmall(t *testing.T) {
	gen := &scriptedText{reply: "summary"}
	s := NewSummarizer(gen, 1, 0, nil)

	h := turns(9)
	got, err := s.CheckAndSummarize(context.Background(), "c", "c", h)
	require.NoError(t, err)
	assert.Same(t, h, got)
	assert.Empty(t, gen.prompts)
}

func TestSummarizer_ReplacesMiddle(t *testing.T) {
	gen := &scriptedText{reply: "  they talked  "}
	s := NewSummarizer(gen, 1, 321, nil)

	h := turns(10)
	note := models.DynamicEntry{Text: "note", IsAuthorNote: true, Constant: true, Position: 2}.Entry()
	h.Parts = append(h.Parts, note)

	got, err := s.CheckAndSummarize(context.Background(), "c", "c", h)
	require.NoError(t, err)

	require.Len(t, got.Parts, 7)
	for i, want := range []string{"message 0", "message 1", "message 2"} {
		assert.Equal(t, want, got.Parts[i].Text())
	}
	summary := got.Parts[3]
	assert.True(t, summary.IsSummary)
	assert.Equal(t, models.RoleUser, summary.Role)
	assert.Equal(t, summaryHeader+"\nthey talked\n"+summaryFooter, summary.Text())
	for i, want := range []string{"message 7", "message 8", "message 9"} {
		assert.Equal(t, want, got.Parts[4+i].Text())
	}

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "approximately 321 characters")
	assert.Contains(t, gen.prompts[0], "User: message 3\n\nCharacter: message 4")
	assert.NotContains(t, gen.prompts[0], "message 7")

	assert.Len(t, h.Parts, 11, "input must not be modified")
}

func TestSummarizer_GeneratorError(t *testing.T) {
	gen := &scriptedText{err: errors.New("quota")}
	s := NewSummarizer(gen, 1, 0, nil)

	h := turns(12)
	got, err := s.CheckAndSummarize(context.Background(), "c", "c", h)
	require.Error(t, err)
	assert.Same(t, h, got)
}

func TestTextLength(t *testing.T) {
	entries := []models.ChatMessageEntry{
		models.NewTextEntry(models.RoleUser, "héllo"),
		SummaryEntry(strings.Repeat("x", 100)),
		models.DynamicEntry{Text: "ignored"}.Entry(),
		models.NewTextEntry(models.RoleModel, "abc"),
	}
	assert.Equal(t, 8, TextLength(entries))
}

func TestNewSummarizer_Defaults(t *testing.T) {
	s := NewSummarizer(&scriptedText{}, 0, -1, nil)
	assert.Equal(t, DefaultSummaryThreshold, s.threshold)
	assert.Equal(t, DefaultSummaryLength, s.length)
}
