// ABOUTME: Summarizer compacts long chat histories into a single summary entry
// ABOUTME: Replaces the middle of the history once its clean text passes a threshold
package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/merge"
	"github.com/harper/roleplay-core/internal/models"
)

// Summarizer defaults and range bounds
const (
	DefaultSummaryThreshold = 6000
	DefaultSummaryLength    = 1000

	summaryKeepHead = 3
	summaryKeepTail = 3
	summaryMinRange = 4
)

const (
	summaryHeader = "--- CONVERSATION SUMMARY (AI-GENERATED, NOT VISIBLE TO USER) ---"
	summaryFooter = "--- END OF SUMMARY ---"
)

const summaryPrompt = `Please create a concise summary of the following conversation. Your summary should:
1. Extract the key information, events, topics discussed, and important details
2. Maintain continuity of the narrative without using vague references
3. Preserve character intentions, emotions, and any important commitments or plans mentioned
4. Be no longer than approximately %d characters
5. Focus on facts and content, rather than meta-descriptions of the conversation
6. Make the summary helpful for continuing the conversation

Here is the conversation to summarize:

%s`

// TextGenerator is the plain generate call the summarizer needs
type TextGenerator interface {
	Generate(ctx context.Context, contents []gateway.Content) (string, error)
}

// Summarizer condenses older turns through the model
type Summarizer struct {
	gen       TextGenerator
	threshold int
	length    int
	logger    *zap.Logger
}

// NewSummarizer creates a Summarizer; non-positive sizes take the defaults
func NewSummarizer(gen TextGenerator, threshold, length int, logger *zap.Logger) *Summarizer {
	if threshold <= 0 {
		threshold = DefaultSummaryThreshold
	}
	if length <= 0 {
		length = DefaultSummaryLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{gen: gen, threshold: threshold, length: length, logger: logger}
}

// CheckAndSummarize returns history with entries [3, len-3) of its clean sequence replaced
// by one summary entry, once the clean text reaches the threshold. Below the threshold, or
// when fewer than four entries fall in range, the history comes back unchanged.
// The returned history carries no dynamic entries when a summary was made.
func (s *Summarizer) CheckAndSummarize(ctx context.Context, conversationID, characterID string, history *models.ChatHistory) (*models.ChatHistory, error) {
	if history == nil {
		return nil, nil
	}
	clean := merge.Strip(history.Parts)
	if TextLength(clean) < s.threshold {
		return history, nil
	}

	start, end := summaryKeepHead, len(clean)-summaryKeepTail
	if end-start < summaryMinRange {
		s.logger.Debug("history too short to summarize", zap.String("conversation", conversationID), zap.Int("entries", len(clean)))
		return history, nil
	}

	prompt := fmt.Sprintf(summaryPrompt, s.length, formatTranscript(clean[start:end]))
	summary, err := s.gen.Generate(ctx, []gateway.Content{gateway.TextContent(models.RoleUser, prompt)})
	if err != nil {
		return history, fmt.Errorf("failed to summarize %s: %w", conversationID, err)
	}

	entry := SummaryEntry(summary)
	parts := make([]models.ChatMessageEntry, 0, start+1+len(clean)-end)
	parts = append(parts, clean[:start]...)
	parts = append(parts, entry)
	parts = append(parts, clean[end:]...)

	out := *history
	out.Parts = parts
	s.logger.Info("summarized chat history",
		zap.String("conversation", conversationID),
		zap.String("character", characterID),
		zap.Int("replaced", end-start))
	return &out, nil
}

// SummaryEntry wraps summary text in the summary markers
func SummaryEntry(summary string) models.ChatMessageEntry {
	return models.ChatMessageEntry{
		Role:      models.RoleUser,
		Parts:     []models.Part{{Text: summaryHeader + "\n" + strings.TrimSpace(summary) + "\n" + summaryFooter}},
		IsSummary: true,
		Timestamp: time.Now().UnixMilli(),
	}
}

// TextLength counts the runes of every non-summary entry
func TextLength(entries []models.ChatMessageEntry) int {
	n := 0
	for _, e := range entries {
		if !e.IsSummary && !e.IsDEntry {
			n += utf8.RuneCountInString(e.Text())
		}
	}
	return n
}

func formatTranscript(entries []models.ChatMessageEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		speaker := "Character"
		if e.Role == models.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+e.Text())
	}
	return strings.Join(lines, "\n\n")
}
