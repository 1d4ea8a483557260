// ABOUTME: Tool-augmented generation with memory recall, fact tables and web search
// ABOUTME: Any augmentation failure degrades to plain generation
package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harper/roleplay-core/internal/models"
)

const (
	// searchMessageLimit is the rune count at or above which a message is never searched
	searchMessageLimit = 300
	// searchResultCount is how many results the local tool returns
	searchResultCount = 5

	// SearchUnavailable is the disclaimer used when no search tier answers
	SearchUnavailable = "(Note: web search is unavailable.)"

	memoryHeader = "[Relevant memories of this character]"
	tableHeader  = "[Character long-term memory tables]"

	keywordPrompt = "Extract the search keywords from the user's message. Return only the keywords, separated by spaces."

	tableGuidelines = `<response_guidelines>
- Use the memory tables above as established facts about the character.
- Stay consistent with the tables and never invent entries they do not contain.
- Work the information in naturally without mentioning the tables.
</response_guidelines>`

	toolGuidelines = `<response_guidelines>
- Use the remembered content and any tables as established facts about the character.
- When web search results are present, rely on them for factual or current information.
- Stay in character and work the information in naturally without naming its source.
</response_guidelines>`
)

var searchKeywords = []string{
	"搜索", "查询", "查找", "寻找", "检索", "了解", "信息", "最新", "新闻", "什么是", "谁是", "哪里", "如何", "怎么",
	"search", "find", "lookup", "query", "information about", "latest", "news", "what is", "who is", "where", "how to",
}

var interrogativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`是什么|有哪些|如何|怎么|怎样|什么时候|为什么|哪些|多少`),
	regexp.MustCompile(`(?i)\b(what is|how to|when is|why is|where is)\b`),
}

// WebSearcher is the managed search tier
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// LocalSearcher is the local tool tier; it must be connected before searching
type LocalSearcher interface {
	Connect(ctx context.Context) error
	Search(ctx context.Context, query string, count int) (string, error)
	Close() error
}

// ToolContext carries what augmentation needs about the current turn
type ToolContext struct {
	Scope
	UserMessage string
	Memories    []models.MemoryResult
}

// NeedsSearch reports whether a message looks like it wants fresh information
func NeedsSearch(message string) bool {
	if utf8.RuneCountInString(message) >= searchMessageLimit {
		return false
	}
	if strings.ContainsAny(message, "?？") {
		return true
	}
	lowered := strings.ToLower(message)
	for _, kw := range searchKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	for _, re := range interrogativePatterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// RenderTables renders fact tables as simple pipe tables
func RenderTables(tables []models.FactTable) string {
	var b strings.Builder
	for _, t := range tables {
		if len(t.Headers) == 0 {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(tableHeader + "\n")
		}
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		b.WriteString(pipeRow(t.Headers) + "\n")
		sep := make([]string, len(t.Headers))
		for i := range sep {
			sep[i] = "---"
		}
		b.WriteString(pipeRow(sep) + "\n")
		for _, row := range t.Rows {
			b.WriteString(pipeRow(row) + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func pipeRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

// RenderMemories renders recall results as a numbered <mem> block
func RenderMemories(memories []models.MemoryResult) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<mem>\n" + memoryHeader + "\n")
	for i, m := range memories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Memory)
	}
	b.WriteString("</mem>")
	return b.String()
}

// GenerateWithTools augments contents with memories, tables and search results
// when the turn warrants it, then generates
func (g *Gateway) GenerateWithTools(ctx context.Context, contents []Content, tc ToolContext) (string, error) {
	hasMemory := len(tc.Memories) > 0
	wantSearch := g.searchAvailable() && NeedsSearch(tc.UserMessage)

	if !hasMemory && !wantSearch {
		return g.GenerateFor(ctx, contents, tc.Scope)
	}

	turn, err := g.augmentation(ctx, tc, wantSearch)
	if err != nil {
		g.logger.Warn("tool augmentation failed, using plain generation", zap.Error(err))
		return g.GenerateFor(ctx, contents, tc.Scope)
	}
	return g.run(ctx, insertBefore(contents, lastIndex(contents), turn))
}

// augmentation gathers tables and search results concurrently and builds the synthetic turn
func (g *Gateway) augmentation(ctx context.Context, tc ToolContext, wantSearch bool) (Content, error) {
	var tableText, searchText string

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		tableText = g.tableText(egCtx, tc.Scope)
		return nil
	})
	if wantSearch {
		eg.Go(func() error {
			searchText = g.webSearch(egCtx, tc.UserMessage)
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return Content{}, err
	}

	var sections []string
	if tableText != "" {
		sections = append(sections, tableText)
	}
	if mem := RenderMemories(tc.Memories); mem != "" {
		sections = append(sections, mem)
	}
	if searchText != "" {
		sections = append(sections, "<websearch>\n"+searchText+"\n</websearch>")
	}
	sections = append(sections, toolGuidelines)

	return TextContent(models.RoleSystem, strings.Join(sections, "\n\n")), nil
}

// tableText fetches and renders the character's tables; failures are logged
func (g *Gateway) tableText(ctx context.Context, scope Scope) string {
	if g.tables == nil || scope.CharacterID == "" {
		return ""
	}
	tables, err := g.tables.GetCharacterTables(ctx, scope.CharacterID, scope.ConversationID)
	if err != nil {
		g.logger.Warn("failed to load fact tables", zap.String("character", scope.CharacterID), zap.Error(err))
		return ""
	}
	return RenderTables(tables)
}

func (g *Gateway) searchAvailable() bool {
	return g.relaySearch != nil || g.local != nil
}

// webSearch tries the managed tier, then the local tool, then gives the disclaimer
func (g *Gateway) webSearch(ctx context.Context, query string) string {
	if g.relaySearch != nil {
		text, err := g.relaySearch.Search(ctx, query)
		if err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		g.logger.Warn("relay search failed", zap.Error(err))
	}

	if g.local == nil {
		return SearchUnavailable
	}
	if err := g.connectLocal(ctx); err != nil {
		g.logger.Warn("local search connect failed", zap.Error(err))
		return SearchUnavailable
	}

	text, err := g.local.Search(ctx, g.extractKeywords(ctx, query), searchResultCount)
	if err != nil || strings.TrimSpace(text) == "" {
		g.logger.Warn("local search failed", zap.Error(err))
		return SearchUnavailable
	}
	return text
}

func (g *Gateway) connectLocal(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.localConnected {
		return nil
	}
	if err := g.local.Connect(ctx); err != nil {
		return err
	}
	g.localConnected = true
	return nil
}

// extractKeywords asks the model for search keywords, falling back to the raw query
func (g *Gateway) extractKeywords(ctx context.Context, query string) string {
	keywords, err := g.run(ctx, []Content{
		TextContent(models.RoleSystem, keywordPrompt),
		TextContent(models.RoleUser, query),
	})
	if err != nil {
		g.logger.Debug("keyword extraction failed, searching raw query", zap.Error(err))
		return query
	}
	if keywords = strings.TrimSpace(keywords); keywords == "" {
		return query
	}
	return keywords
}
