// ABOUTME: Prompt hydration: framework slots plus chat history become gateway contents
// ABOUTME: Also applies regex scripts and {{char}}/{{user}}/{{lastMessage}} placeholders
package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/models"
)

// DefaultUserName fills {{user}} when the caller gives no name
const DefaultUserName = "User"

const scriptTimeout = 250 * time.Millisecond

// slashForm matches scripts written as /pattern/flags
var slashForm = regexp.MustCompile(`^/(.+)/([a-z]*)$`)

// Vars are the placeholder values for one turn
type Vars struct {
	Char        string
	User        string
	LastMessage string
}

// ReplacePlaceholders substitutes {{char}}, {{user}} and {{lastMessage}}
func ReplacePlaceholders(text string, v Vars) string {
	user := v.User
	if user == "" {
		user = DefaultUserName
	}
	return strings.NewReplacer(
		"{{lastMessage}}", v.LastMessage,
		"{{char}}", v.Char,
		"{{user}}", user,
	).Replace(text)
}

// compileScript parses a script's find pattern. The /pattern/flags form is honored;
// a plain pattern, or one with no flags, replaces every match.
func compileScript(script models.RegexScript) (*regexp2.Regexp, bool, error) {
	pattern, flags := script.FindRegex, ""
	if m := slashForm.FindStringSubmatch(pattern); m != nil {
		pattern, flags = m[1], m[2]
	}

	var opts regexp2.RegexOptions
	if strings.Contains(flags, "i") {
		opts |= regexp2.IgnoreCase
	}
	if strings.Contains(flags, "m") {
		opts |= regexp2.Multiline
	}
	if strings.Contains(flags, "s") {
		opts |= regexp2.Singleline
	}

	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, false, err
	}
	re.MatchTimeout = scriptTimeout
	global := flags == "" || strings.Contains(flags, "g")
	return re, global, nil
}

// ApplyScripts runs every script enabled for placement over text, in order.
// A script that fails to compile or times out is skipped.
func ApplyScripts(text string, scripts []models.RegexScript, placement int, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, script := range scripts {
		if !script.AppliesTo(placement) {
			continue
		}
		re, global, err := compileScript(script)
		if err != nil {
			logger.Warn("skipping invalid regex script", zap.String("script", script.ScriptName), zap.Error(err))
			continue
		}
		count := 1
		if global {
			count = -1
		}
		replaced, err := re.Replace(text, script.ReplaceString, -1, count)
		if err != nil {
			logger.Warn("regex script failed", zap.String("script", script.ScriptName), zap.Error(err))
			continue
		}
		text = replaced
	}
	return text
}

// contentRole maps persisted roles onto the two roles backends accept
func contentRole(role models.Role) models.Role {
	if role == models.RoleModel {
		return models.RoleModel
	}
	return models.RoleUser
}

// Hydrate flattens the framework into gateway contents. The chat-history slot expands
// into history's entries; summaries go out as user turns and empty turns are dropped.
func Hydrate(fw *models.Framework, history *models.ChatHistory, v Vars) []gateway.Content {
	var contents []gateway.Content
	add := func(role models.Role, text string) {
		text = ReplacePlaceholders(text, v)
		if strings.TrimSpace(text) == "" {
			return
		}
		contents = append(contents, gateway.TextContent(role, text))
	}

	expand := func(h *models.ChatHistory) {
		if h == nil {
			return
		}
		for _, e := range h.Parts {
			if e.IsSummary {
				add(models.RoleUser, e.Text())
				continue
			}
			add(contentRole(e.Role), e.Text())
		}
	}

	if fw == nil || fw.ChatSlotIndex() < 0 {
		expand(history)
		return contents
	}

	for _, slot := range fw.Slots {
		if !slot.IsChatHistory {
			add(contentRole(slot.Role), slot.Content)
			continue
		}
		if history != nil {
			expand(history)
		} else {
			expand(slot.History)
		}
	}
	return contents
}
