// ABOUTME: Conversation orchestrator running one chat turn end to end
// ABOUTME: Loads entities, extracts and merges dynamic entries, generates and persists history
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/dentry"
	"github.com/harper/roleplay-core/internal/framework"
	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/merge"
	"github.com/harper/roleplay-core/internal/models"
	"github.com/harper/roleplay-core/internal/storage"
)

var (
	// ErrNoResponse is returned when generation produced nothing; persisted state is untouched
	ErrNoResponse = errors.New("no response generated")
	// ErrDataIntegrity is returned when a conversation lacks its role card or history
	ErrDataIntegrity = errors.New("conversation data is missing")
	// ErrInvalidIndex is returned when a message index does not resolve
	ErrInvalidIndex = errors.New("invalid message index")
	// ErrEmptyMessage is returned when a turn has no text
	ErrEmptyMessage = errors.New("message cannot be empty")
)

// DefaultMemoryLimit caps recalled memories per turn
const DefaultMemoryLimit = 5

// State is the advisory per-conversation activity
type State int

const (
	Idle State = iota
	AwaitingResponse
	Regenerating
	Resetting
)

func (s State) String() string {
	switch s {
	case AwaitingResponse:
		return "awaiting_response"
	case Regenerating:
		return "regenerating"
	case Resetting:
		return "resetting"
	default:
		return "idle"
	}
}

// Generator is the gateway surface the orchestrator drives
type Generator interface {
	GenerateFor(ctx context.Context, contents []gateway.Content, scope gateway.Scope) (string, error)
	GenerateWithTools(ctx context.Context, contents []gateway.Content, tc gateway.ToolContext) (string, error)
	GenerateMultimodal(ctx context.Context, contents []gateway.Content) (string, error)
	Shutdown() error
}

// MemoryRecaller finds memories relevant to a message
type MemoryRecaller interface {
	SearchMemories(ctx context.Context, query, characterID, conversationID string, limit int) ([]models.MemoryResult, error)
}

// MemoryWriter stores memories written back after a turn
type MemoryWriter interface {
	Save(m *models.Memory) error
}

// HistorySummarizer compacts a long history
type HistorySummarizer interface {
	CheckAndSummarize(ctx context.Context, conversationID, characterID string, history *models.ChatHistory) (*models.ChatHistory, error)
}

// ConversationPurger removes side data when a conversation is deleted
type ConversationPurger interface {
	DeleteByConversation(conversationID string) (int64, error)
}

// ChatOptions tune a single turn
type ChatOptions struct {
	UserName string
	// Tools enables memory, table and web search augmentation
	Tools bool
	// Images are attached to the user's turn and force multimodal generation
	Images []gateway.Part
}

// Orchestrator coordinates the extractor, merge engine, gateway and store
type Orchestrator struct {
	convs      *storage.Conversations
	gen        Generator
	extractor  *dentry.Extractor
	recaller   MemoryRecaller
	memLimit   int
	writer     MemoryWriter
	summarizer HistorySummarizer
	purgers    []ConversationPurger
	logger     *zap.Logger

	mu     sync.Mutex
	states map[string]State
	closed bool
	wg     sync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMemoryRecall enables best-effort recall before each turn
func WithMemoryRecall(r MemoryRecaller, limit int) Option {
	return func(o *Orchestrator) {
		o.recaller = r
		if limit > 0 {
			o.memLimit = limit
		}
	}
}

// WithMemoryWriter enables async memory write-back after each successful turn
func WithMemoryWriter(w MemoryWriter) Option {
	return func(o *Orchestrator) { o.writer = w }
}

// WithSummarizer enables history compaction before generation
func WithSummarizer(s HistorySummarizer) Option {
	return func(o *Orchestrator) { o.summarizer = s }
}

// WithPurgers registers stores cleared by DeleteCharacterData
func WithPurgers(p ...ConversationPurger) Option {
	return func(o *Orchestrator) { o.purgers = append(o.purgers, p...) }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator over a conversation repository and a generator
func New(convs *storage.Conversations, gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		convs:    convs,
		gen:      gen,
		memLimit: DefaultMemoryLimit,
		logger:   zap.NewNop(),
		states:   make(map[string]State),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.extractor = dentry.NewExtractor(o.logger)
	return o
}

// Conversations exposes the repository for surfaces that edit entities directly
func (o *Orchestrator) Conversations() *storage.Conversations {
	return o.convs
}

// conversation is everything loaded for one turn
type conversation struct {
	id       string
	card     *models.RoleCard
	world    *models.WorldBook
	preset   *models.Preset
	note     *models.AuthorNote
	history  *models.ChatHistory
	fw       *models.Framework
	personas dentry.PersonaRecords
	scripts  []models.RegexScript
}

func (c *conversation) charName() string {
	return c.card.WithDefaults().Name
}

// load reads every entity of a conversation. The framework is rebuilt only when missing.
func (o *Orchestrator) load(id string, requireHistory bool) (*conversation, error) {
	c := &conversation{id: id}
	var err error

	if c.card, err = o.convs.LoadRoleCard(id); err != nil {
		return nil, err
	}
	if c.card == nil {
		return nil, fmt.Errorf("%w: %s has no role card", ErrDataIntegrity, id)
	}
	if c.history, err = o.convs.LoadHistory(id); err != nil {
		return nil, err
	}
	if c.history == nil && requireHistory {
		return nil, fmt.Errorf("%w: %s has no chat history", ErrDataIntegrity, id)
	}
	if c.world, err = o.convs.LoadWorldBook(id); err != nil {
		return nil, err
	}
	if c.preset, err = o.convs.LoadPreset(id); err != nil {
		return nil, err
	}
	global, err := o.convs.LoadGlobalPreset()
	if err != nil {
		return nil, err
	}
	c.preset = framework.WithOverride(c.preset, global)
	if c.note, err = o.convs.LoadAuthorNote(id); err != nil {
		return nil, err
	}
	if c.personas.Global, err = o.convs.GlobalPersona(); err != nil {
		return nil, err
	}
	if c.personas.Character, err = o.convs.CharacterPersona(id); err != nil {
		return nil, err
	}
	globalScripts, err := o.convs.LoadGlobalRegex()
	if err != nil {
		return nil, err
	}
	c.scripts = append(append([]models.RegexScript(nil), c.card.Scripts()...), globalScripts...)

	if c.fw, err = o.convs.LoadFramework(id); err != nil {
		return nil, err
	}
	if c.fw == nil {
		c.fw, _ = framework.Build(c.preset, c.card, c.world)
		if err := o.convs.SaveFramework(id, c.fw); err != nil {
			o.logger.Warn("failed to cache rebuilt framework", zap.String("conversation", id), zap.Error(err))
		}
	}
	return c, nil
}

func (o *Orchestrator) extract(c *conversation) []models.DynamicEntry {
	return o.extractor.Extract(c.preset, c.world, c.note, c.personas)
}

// ContinueChat runs one turn for text and returns the model's reply
func (o *Orchestrator) ContinueChat(ctx context.Context, id, text string, opts ChatOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	o.setState(id, AwaitingResponse)
	defer o.setState(id, Idle)

	c, err := o.load(id, true)
	if err != nil {
		o.logger.Error("failed to load conversation", zap.String("conversation", id), zap.Error(err))
		return "", err
	}

	userText := ApplyScripts(text, c.scripts, models.PlacementUserInput, o.logger)
	return o.respond(ctx, c, userText, o.extract(c), opts)
}

// respond generates a reply to userText against c.history and persists the merged result.
// Nothing is written unless a reply exists.
func (o *Orchestrator) respond(ctx context.Context, c *conversation, userText string, entries []models.DynamicEntry, opts ChatOptions) (string, error) {
	working := merge.UpdateChatHistory(c.history, userText, "", entries)
	working = o.summarize(ctx, c.id, working, userText, entries)
	memories := o.recall(ctx, c.id, userText)

	vars := Vars{Char: c.charName(), User: opts.UserName, LastMessage: userText}
	contents := Hydrate(c.fw, working, vars)
	if len(opts.Images) > 0 {
		contents = attachImages(contents, ReplacePlaceholders(userText, vars), opts.Images)
	}

	response, err := o.generate(ctx, c.id, contents, userText, memories, opts)
	if err != nil {
		o.logger.Warn("generation failed", zap.String("conversation", c.id), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	response = ApplyScripts(response, c.scripts, models.PlacementAIOutput, o.logger)
	if strings.TrimSpace(response) == "" {
		return "", ErrNoResponse
	}

	updated := merge.UpdateChatHistory(working, userText, response, entries)
	if err := o.persist(c, updated); err != nil {
		return "", err
	}

	o.writeBack(c, userText, response, opts.UserName)
	return response, nil
}

func (o *Orchestrator) generate(ctx context.Context, id string, contents []gateway.Content, userText string, memories []models.MemoryResult, opts ChatOptions) (string, error) {
	scope := gateway.Scope{CharacterID: id, ConversationID: id}

	if len(opts.Images) > 0 {
		return o.gen.GenerateMultimodal(ctx, contents)
	}
	if opts.Tools || len(memories) > 0 {
		return o.gen.GenerateWithTools(ctx, contents, gateway.ToolContext{
			Scope:       scope,
			UserMessage: userText,
			Memories:    memories,
		})
	}
	return o.gen.GenerateFor(ctx, contents, scope)
}

// attachImages adds images to the newest user turn carrying text, or to a new user turn
func attachImages(contents []gateway.Content, text string, images []gateway.Part) []gateway.Content {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == models.RoleUser && contents[i].Text() == text {
			parts := append([]gateway.Part(nil), contents[i].Parts...)
			contents[i].Parts = append(parts, images...)
			return contents
		}
	}
	return append(contents, gateway.Content{Role: models.RoleUser, Parts: images})
}

func (o *Orchestrator) summarize(ctx context.Context, id string, working *models.ChatHistory, userText string, entries []models.DynamicEntry) *models.ChatHistory {
	if o.summarizer == nil {
		return working
	}
	summarized, err := o.summarizer.CheckAndSummarize(ctx, id, id, working)
	if err != nil {
		o.logger.Warn("summarization failed", zap.String("conversation", id), zap.Error(err))
		return working
	}
	if summarized == nil || summarized == working {
		return working
	}
	return merge.Insert(summarized, merge.UserAnchor(userText), entries)
}

func (o *Orchestrator) recall(ctx context.Context, id, userText string) []models.MemoryResult {
	if o.recaller == nil {
		return nil
	}
	memories, err := o.recaller.SearchMemories(ctx, userText, id, id, o.memLimit)
	if err != nil {
		o.logger.Debug("memory recall failed", zap.String("conversation", id), zap.Error(err))
		return nil
	}
	return memories
}

// writeBack stores the finished turn as a memory in the background
func (o *Orchestrator) writeBack(c *conversation, userText, response, userName string) {
	if o.writer == nil {
		return
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	if userName == "" {
		userName = DefaultUserName
	}
	text := fmt.Sprintf("%s: %s\n%s: %s", userName, userText, c.charName(), response)
	id := c.id

	go func() {
		defer o.wg.Done()
		m, err := models.NewMemory(id, id, text)
		if err == nil {
			err = o.writer.Save(m)
		}
		if err != nil {
			o.logger.Warn("memory write-back failed", zap.String("conversation", id), zap.Error(err))
		}
	}()
}

// persist saves history and refreshes the framework's embedded copy.
// The framework is a derived cache, so its failures are only logged.
func (o *Orchestrator) persist(c *conversation, history *models.ChatHistory) error {
	if err := o.convs.SaveHistory(c.id, history); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	c.history = history

	if c.fw == nil {
		return nil
	}
	if err := c.fw.PatchHistory(history); err != nil {
		o.logger.Warn("failed to patch framework", zap.String("conversation", c.id), zap.Error(err))
		return nil
	}
	if err := o.convs.SaveFramework(c.id, c.fw); err != nil {
		o.logger.Warn("failed to save framework", zap.String("conversation", c.id), zap.Error(err))
	}
	return nil
}

// RegenerateFromMessage re-answers the index-th AI message, counting from 1 and skipping the
// first message and summaries. Index 0 returns the stored first message unchanged. History is
// truncated after the preceding user message and saved before generating.
func (o *Orchestrator) RegenerateFromMessage(ctx context.Context, id string, index int, opts ChatOptions) (string, error) {
	o.setState(id, Regenerating)
	defer o.setState(id, Idle)

	c, err := o.load(id, true)
	if err != nil {
		o.logger.Error("failed to load conversation", zap.String("conversation", id), zap.Error(err))
		return "", err
	}

	if index == 0 {
		first, ok := c.history.FirstMessage()
		if !ok {
			return "", fmt.Errorf("%w: %s has no first message", ErrInvalidIndex, id)
		}
		return first.Text(), nil
	}

	clean := merge.Strip(c.history.Parts)
	userIdx, err := precedingUser(clean, index)
	if err != nil {
		return "", err
	}
	userText := clean[userIdx].Text()
	entries := o.extract(c)

	truncated := *c.history
	truncated.Parts = clean[:userIdx+1]
	if err := o.persist(c, merge.Insert(&truncated, merge.UserAnchor(userText), entries)); err != nil {
		return "", err
	}

	return o.respond(ctx, c, userText, entries, opts)
}

// aiIndex returns the position in entries of the index-th regenerable AI message
func aiIndex(entries []models.ChatMessageEntry, index int) (int, error) {
	if index < 1 {
		return -1, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	n := 0
	for i, e := range entries {
		if e.IsDEntry || e.IsFirstMes || e.IsSummary || e.Role != models.RoleModel {
			continue
		}
		n++
		if n == index {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d, conversation has %d AI messages", ErrInvalidIndex, index, n)
}

// precedingUser finds the user message answered by the index-th AI message
func precedingUser(entries []models.ChatMessageEntry, index int) (int, error) {
	ai, err := aiIndex(entries, index)
	if err != nil {
		return -1, err
	}
	for j := ai - 1; j >= 0; j-- {
		if isUserTurn(entries[j]) {
			return j, nil
		}
	}
	return -1, fmt.Errorf("%w: no user message precedes AI message %d", ErrInvalidIndex, index)
}

func isUserTurn(e models.ChatMessageEntry) bool {
	return e.Role == models.RoleUser && !e.IsDEntry && !e.IsSummary
}

// ResetChatHistory discards every entry and reseeds the first message plus dynamic entries
func (o *Orchestrator) ResetChatHistory(_ context.Context, id string) (*models.ChatHistory, error) {
	o.setState(id, Resetting)
	defer o.setState(id, Idle)

	c, err := o.load(id, false)
	if err != nil {
		return nil, err
	}
	history := o.seed(c)
	if err := o.persist(c, history); err != nil {
		return nil, err
	}
	o.logger.Info("reset chat history", zap.String("conversation", id))
	return history.Clone(), nil
}

// seed builds a fresh history holding the first message and the eligible dynamic entries
func (o *Orchestrator) seed(c *conversation) *models.ChatHistory {
	h := models.NewChatHistory(c.fw.ChatIdentifier())
	if c.history != nil && c.history.Name != "" {
		h.Name = c.history.Name
	}
	first := models.NewTextEntry(models.RoleModel, c.card.WithDefaults().FirstMes)
	first.IsFirstMes = true
	h.Parts = append(h.Parts, first)

	return merge.Insert(h, merge.Anchor{Role: models.RoleModel, Text: first.Text()}, o.extract(c))
}

// RestoreChatHistory replaces the persisted entries with saved's, keeping the stored
// history's name and identifier
func (o *Orchestrator) RestoreChatHistory(_ context.Context, id string, saved *models.ChatHistory) error {
	if saved == nil {
		return errors.New("saved history cannot be nil")
	}
	current, err := o.convs.LoadHistory(id)
	if err != nil {
		return err
	}
	fw, err := o.convs.LoadFramework(id)
	if err != nil {
		o.logger.Warn("failed to load framework for restore", zap.String("conversation", id), zap.Error(err))
		fw = nil
	}

	restored := current
	if restored == nil {
		identifier := saved.Identifier
		if fw != nil {
			identifier = fw.ChatIdentifier()
		}
		restored = models.NewChatHistory(identifier)
	}
	restored = &models.ChatHistory{
		Name:       restored.Name,
		Role:       restored.Role,
		Identifier: restored.Identifier,
		Parts:      models.CloneEntries(saved.Parts),
	}

	return o.persist(&conversation{id: id, fw: fw}, restored)
}

// DeleteCharacterData removes every entity of a conversation. Deleting twice is not an error.
func (o *Orchestrator) DeleteCharacterData(_ context.Context, id string) error {
	errs := []error{o.convs.Delete(id)}
	for _, p := range o.purgers {
		if _, err := p.DeleteByConversation(id); err != nil {
			errs = append(errs, err)
		}
	}

	o.mu.Lock()
	delete(o.states, id)
	o.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

// CreateCharacter persists a bundle, builds its framework and seeds the history.
// An empty id falls back to the bundle's id, then to a fresh uuid.
func (o *Orchestrator) CreateCharacter(_ context.Context, id string, b *models.CharacterBundle) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	if id == "" {
		id = b.ID
	}
	if id == "" {
		id = uuid.New().String()
	}

	if err := o.saveBundle(id, b); err != nil {
		return "", err
	}
	c, err := o.load(id, false)
	if err != nil {
		return "", err
	}
	c.fw, _ = framework.Build(c.preset, c.card, c.world)
	if err := o.persist(c, o.seed(c)); err != nil {
		return "", err
	}

	o.logger.Info("created character", zap.String("conversation", id), zap.String("name", c.charName()))
	return id, nil
}

// UpdateCharacter replaces the bundle's entities and rebuilds the framework, keeping history
func (o *Orchestrator) UpdateCharacter(_ context.Context, id string, b *models.CharacterBundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	existing, err := o.convs.LoadRoleCard(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s has no role card", ErrDataIntegrity, id)
	}

	if err := o.saveBundle(id, b); err != nil {
		return err
	}
	c, err := o.load(id, false)
	if err != nil {
		return err
	}
	c.fw, _ = framework.Build(c.preset, c.card, c.world)

	history := c.history
	if history == nil {
		history = o.seed(c)
	} else {
		history = history.Clone()
		history.Identifier = c.fw.ChatIdentifier()
	}
	return o.persist(c, history)
}

func (o *Orchestrator) saveBundle(id string, b *models.CharacterBundle) error {
	card := b.RoleCard
	if err := o.convs.SaveRoleCard(id, &card); err != nil {
		return err
	}
	world := b.WorldBook
	if world == nil {
		world = &models.WorldBook{Entries: map[string]models.WorldEntry{}}
	}
	if err := o.convs.SaveWorldBook(id, world); err != nil {
		return err
	}
	preset := b.Preset
	if preset == nil {
		preset = &models.Preset{}
	}
	if err := o.convs.SavePreset(id, preset); err != nil {
		return err
	}
	if err := o.convs.SaveAuthorNote(id, b.AuthorNote); err != nil {
		return err
	}
	if b.Persona != nil {
		if err := o.convs.SavePersona(id, b.Persona); err != nil {
			return err
		}
	}
	return nil
}

// EditAIMessage replaces the text of the index-th AI message
func (o *Orchestrator) EditAIMessage(_ context.Context, id string, index int, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	c, err := o.load(id, true)
	if err != nil {
		return err
	}
	history := c.history.Clone()
	i, err := aiIndex(history.Parts, index)
	if err != nil {
		return err
	}
	history.Parts[i].SetText(text)
	return o.persist(c, history)
}

// DeleteAIMessage removes the index-th AI message and the user message it answered,
// then re-places the dynamic entries around the new last user message
func (o *Orchestrator) DeleteAIMessage(_ context.Context, id string, index int) error {
	c, err := o.load(id, true)
	if err != nil {
		return err
	}
	clean := merge.Strip(c.history.Parts)
	ai, err := aiIndex(clean, index)
	if err != nil {
		return err
	}

	remove := map[int]bool{ai: true}
	if user, err := precedingUser(clean, index); err == nil {
		remove[user] = true
	}
	kept := make([]models.ChatMessageEntry, 0, len(clean))
	for i, e := range clean {
		if !remove[i] {
			kept = append(kept, e)
		}
	}

	history := *c.history
	history.Parts = kept
	return o.persist(c, merge.Insert(&history, lastAnchor(kept), o.extract(c)))
}

// lastAnchor anchors on the newest user message, or the first message when none remain
func lastAnchor(entries []models.ChatMessageEntry) merge.Anchor {
	for i := len(entries) - 1; i >= 0; i-- {
		if isUserTurn(entries[i]) {
			return merge.UserAnchor(entries[i].Text())
		}
	}
	for _, e := range entries {
		if e.IsFirstMes {
			return merge.Anchor{Role: models.RoleModel, Text: e.Text()}
		}
	}
	return merge.Anchor{}
}

// History returns the persisted history of a conversation
func (o *Orchestrator) History(_ context.Context, id string) (*models.ChatHistory, error) {
	h, err := o.convs.LoadHistory(id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return h, nil
}

// List returns the ids of every stored conversation
func (o *Orchestrator) List(_ context.Context) ([]string, error) {
	return o.convs.List()
}

// State reports the advisory activity of a conversation
func (o *Orchestrator) State(id string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[id]
}

func (o *Orchestrator) setState(id string, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s == Idle {
		delete(o.states, id)
		return
	}
	o.states[id] = s
}

// Shutdown waits for pending memory write-backs, then releases the generator
func (o *Orchestrator) Shutdown() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.wg.Wait()
	if o.gen == nil {
		return nil
	}
	return o.gen.Shutdown()
}
