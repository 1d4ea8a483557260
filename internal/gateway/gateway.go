// ABOUTME: Adapter gateway routing generation through key rotation, model fallback and a cloud relay
// ABOUTME: Every call is planned as an ordered attempt list evaluated by one loop
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/models"
)

var (
	// ErrNotConfigured means no provider key and no relay are available
	ErrNotConfigured = errors.New("no API key or cloud relay configured")
	// ErrGenerationFailed means every attempt in the plan failed
	ErrGenerationFailed = errors.New("generation failed")
	// ErrRegionUnsupported marks a provider refusing the caller's region
	ErrRegionUnsupported = errors.New("provider does not support this region")

	errEmptyResponse = errors.New("empty response")
)

var regionMarkers = []string{
	"location is not supported",
	"unsupported_country_region_territory",
}

// Backend is the configured provider family. Exactly one of KeyRotating,
// OpenAICompatible or CloudRelay.
type Backend interface {
	backendKind() string
}

// KeyRotating tries a primary model across keys, then a backup model
type KeyRotating struct {
	Keys         []string
	PrimaryModel string
	BackupModel  string
	Backoff      time.Duration
}

func (KeyRotating) backendKind() string { return "key_rotating" }

// OpenAICompatible targets any chat-completions endpoint
type OpenAICompatible struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

func (OpenAICompatible) backendKind() string { return "openai" }

// CloudRelay generates through the relay only
type CloudRelay struct{}

func (CloudRelay) backendKind() string { return "relay" }

// ModelClient generates text with one credential
type ModelClient interface {
	Generate(ctx context.Context, model string, contents []Content) (string, error)
}

// ClientFactory opens a ModelClient for an API key
type ClientFactory func(ctx context.Context, apiKey string) (ModelClient, error)

// TableSource supplies long-term fact tables for a character
type TableSource interface {
	GetCharacterTables(ctx context.Context, characterID, conversationID string) ([]models.FactTable, error)
}

// Scope identifies whose tables may be injected into a request
type Scope struct {
	CharacterID    string
	ConversationID string
}

// Gateway is the uniform generate contract over all backends
type Gateway struct {
	backend     Backend
	factory     ClientFactory
	relay       *Relay
	relaySearch WebSearcher
	local       LocalSearcher
	tables      TableSource
	logger      *zap.Logger
	httpClient  *http.Client
	wait        func(ctx context.Context, d time.Duration) error

	mu             sync.Mutex
	clients        map[string]ModelClient
	localConnected bool
}

// Option configures a Gateway
type Option func(*Gateway)

// WithRelay enables the cloud relay tier
func WithRelay(r *Relay) Option {
	return func(g *Gateway) { g.relay = r }
}

// WithRelaySearch sets the managed search tier
func WithRelaySearch(s WebSearcher) Option {
	return func(g *Gateway) { g.relaySearch = s }
}

// WithLocalSearch sets the local tool search tier
func WithLocalSearch(s LocalSearcher) Option {
	return func(g *Gateway) { g.local = s }
}

// WithTables sets the fact table source
func WithTables(t TableSource) Option {
	return func(g *Gateway) { g.tables = t }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClientFactory replaces how model clients are opened
func WithClientFactory(f ClientFactory) Option {
	return func(g *Gateway) { g.factory = f }
}

// WithHTTPClient sets the client used to fetch image URLs
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// withWait replaces the backoff sleeper
func withWait(w func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) { g.wait = w }
}

// New builds a gateway for backend
func New(backend Backend, opts ...Option) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is nil", ErrNotConfigured)
	}
	g := &Gateway{
		backend:    backend,
		logger:     zap.NewNop(),
		httpClient: &http.Client{Timeout: imageFetchTimeout},
		wait:       sleep,
		clients:    make(map[string]ModelClient),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.factory == nil {
		switch b := backend.(type) {
		case KeyRotating:
			g.factory = NewGeminiClient
		case OpenAICompatible:
			g.factory = func(_ context.Context, apiKey string) (ModelClient, error) {
				return NewOpenAIClient(OpenAIConfig{
					Endpoint:    b.Endpoint,
					APIKey:      apiKey,
					Temperature: b.Temperature,
					MaxTokens:   b.MaxTokens,
				})
			}
		}
	}
	return g, nil
}

// Generate runs plain generation without table injection
func (g *Gateway) Generate(ctx context.Context, contents []Content) (string, error) {
	return g.run(ctx, contents)
}

// GenerateFor runs plain generation, injecting the character's fact tables
// as a system turn before the final user turn
func (g *Gateway) GenerateFor(ctx context.Context, contents []Content, scope Scope) (string, error) {
	if text := g.tableText(ctx, scope); text != "" {
		turn := TextContent(models.RoleSystem, text+"\n\n"+tableGuidelines)
		contents = insertBefore(contents, lastUserIndex(contents), turn)
	}
	return g.run(ctx, contents)
}

// Shutdown releases the local search connection and idle relay connections
func (g *Gateway) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var err error
	if g.local != nil && g.localConnected {
		err = g.local.Close()
		g.localConnected = false
	}
	if g.relay != nil {
		g.relay.CloseIdleConnections()
	}
	g.clients = make(map[string]ModelClient)
	return err
}

// attempt is one strategy in a generation plan
type attempt struct {
	name  string
	delay time.Duration
	run   func(ctx context.Context, contents []Content) (string, error)
}

// plan lists the attempts for the configured backend, in order
func (g *Gateway) plan() ([]attempt, error) {
	var attempts []attempt

	switch b := g.backend.(type) {
	case KeyRotating:
		keys := nonEmpty(b.Keys)
		if len(keys) == 0 {
			return g.relayOnly()
		}
		for i, key := range keys {
			attempts = append(attempts, g.modelAttempt(b.PrimaryModel, key, i, 0))
		}
		if b.BackupModel != "" && b.BackupModel != b.PrimaryModel {
			for i, key := range keys {
				var delay time.Duration
				if i == 0 {
					delay = b.Backoff
				}
				attempts = append(attempts, g.modelAttempt(b.BackupModel, key, i, delay))
			}
		}
	case OpenAICompatible:
		if strings.TrimSpace(b.APIKey) == "" {
			return g.relayOnly()
		}
		attempts = append(attempts, g.modelAttempt(b.Model, b.APIKey, 0, 0))
	case CloudRelay:
		return g.relayOnly()
	default:
		return nil, fmt.Errorf("%w: unknown backend %T", ErrNotConfigured, b)
	}

	if g.relay != nil {
		attempts = append(attempts, g.relayAttempt())
	}
	return attempts, nil
}

func (g *Gateway) relayOnly() ([]attempt, error) {
	if g.relay == nil {
		return nil, ErrNotConfigured
	}
	return []attempt{g.relayAttempt()}, nil
}

func (g *Gateway) modelAttempt(model, key string, index int, delay time.Duration) attempt {
	return attempt{
		name:  fmt.Sprintf("%s/key#%d", model, index+1),
		delay: delay,
		run: func(ctx context.Context, contents []Content) (string, error) {
			client, err := g.client(ctx, key)
			if err != nil {
				return "", err
			}
			return client.Generate(ctx, model, contents)
		},
	}
}

func (g *Gateway) relayAttempt() attempt {
	return attempt{
		name: "relay",
		run:  g.relay.Generate,
	}
}

// client returns a cached ModelClient for key
func (g *Gateway) client(ctx context.Context, key string) (ModelClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[key]; ok {
		return c, nil
	}
	if g.factory == nil {
		return nil, fmt.Errorf("%w: no client for backend", ErrNotConfigured)
	}
	c, err := g.factory(ctx, key)
	if err != nil {
		return nil, err
	}
	g.clients[key] = c
	return c, nil
}

// run evaluates the plan until one attempt yields text
func (g *Gateway) run(ctx context.Context, contents []Content) (string, error) {
	attempts, err := g.plan()
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, a := range attempts {
		if a.delay > 0 {
			if err := g.wait(ctx, a.delay); err != nil {
				return "", err
			}
		}

		text, err := a.run(ctx, contents)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = errEmptyResponse
		}
		lastErr = classify(err)
		g.logger.Warn("generation attempt failed", zap.String("attempt", a.name), zap.Error(lastErr))

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("%w: %w", ErrGenerationFailed, lastErr)
}

// classify wraps region refusals with ErrRegionUnsupported
func classify(err error) error {
	if errors.Is(err, ErrRegionUnsupported) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range regionMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", ErrRegionUnsupported, err)
		}
	}
	return err
}

func nonEmpty(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const maxRetryDelay = 30 * time.Second

// backoffDelay doubles base per attempt up to maxRetryDelay, with +/-25% jitter.
// Attempt 0 waits nothing.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	d := maxRetryDelay
	if attempt < 30 && base < maxRetryDelay>>uint(attempt) {
		d = base << uint(attempt)
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2+1)) - d/4
	return d + jitter
}
