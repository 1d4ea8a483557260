// ABOUTME: Tests for the attempt plan: key rotation, model fallback, relay fallback and errors
// ABOUTME: Uses fake model clients and httptest relays
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/roleplay-core/internal/models"
)

type recorder struct {
	mu       sync.Mutex
	calls    []string
	contents [][]Content
	respond  func(model, key string, contents []Content) (string, error)
}

type fakeClient struct {
	key string
	rec *recorder
}

func (f *fakeClient) Generate(_ context.Context, model string, contents []Content) (string, error) {
	f.rec.mu.Lock()
	f.rec.calls = append(f.rec.calls, model+"/"+f.key)
	f.rec.contents = append(f.rec.contents, contents)
	respond := f.rec.respond
	f.rec.mu.Unlock()
	if respond == nil {
		return "", errors.New("boom")
	}
	return respond(model, f.key, contents)
}

func (r *recorder) factory(_ context.Context, key string) (ModelClient, error) {
	return &fakeClient{key: key, rec: r}, nil
}

type waits struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *waits) wait(_ context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	return nil
}

func userTurn(text string) []Content {
	return []Content{TextContent(models.RoleUser, text)}
}

func relayServer(t *testing.T, reply string, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		_, _ = io.Copy(io.Discard, r.Body)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRelay(t *testing.T, url string) *Relay {
	t.Helper()
	r, err := NewRelay(RelayConfig{URL: url, MaxRetries: 0, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	return r
}

func TestKeyRotationExhaustion(t *testing.T) {
	rec := &recorder{}
	w := &waits{}
	g, err := New(KeyRotating{
		Keys:         []string{"k1", "k2", "k3"},
		PrimaryModel: "primary",
		BackupModel:  "backup",
		Backoff:      5 * time.Second,
	}, WithClientFactory(rec.factory), withWait(w.wait))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), userTurn("hi"))
	require.ErrorIs(t, err, ErrGenerationFailed)

	assert.Equal(t, []string{
		"primary/k1", "primary/k2", "primary/k3",
		"backup/k1", "backup/k2", "backup/k3",
	}, rec.calls)
	assert.Equal(t, []time.Duration{5 * time.Second}, w.delays)
}

func TestKeyRotationStopsAtFirstSuccess(t *testing.T) {
	rec := &recorder{respond: func(model, key string, _ []Content) (string, error) {
		if key == "k2" {
			return "hello", nil
		}
		return "", errors.New("quota")
	}}
	g, err := New(KeyRotating{Keys: []string{"k1", "k2", "k3"}, PrimaryModel: "p", BackupModel: "b"},
		WithClientFactory(rec.factory), withWait((&waits{}).wait))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), userTurn("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []string{"p/k1", "p/k2"}, rec.calls)
}

func TestBackupTierOmittedWhenSameModel(t *testing.T) {
	rec := &recorder{}
	g, err := New(KeyRotating{Keys: []string{"k1", "k2"}, PrimaryModel: "m", BackupModel: "m"},
		WithClientFactory(rec.factory), withWait((&waits{}).wait))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), userTurn("hi"))
	require.Error(t, err)
	assert.Equal(t, []string{"m/k1", "m/k2"}, rec.calls)
}

func TestRelayFallbackAfterExhaustion(t *testing.T) {
	rec := &recorder{}
	hits := 0
	srv := relayServer(t, "from relay", &hits)

	g, err := New(KeyRotating{Keys: []string{"k1"}, PrimaryModel: "p", BackupModel: "b"},
		WithClientFactory(rec.factory), WithRelay(newRelay(t, srv.URL)), withWait((&waits{}).wait))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), userTurn("hi"))
	require.NoError(t, err)
	assert.Equal(t, "from relay", text)
	assert.Equal(t, []string{"p/k1", "b/k1"}, rec.calls)
	assert.Equal(t, 1, hits)
}

func TestNoKeyUsesRelayOnly(t *testing.T) {
	rec := &recorder{}
	srv := relayServer(t, "relayed", nil)

	g, err := New(KeyRotating{PrimaryModel: "p"}, WithClientFactory(rec.factory), WithRelay(newRelay(t, srv.URL)))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), userTurn("hi"))
	require.NoError(t, err)
	assert.Equal(t, "relayed", text)
	assert.Empty(t, rec.calls)
}

func TestNotConfigured(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
	}{
		{"key rotating without keys", KeyRotating{Keys: []string{" ", ""}, PrimaryModel: "p"}},
		{"openai without key", OpenAICompatible{Model: "m"}},
		{"relay without relay", CloudRelay{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			g, err := New(tt.backend, WithClientFactory(rec.factory))
			require.NoError(t, err)

			_, err = g.Generate(context.Background(), userTurn("hi"))
			assert.ErrorIs(t, err, ErrNotConfigured)
			assert.NotErrorIs(t, err, ErrGenerationFailed)
			assert.Empty(t, rec.calls)
		})
	}
}

func TestRegionErrorsAreMarked(t *testing.T) {
	rec := &recorder{respond: func(string, string, []Content) (string, error) {
		return "", errors.New(`googleapi: Error 400: User location is not supported for the API use.`)
	}}
	g, err := New(KeyRotating{Keys: []string{"k1"}, PrimaryModel: "p"}, WithClientFactory(rec.factory))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), userTurn("hi"))
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, ErrRegionUnsupported)
}

func TestEmptyResponseIsFailure(t *testing.T) {
	rec := &recorder{respond: func(_, key string, _ []Content) (string, error) {
		if key == "k1" {
			return "   ", nil
		}
		return "ok", nil
	}}
	g, err := New(KeyRotating{Keys: []string{"k1", "k2"}, PrimaryModel: "p"}, WithClientFactory(rec.factory))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), userTurn("hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestCancelledContextStopsPlan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{respond: func(string, string, []Content) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	g, err := New(KeyRotating{Keys: []string{"k1", "k2"}, PrimaryModel: "p"}, WithClientFactory(rec.factory))
	require.NoError(t, err)

	_, err = g.Generate(ctx, userTurn("hi"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.calls, 1)
}

func TestOpenAICompatibleBackend(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Greetings."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g, err := New(OpenAICompatible{Endpoint: srv.URL + "/v1", APIKey: "sk-test", Model: "local-model", Temperature: 0.5})
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), []Content{
		TextContent(models.RoleSystem, "You are Ayla."),
		TextContent(models.RoleModel, "Hi!"),
		TextContent(models.RoleUser, "Hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Greetings.", text)

	assert.Equal(t, "local-model", got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
}

type fakeTables struct {
	tables []models.FactTable
	err    error
	gotIDs []string
}

func (f *fakeTables) GetCharacterTables(_ context.Context, characterID, conversationID string) ([]models.FactTable, error) {
	f.gotIDs = []string{characterID, conversationID}
	return f.tables, f.err
}

func TestGenerateForInjectsTables(t *testing.T) {
	rec := &recorder{respond: func(string, string, []Content) (string, error) { return "ok", nil }}
	tables := &fakeTables{tables: []models.FactTable{{Name: "inventory", Headers: []string{"item"}, Rows: [][]string{{"rope"}}}}}

	g, err := New(KeyRotating{Keys: []string{"k1"}, PrimaryModel: "p"}, WithClientFactory(rec.factory), WithTables(tables))
	require.NoError(t, err)

	contents := []Content{
		TextContent(models.RoleModel, "Hi!"),
		TextContent(models.RoleUser, "What do I carry?"),
		TextContent(models.RoleModel, "trailing"),
	}
	_, err = g.GenerateFor(context.Background(), contents, Scope{CharacterID: "c1", ConversationID: "v1"})
	require.NoError(t, err)

	sent := rec.contents[0]
	require.Len(t, sent, 4)
	assert.Equal(t, models.RoleSystem, sent[1].Role)
	assert.Contains(t, sent[1].Text(), "Table: inventory")
	assert.Contains(t, sent[1].Text(), "<response_guidelines>")
	assert.Equal(t, "What do I carry?", sent[2].Text())
	assert.Equal(t, []string{"c1", "v1"}, tables.gotIDs)
}

func TestGenerateForIgnoresTableFailure(t *testing.T) {
	rec := &recorder{respond: func(string, string, []Content) (string, error) { return "ok", nil }}
	tables := &fakeTables{err: errors.New("db locked")}

	g, err := New(KeyRotating{Keys: []string{"k1"}, PrimaryModel: "p"}, WithClientFactory(rec.factory), WithTables(tables))
	require.NoError(t, err)

	_, err = g.GenerateFor(context.Background(), userTurn("hi"), Scope{CharacterID: "c1"})
	require.NoError(t, err)
	assert.Len(t, rec.contents[0], 1)
}

func TestNewRejectsNilBackend(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
