// ABOUTME: Composition root that builds storage, gateway, search and orchestrator from config
// ABOUTME: Shared by the CLI, the MCP server and the HTTP server so they wire identically
package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/charm"
	"github.com/harper/roleplay-core/internal/config"
	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/search"
	"github.com/harper/roleplay-core/internal/storage"
	"github.com/harper/roleplay-core/internal/storage/sqlite"
)

// ErrSyncUnavailable is returned by Sync when the blob backend is not charm
var ErrSyncUnavailable = errors.New("sync requires the charm storage backend")

// App holds every long-lived component
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *sqlite.Storage
	Blobs         storage.BlobStore
	Conversations *storage.Conversations
	Gateway       *gateway.Gateway
	Orchestrator  *core.Orchestrator
	Search        *search.DuckDuckGo

	charm *charm.Client
}

// BackendFor maps the configured backend kind onto the gateway union
func BackendFor(cfg *config.Config) (gateway.Backend, error) {
	switch cfg.Backend {
	case config.BackendKeyRotating:
		return gateway.KeyRotating{
			Keys:         cfg.Gemini.Keys,
			PrimaryModel: cfg.Gemini.PrimaryModel,
			BackupModel:  cfg.Gemini.BackupModel,
			Backoff:      cfg.Gemini.Backoff,
		}, nil
	case config.BackendOpenAI:
		return gateway.OpenAICompatible{
			Endpoint:    cfg.OpenAI.Endpoint,
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
		}, nil
	case config.BackendRelay:
		return gateway.CloudRelay{}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// New wires the application. The caller owns the result and must Close it.
func New(cfg *config.Config, version string, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStorage(); err != nil {
		return nil, err
	}

	gw, err := a.buildGateway(version)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Gateway = gw

	a.Search = search.NewDuckDuckGo(
		search.WithRate(cfg.Search.RatePerSec),
		search.WithLogger(logger.Named("search")),
	)

	opts := []core.Option{
		core.WithLogger(logger.Named("core")),
		core.WithMemoryWriter(a.DB.Memories()),
		core.WithPurgers(a.DB.Memories(), a.DB.Facts()),
	}
	if cfg.Memory.Recall {
		opts = append(opts, core.WithMemoryRecall(a.DB.Memories(), cfg.Memory.Limit))
	}
	if cfg.Summary.Enabled {
		opts = append(opts, core.WithSummarizer(
			core.NewSummarizer(gw, cfg.Summary.Threshold, cfg.Summary.Length, logger.Named("summary")),
		))
	}
	a.Orchestrator = core.New(a.Conversations, gw, opts...)

	logger.Debug("application wired",
		zap.String("backend", cfg.Backend),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("recall", cfg.Memory.Recall),
		zap.Bool("summary", cfg.Summary.Enabled))
	return a, nil
}

func (a *App) openStorage() error {
	cfg := a.Config

	var err error
	switch {
	case cfg.Storage.Backend == config.StorageMemory:
		a.DB, err = sqlite.NewStorageInMemory()
	case cfg.Storage.Path != "":
		a.DB, err = sqlite.NewStorageWithPath(cfg.Storage.Path)
	default:
		a.DB, err = sqlite.NewStorage()
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		a.Blobs = storage.NewMemoryStore()
	case config.StorageCharm:
		c, err := charm.NewClient(&charm.Config{
			Host:     cfg.Charm.Host,
			DBName:   cfg.Charm.DBName,
			AutoSync: cfg.Charm.AutoSync,
		})
		if err != nil {
			_ = a.DB.Close()
			return err
		}
		a.charm = c
		a.Blobs = c
	default:
		a.Blobs = a.DB.Blobs()
	}

	a.DB.UseBlobStore(a.Blobs)
	a.Conversations = storage.NewConversations(a.Blobs)
	return nil
}

// RelayConfigFor maps the relay section of cfg onto the gateway client config
func RelayConfigFor(cfg *config.Config) gateway.RelayConfig {
	return gateway.RelayConfig{
		URL:         cfg.Relay.URL,
		Token:       cfg.Relay.Token,
		Model:       cfg.Relay.Model,
		Timeout:     cfg.Relay.Timeout,
		MaxRetries:  cfg.Relay.MaxRetries,
		Temperature: cfg.Relay.Temperature,
		MaxTokens:   cfg.Relay.MaxTokens,
	}
}

func (a *App) buildGateway(version string) (*gateway.Gateway, error) {
	cfg := a.Config
	backend, err := BackendFor(cfg)
	if err != nil {
		return nil, err
	}

	opts := []gateway.Option{
		gateway.WithLogger(a.Logger.Named("gateway")),
		gateway.WithTables(a.DB.Facts()),
	}

	if cfg.Relay.Enabled {
		relay, err := gateway.NewRelay(RelayConfigFor(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to configure relay: %w", err)
		}
		opts = append(opts, gateway.WithRelay(relay))
		if cfg.Search.Enabled {
			opts = append(opts, gateway.WithRelaySearch(relay))
		}
	}

	if cfg.Search.Enabled && cfg.Search.MCPCommand != "" {
		local := search.NewMCPClient(cfg.Search.MCPCommand, cfg.Search.MCPArgs, version, a.Logger.Named("mcp-search"))
		opts = append(opts, gateway.WithLocalSearch(local))
	}

	return gateway.New(backend, opts...)
}

// Sync pushes and pulls the charm database
func (a *App) Sync() error {
	if a.charm == nil {
		return ErrSyncUnavailable
	}
	return a.charm.Sync()
}

// Close drains background work and releases every resource
func (a *App) Close() error {
	var errs []error
	if a.Orchestrator != nil {
		if err := a.Orchestrator.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	} else if a.Gateway != nil {
		if err := a.Gateway.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.charm != nil {
		if err := a.charm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
