package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ersonp/gm-core/internal/application/handlers"
	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/services"
	"github.com/ersonp/gm-core/internal/infrastructure/config"
	embedder "github.com/ersonp/gm-core/internal/infrastructure/embedder/openai"
	llm "github.com/ersonp/gm-core/internal/infrastructure/llm/openai"
	"github.com/ersonp/gm-core/internal/infrastructure/memory/qdrant"
	"github.com/ersonp/gm-core/internal/infrastructure/notify"
	"github.com/ersonp/gm-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/gm-core/internal/infrastructure/worldfile"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config   *config.Config
	Worlds   *config.WorldsConfig
	Settings entities.ScopeSettings

	Registry *services.Registry
	Staging  *handlers.StagingHandler
	Dialogue *handlers.DialogueHandler
	Decision *handlers.DecisionHandler
	Clock    *handlers.ClockHandler
	Memory   *handlers.MemoryHandler

	WorldFiles *worldfile.Store

	SweepInterval time.Duration
}

// storeDeps is the store-only dependency set for commands that never touch
// the reasoning service.
type storeDeps struct {
	Config   *config.Config
	Worlds   *config.WorldsConfig
	Settings entities.ScopeSettings
	Store    *sqlite.Repository
}

// withStore loads config and the world's decision database, then calls the
// provided function. Used by commands that only read or write local state.
func withStore(fn func(*storeDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	worlds, err := config.LoadWorlds(cwd)
	if err != nil {
		return fmt.Errorf("loading worlds: %w", err)
	}

	if globalWorld == "" {
		return errors.New("world is required (use --world flag)")
	}
	if !worlds.Exists(globalWorld) {
		return fmt.Errorf("world %q not found (use 'gm worlds create' first)", globalWorld)
	}

	sqlitePath := config.SQLitePathForWorld(cwd, globalWorld)
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return fmt.Errorf("creating world directory: %w", err)
	}
	store, err := sqlite.NewRepository(config.SQLiteConfig{Path: sqlitePath})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	return fn(&storeDeps{
		Config:   cfg,
		Worlds:   worlds,
		Settings: worlds.ScopeSettings(globalWorld, cfg.ScopeSettings()),
		Store:    store,
	})
}

// withDeps builds the full dependency graph, including the reasoning
// service, embedder, and memory store, then calls the provided function.
// It handles cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	return withStore(func(sd *storeDeps) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		cfg := sd.Config

		collection, err := sd.Worlds.GetCollection(globalWorld)
		if err != nil {
			return err
		}

		qdrantCfg := cfg.Qdrant
		qdrantCfg.Collection = collection

		memoryRepo, err := qdrant.NewRepository(qdrantCfg)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer memoryRepo.Close()

		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		suggestionClient, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return fmt.Errorf("creating suggestion client: %w", err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		notifier := notify.NewLogNotifier(logger)

		contextBuilder := services.NewContextBuilder(emb, memoryRepo, services.DefaultContextLimit)
		suggester := services.NewSuggestionService(suggestionClient, contextBuilder, services.DefaultSuggestionTimeout)
		evaluator := services.NewRuleEvaluator()
		registry := services.NewRegistry(services.NewResolver(), notifier, logger)

		stagingService := services.NewStagingService(sd.Store, registry, evaluator, suggester, notifier, logger)
		dialogueService := services.NewDialogueService(sd.Store, registry, suggester, notifier, logger)

		worldFiles := worldfile.NewStore(
			filepath.Join(config.WorldDir(cwd, globalWorld), "regions"),
			sd.Store, cfg.GameCalendar(), sd.Settings)

		sweepInterval := services.DefaultSweepInterval
		if cfg.Approval.SweepIntervalSeconds > 0 {
			sweepInterval = time.Duration(cfg.Approval.SweepIntervalSeconds) * time.Second
		}

		return fn(&Deps{
			Config:        cfg,
			Worlds:        sd.Worlds,
			Settings:      sd.Settings,
			Registry:      registry,
			Staging:       handlers.NewStagingHandler(stagingService, worldFiles, logger),
			Dialogue:      handlers.NewDialogueHandler(dialogueService, worldFiles),
			Decision:      handlers.NewDecisionHandler(registry, sd.Store),
			Clock:         handlers.NewClockHandler(sd.Store, cfg.GameCalendar()),
			Memory:        handlers.NewMemoryHandler(emb, memoryRepo),
			WorldFiles:    worldFiles,
			SweepInterval: sweepInterval,
		})
	})
}
