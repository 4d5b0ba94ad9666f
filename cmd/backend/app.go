package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/scenario-runner/agent"
	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/cmd/backend/handlers"
	"github.com/hairizuan-noorazman/scenario-runner/database"
	"github.com/hairizuan-noorazman/scenario-runner/engine"
	"github.com/hairizuan-noorazman/scenario-runner/executor"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/metrics"
	"github.com/hairizuan-noorazman/scenario-runner/notify"
	"github.com/hairizuan-noorazman/scenario-runner/pageindex"
	"github.com/hairizuan-noorazman/scenario-runner/resolver"
	"github.com/hairizuan-noorazman/scenario-runner/retry"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
	"github.com/hairizuan-noorazman/scenario-runner/screenshot"
	"github.com/hairizuan-noorazman/scenario-runner/storage"
)

// app is the wired runtime shared by the serve and run commands.
type app struct {
	cfg       *Config
	log       logger.Logger
	db        *gorm.DB
	scenarios scenario.Store
	runs      run.Store
	blobs     storage.BlobStorage
	assetsDir string
	registry  *prometheus.Registry
	launcher  *browser.Launcher
	linker    *handlers.RunLinker
	engine    *engine.Engine
}

func newLogger(cfg *Config) *logger.LogrusLogger {
	var file *logger.FileOutput
	if cfg.Log.File != "" {
		file = &logger.FileOutput{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
	}
	return logger.NewLogrusLogger(cfg.Log.Level, file)
}

func connectDatabase(cfg *Config) (*gorm.DB, error) {
	return database.Connect(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func newModel(ctx context.Context, cfg LLMConfig) (llm.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "bedrock":
		return llm.NewBedrockModel(ctx, cfg.Region, cfg.Model)
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key is required for the anthropic provider")
		}
		return llm.NewAnthropicModel(cfg.APIKey, cfg.Model), nil
	case "gemini":
		return llm.NewGeminiModel(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// newIndex returns nil when embeddings are not configured.
func newIndex(ctx context.Context, cfg EmbeddingConfig, log logger.Logger) (resolver.Indexer, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	cached, err := llm.NewCachedEmbedder(embedder, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	index, err := pageindex.New(cached, log, pageindex.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create page index: %w", err)
	}
	return index, nil
}

func newSender(cfg NotifyConfig) (notify.Sender, error) {
	if cfg.SMTPHost == "" {
		return notify.NopSender{}, nil
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
		FromName: cfg.FromName,
	})
}

func connectSQLite(path string) (*gorm.DB, error) {
	return database.OpenSQLite(path, &scenario.Scenario{}, &run.Run{})
}

// newApp wires every component on top of db.
func newApp(ctx context.Context, cfg *Config, log logger.Logger, db *gorm.DB) (*app, error) {
	a := &app{cfg: cfg, log: log, db: db}
	a.scenarios = scenario.NewMySQLStore(db, log)
	a.runs = run.NewMySQLStore(db, log)

	publicBase := cfg.Storage.PublicBaseURL
	if publicBase == "" && strings.EqualFold(cfg.Storage.Type, "local") && cfg.PublicURL != "" {
		publicBase = strings.TrimRight(cfg.PublicURL, "/") + "/assets"
	}
	blobs, err := storage.New(storage.Config{
		Type:            cfg.Storage.Type,
		BaseDir:         cfg.Storage.BaseDir,
		PublicBaseURL:   publicBase,
		S3Bucket:        cfg.Storage.S3Bucket,
		S3Region:        cfg.Storage.S3Region,
		S3PresignExpiry: cfg.Storage.S3PresignExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if local, ok := blobs.(*storage.LocalStorage); ok {
		a.assetsDir = local.BaseDir()
	}
	a.blobs = storage.NewRetryingStorage(blobs, nil, log)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	model, err := newModel(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model: %w", err)
	}
	index, err := newIndex(ctx, cfg.Embedding, log)
	if err != nil {
		return nil, err
	}
	var operator resolver.Operator
	if cfg.Agent.Enabled {
		agentCfg := agent.DefaultConfig()
		agentCfg.MaxIterations = cfg.Agent.MaxIterations
		agentCfg.TimeLimit = cfg.Agent.TimeLimit
		operator = agent.NewOperator(agentCfg, model, log)
	}

	sender, err := newSender(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	if cfg.Auth.LinkHashKey != "" {
		var blockKey []byte
		if cfg.Auth.LinkBlockKey != "" {
			blockKey = []byte(cfg.Auth.LinkBlockKey)
		}
		a.linker = handlers.NewRunLinker([]byte(cfg.Auth.LinkHashKey), blockKey, cfg.PublicURL, cfg.Auth.LinkTTL)
	}
	links := func(runID string) string {
		if a.linker != nil {
			return a.linker.URL(runID)
		}
		return strings.TrimRight(cfg.PublicURL, "/") + "/api/v1/runs/" + runID
	}

	a.launcher = browser.NewLauncher(browser.Config{
		Headless:       cfg.Browser.Headless,
		NoSandbox:      cfg.Browser.NoSandbox,
		ExecPath:       cfg.Browser.ExecPath,
		RemoteURL:      cfg.Browser.RemoteURL,
		Width:          cfg.Browser.Width,
		Height:         cfg.Browser.Height,
		StartupTimeout: browser.DefaultConfig().StartupTimeout,
	}, log)

	res := resolver.New(resolver.Config{
		ScrollStep: cfg.Engine.ScrollStep,
		MaxScrolls: cfg.Engine.MaxScrolls,
		TopK:       cfg.Embedding.TopK,
	}, model, index, operator, m, log)

	execCfg := executor.DefaultConfig()
	execCfg.ActionTimeout = cfg.Engine.ActionTimeout
	execCfg.ClickSettle = cfg.Engine.ClickSettle
	execCfg.UploadSettle = cfg.Engine.UploadSettle
	exec := executor.New(execCfg, a.blobs, log)

	a.engine = engine.New(engine.Config{
		StepPause:         cfg.Engine.StepPause,
		NavigationTimeout: cfg.Engine.NavigationTimeout,
	}, engine.Deps{
		Browser: engine.BrowserFunc(func(ctx context.Context) (browser.Page, error) {
			page, err := a.launcher.NewPage(ctx)
			if err != nil {
				return nil, err
			}
			return page, nil
		}),
		Scenarios: a.scenarios,
		Runs:      a.runs,
		Shots: screenshot.NewRecorder(a.blobs, a.runs, log, screenshot.Options{
			Prefix:   cfg.Storage.ScreenshotDir,
			FullPage: cfg.Storage.FullPage,
		}),
		Steps:    retry.New(cfg.Engine.MaxAttempts, res, exec, m, log),
		Model:    model,
		Notifier: sender,
		Links:    links,
		Metrics:  m,
		Logger:   log,
	})
	return a, nil
}

// Close releases the browser.
func (a *app) Close() {
	a.launcher.Close()
}
