package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Log       LogConfig
	Browser   BrowserConfig
	Engine    EngineConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Agent     AgentConfig
	Notify    NotifyConfig
	Auth      AuthConfig
	PublicURL string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	Type            string // "local" or "s3"
	BaseDir         string // For local: "./uploads"
	S3Bucket        string // For S3: bucket name
	S3Region        string // For S3: AWS region
	S3PresignExpiry time.Duration
	PublicBaseURL   string
	ScreenshotDir   string
	FullPage        bool
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// BrowserConfig controls the Chrome instance.
type BrowserConfig struct {
	Headless  bool
	NoSandbox bool
	ExecPath  string
	RemoteURL string
	Width     int
	Height    int
}

// EngineConfig holds run timing and retry bounds.
type EngineConfig struct {
	MaxAttempts       int
	StepPause         time.Duration
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	ClickSettle       time.Duration
	UploadSettle      time.Duration
	MaxScrolls        int
	ScrollStep        int
}

// LLMConfig selects the vision model.
type LLMConfig struct {
	Provider string // "bedrock", "anthropic" or "gemini"
	Model    string
	Region   string
	APIKey   string
}

// EmbeddingConfig configures page-content retrieval. An empty API key disables it.
type EmbeddingConfig struct {
	Model     string
	APIKey    string
	Dimension int
	CacheSize int
	TopK      int
}

// AgentConfig configures the autonomous operator used as the last resort.
type AgentConfig struct {
	Enabled       bool
	MaxIterations int
	TimeLimit     time.Duration
}

// NotifyConfig holds SMTP settings. An empty host disables email reports.
type NotifyConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	FromName     string
}

// AuthConfig holds API authentication and share link settings.
type AuthConfig struct {
	APIKeyHash   string
	LinkHashKey  string
	LinkBlockKey string
	LinkTTL      time.Duration
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30m")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "scenario_runner")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_dir", "./uploads")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_presign_expiry", "168h")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.screenshot_dir", "screenshots")
	v.SetDefault("storage.full_page", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 800)

	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.step_pause", "1s")
	v.SetDefault("engine.navigation_timeout", "60s")
	v.SetDefault("engine.action_timeout", "30s")
	v.SetDefault("engine.click_settle", "4s")
	v.SetDefault("engine.upload_settle", "1s")
	v.SetDefault("engine.max_scrolls", 20)
	v.SetDefault("engine.scroll_step", 500)

	v.SetDefault("llm.provider", "bedrock")
	v.SetDefault("llm.model", "anthropic.claude-3-5-sonnet-20240620-v1:0")
	v.SetDefault("llm.region", "us-east-1")
	v.SetDefault("llm.api_key", "")

	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.cache_size", 4096)
	v.SetDefault("embedding.top_k", 5)

	v.SetDefault("agent.enabled", true)
	v.SetDefault("agent.max_iterations", 8)
	v.SetDefault("agent.time_limit", "2m")

	v.SetDefault("notify.smtp_host", "")
	v.SetDefault("notify.smtp_port", 587)
	v.SetDefault("notify.smtp_username", "")
	v.SetDefault("notify.smtp_password", "")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.from_name", "Scenario Runner")

	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("auth.link_hash_key", "")
	v.SetDefault("auth.link_block_key", "")
	v.SetDefault("auth.link_ttl", "720h")

	v.SetDefault("public_url", "http://localhost:8080")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config

	config.Server.Host = v.GetString("server.host")
	config.Server.Port = v.GetInt("server.port")
	config.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	config.Server.WriteTimeout = v.GetDuration("server.write_timeout")

	config.Database.Host = v.GetString("database.host")
	config.Database.Port = v.GetInt("database.port")
	config.Database.User = v.GetString("database.user")
	config.Database.Password = v.GetString("database.password")
	config.Database.Database = v.GetString("database.database")
	config.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	config.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")
	config.Database.ConnMaxLifetime = v.GetDuration("database.conn_max_lifetime")

	config.Storage.Type = v.GetString("storage.type")
	config.Storage.BaseDir = v.GetString("storage.base_dir")
	config.Storage.S3Bucket = v.GetString("storage.s3_bucket")
	config.Storage.S3Region = v.GetString("storage.s3_region")
	config.Storage.S3PresignExpiry = v.GetDuration("storage.s3_presign_expiry")
	config.Storage.PublicBaseURL = v.GetString("storage.public_base_url")
	config.Storage.ScreenshotDir = v.GetString("storage.screenshot_dir")
	config.Storage.FullPage = v.GetBool("storage.full_page")

	config.Log.Level = v.GetString("log.level")
	config.Log.File = v.GetString("log.file")
	config.Log.MaxSizeMB = v.GetInt("log.max_size_mb")
	config.Log.MaxBackups = v.GetInt("log.max_backups")
	config.Log.MaxAgeDays = v.GetInt("log.max_age_days")
	config.Log.Compress = v.GetBool("log.compress")

	config.Browser.Headless = v.GetBool("browser.headless")
	config.Browser.NoSandbox = v.GetBool("browser.no_sandbox")
	config.Browser.ExecPath = v.GetString("browser.exec_path")
	config.Browser.RemoteURL = v.GetString("browser.remote_url")
	config.Browser.Width = v.GetInt("browser.width")
	config.Browser.Height = v.GetInt("browser.height")

	config.Engine.MaxAttempts = v.GetInt("engine.max_attempts")
	config.Engine.StepPause = v.GetDuration("engine.step_pause")
	config.Engine.NavigationTimeout = v.GetDuration("engine.navigation_timeout")
	config.Engine.ActionTimeout = v.GetDuration("engine.action_timeout")
	config.Engine.ClickSettle = v.GetDuration("engine.click_settle")
	config.Engine.UploadSettle = v.GetDuration("engine.upload_settle")
	config.Engine.MaxScrolls = v.GetInt("engine.max_scrolls")
	config.Engine.ScrollStep = v.GetInt("engine.scroll_step")

	config.LLM.Provider = v.GetString("llm.provider")
	config.LLM.Model = v.GetString("llm.model")
	config.LLM.Region = v.GetString("llm.region")
	config.LLM.APIKey = v.GetString("llm.api_key")

	config.Embedding.Model = v.GetString("embedding.model")
	config.Embedding.APIKey = v.GetString("embedding.api_key")
	config.Embedding.Dimension = v.GetInt("embedding.dimension")
	config.Embedding.CacheSize = v.GetInt("embedding.cache_size")
	config.Embedding.TopK = v.GetInt("embedding.top_k")

	config.Agent.Enabled = v.GetBool("agent.enabled")
	config.Agent.MaxIterations = v.GetInt("agent.max_iterations")
	config.Agent.TimeLimit = v.GetDuration("agent.time_limit")

	config.Notify.SMTPHost = v.GetString("notify.smtp_host")
	config.Notify.SMTPPort = v.GetInt("notify.smtp_port")
	config.Notify.SMTPUsername = v.GetString("notify.smtp_username")
	config.Notify.SMTPPassword = v.GetString("notify.smtp_password")
	config.Notify.From = v.GetString("notify.from")
	config.Notify.FromName = v.GetString("notify.from_name")

	config.Auth.APIKeyHash = v.GetString("auth.api_key_hash")
	config.Auth.LinkHashKey = v.GetString("auth.link_hash_key")
	config.Auth.LinkBlockKey = v.GetString("auth.link_block_key")
	config.Auth.LinkTTL = v.GetDuration("auth.link_ttl")

	config.PublicURL = v.GetString("public_url")

	return &config, nil
}
