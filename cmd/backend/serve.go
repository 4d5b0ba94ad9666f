package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/scenario-runner/cmd/backend/handlers"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServer,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(serveCmd)
}

// newRouter registers every route on a. Shared run links are public; the
// rest of the API requires a key when one is configured.
func newRouter(a *app, db handlers.Pinger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", handlers.HealthHandler(db)).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})).Methods("GET")

	if a.assetsDir != "" {
		router.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", http.FileServer(http.Dir(a.assetsDir))))
	}

	runHandler := handlers.NewRunHandler(a.engine, a.runs, a.scenarios, a.linker, a.log)
	scenarioHandler := handlers.NewScenarioHandler(a.scenarios, a.log)

	router.HandleFunc("/api/v1/shared/runs/{token}", runHandler.GetShared).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	if a.cfg.Auth.APIKeyHash != "" {
		apiRouter.Use(handlers.NewAPIKeyMiddleware(a.cfg.Auth.APIKeyHash, a.log).Handler)
	}

	apiRouter.HandleFunc("/run-scenario", runHandler.Trigger).Methods("POST")
	apiRouter.HandleFunc("/runs/{run_id}", runHandler.Get).Methods("GET")

	apiRouter.HandleFunc("/scenarios", scenarioHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/scenarios", scenarioHandler.List).Methods("GET")
	apiRouter.HandleFunc("/scenarios/{id}", scenarioHandler.Get).Methods("GET")
	apiRouter.HandleFunc("/scenarios/{id}/steps", scenarioHandler.UpdateSteps).Methods("PUT")

	return router
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg)
	log.Info(ctx, "starting server", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	db, err := connectDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	log.Info(ctx, "database connected", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	})

	a, err := newApp(ctx, cfg, log, db)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info(ctx, "engine initialized", map[string]interface{}{
		"llm_provider":   cfg.LLM.Provider,
		"llm_model":      cfg.LLM.Model,
		"storage_type":   cfg.Storage.Type,
		"page_index":     cfg.Embedding.APIKey != "",
		"agent_enabled":  cfg.Agent.Enabled,
		"shared_links":   a.linker != nil,
		"max_attempts":   cfg.Engine.MaxAttempts,
		"api_key_needed": cfg.Auth.APIKeyHash != "",
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      newRouter(a, sqlDB),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info(ctx, "server stopped", nil)
	return nil
}
