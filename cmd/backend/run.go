package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hairizuan-noorazman/scenario-runner/engine"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
)

var (
	scenarioFile string
	resultFile   string
	sqlitePath   string
)

// scenarioDocument is the on-disk form of a local run. Imports are stored
// before the run so ImportReusableTest steps can reference them by id.
type scenarioDocument struct {
	Name     string              `json:"name"`
	StartURL string              `json:"startUrl"`
	Email    string              `json:"email"`
	Steps    scenario.Steps      `json:"steps"`
	Imports  []scenario.Scenario `json:"imports"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario file against a local browser",
	Long: `Runs the scenario described by a YAML or JSON file and prints the run
result as JSON. Exits non-zero when the run fails.`,
	SilenceUsage: true,
	RunE:         runScenarioFile,
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	runCmd.Flags().StringVarP(&scenarioFile, "file", "f", "", "scenario file (yaml or json)")
	runCmd.Flags().StringVarP(&resultFile, "output", "o", "", "write the result to this file instead of stdout")
	runCmd.Flags().StringVar(&sqlitePath, "db", "", "sqlite database for scenarios and runs (in memory when empty)")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}

// decodeScenarioDocument reads YAML or JSON. YAML is converted to JSON first
// so steps go through the same decoding as API requests.
func decodeScenarioDocument(r io.Reader) (*scenarioDocument, error) {
	var raw interface{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert scenario file: %w", err)
	}
	var doc scenarioDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	for i := range doc.Imports {
		if err := doc.Imports[i].Validate(); err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
	}
	return &doc, nil
}

func storeImports(ctx context.Context, store scenario.Store, imports []scenario.Scenario) error {
	for i := range imports {
		sc := imports[i]
		if err := store.Create(ctx, &sc); err != nil {
			return fmt.Errorf("failed to store import %q: %w", sc.Name, err)
		}
	}
	return nil
}

func runScenarioFile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	f, err := os.Open(scenarioFile)
	if err != nil {
		return fmt.Errorf("failed to open scenario file: %w", err)
	}
	doc, err := decodeScenarioDocument(f)
	f.Close()
	if err != nil {
		return err
	}

	db, err := connectSQLite(sqlitePath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	a, err := newApp(ctx, cfg, log, db)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := storeImports(ctx, a.scenarios, doc.Imports); err != nil {
		return err
	}

	result, runErr := a.engine.Run(ctx, engine.Request{
		RunID: uuid.NewString(),
		Scenario: scenario.Scenario{
			Name:     doc.Name,
			StartURL: doc.StartURL,
			Steps:    doc.Steps,
		},
		Email: doc.Email,
	})
	if result == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if resultFile != "" {
		rf, err := os.Create(resultFile)
		if err != nil {
			return fmt.Errorf("failed to create result file: %w", err)
		}
		defer rf.Close()
		out = rf
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if result.Status != run.StatusSuccess {
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Message)
	}
	return nil
}
