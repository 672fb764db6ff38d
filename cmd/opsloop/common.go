package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/karsov/opsloop/internal/agent"
	"github.com/karsov/opsloop/internal/config"
	"github.com/karsov/opsloop/internal/db"
	"github.com/karsov/opsloop/internal/llm"
	"github.com/karsov/opsloop/internal/memory"
	"github.com/karsov/opsloop/internal/orchestrator"
	"github.com/karsov/opsloop/internal/risk"
	"github.com/karsov/opsloop/internal/tools"
)

func openDB() (*sql.DB, string, func(), error) {
	workRoot, err := os.Getwd()
	if err != nil {
		return nil, "", func() {}, err
	}
	opsDir := filepath.Join(workRoot, ".opsloop")
	if err := os.MkdirAll(opsDir, 0o755); err != nil {
		return nil, "", func() {}, err
	}
	dbPath := filepath.Join(opsDir, "opsloop.db")
	storeDB, err := db.Open(dbPath)
	if err != nil {
		return nil, "", func() {}, err
	}
	return storeDB, workRoot, func() { _ = storeDB.Close() }, nil
}

func loadConfig(workRoot string) (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = filepath.Join(".opsloop", "config.json")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workRoot, path)
	}
	return config.Load(path)
}

// buildPipeline assembles the full task pipeline from config: provider
// client, risk classifier, tool set, memory service, handler registry.
func buildPipeline(ctx context.Context, cfg config.Config, storeDB *sql.DB, workRoot string) (*orchestrator.Orchestrator, func(), error) {
	client, err := llm.NewHTTPClient(cfg.Provider.LLM())
	if err != nil {
		return nil, func() {}, fmt.Errorf("provider client: %w", err)
	}

	rulesPath := cfg.RiskRules
	if rulesPath == "" {
		rulesPath = filepath.Join(".opsloop", "risk.yaml")
	}
	if !filepath.IsAbs(rulesPath) {
		rulesPath = filepath.Join(workRoot, rulesPath)
	}
	classifier, err := risk.NewClassifierFromFile(rulesPath)
	if err != nil {
		return nil, func() {}, fmt.Errorf("risk rules: %w", err)
	}

	workspace := cfg.Workspace
	if !filepath.IsAbs(workspace) {
		workspace = filepath.Join(workRoot, workspace)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, func() {}, fmt.Errorf("create workspace: %w", err)
	}

	cleanup := func() {}
	toolList := []tools.Tool{
		tools.NewCommandTool(classifier, workspace),
		tools.NewFileWriteTool(workspace),
		tools.NewFileReadTool(workspace),
		tools.NewHTTPRequestTool(),
	}
	if cfg.SSH.KeyFile != "" {
		pool := tools.NewSSHPool(cfg.SSH.KeyFile)
		cleanup = pool.Close
		toolList = append(toolList, tools.NewRemoteCommandTool(classifier, pool))
	}
	set := tools.NewSet(toolList...)

	store := db.NewStore(storeDB)
	memSvc := memory.NewService(memory.NewStore(storeDB), client)
	registry := agent.NewRegistry(client, set, nil, memSvc, store)

	for _, role := range registry.Roles() {
		if err := store.UpsertAgent(ctx, role, set.Names()); err != nil {
			log.Warn().Err(err).Str("role", role).Msg("agent row upsert failed")
		}
	}

	return orchestrator.New(store, registry, memSvc, cfg.Project.Hints()), cleanup, nil
}
