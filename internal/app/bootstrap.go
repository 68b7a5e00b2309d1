// Package app wires the storage, config and engine together for the CLI and
// the server.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ogmissions/internal/config"
	"ogmissions/internal/db"
	"ogmissions/internal/engine"
	"ogmissions/internal/migrate"
)

type App struct {
	DB     *sql.DB
	Engine *engine.Engine
	Config *config.Config
	Logger *slog.Logger
}

// Open prepares a workspace: ensures the data directory, runs migrations,
// loads ogmissions.yml (falling back to defaults) and builds the engine.
func Open(workspace string) (*App, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("config: %w", err)
	}
	eng := engine.New(conn, cfg)
	logger := NewLogger(os.Getenv("OGM_LOG_LEVEL"))
	eng.Logger = logger
	return &App{DB: conn, Engine: eng, Config: cfg, Logger: logger}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// NewLogger builds a text slog logger at the given level, defaulting to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
