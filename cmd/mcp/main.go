package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/pdf-rag-assistant/internal/adapters/mcp"
	"github.com/kirillkom/pdf-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/logging"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()
	// stdout carries the protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Observers{})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	user := domain.Identity{UserID: cfg.MCPUserID, Role: domain.RoleUser}
	srv := mcpadapter.NewServer(app.Answerer, app.History, user).MCPServer(version)
	if err := server.ServeStdio(srv); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		app.Close()
		os.Exit(1)
	}
}
