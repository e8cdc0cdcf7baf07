package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/uniassist/internal/bootstrap"
	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/mcpserver"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

func main() {
	// stdout carries the protocol
	logger_i.InitWith(logger_i.Options{Output: os.Stderr, Level: slog.LevelInfo})
	logger := logger_i.NewLogger("main")

	settingsPath := flag.String("config", "uniassist.yaml", "settings file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		logger.Error("Invalid settings", "path", *settingsPath, "err", err)
		os.Exit(1)
	}
	app, err := bootstrap.Build(ctx, settings)
	if err != nil {
		logger.Error("Could not start", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	server, err := mcpserver.NewServer(app.Toolbox)
	if err != nil {
		logger.Error("Could not create MCP server", "err", err)
		return
	}
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("MCP server stopped", "err", err)
	}
}
