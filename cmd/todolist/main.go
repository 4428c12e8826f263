package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pudxe/todolist/internal/api"
	"github.com/Pudxe/todolist/internal/bot"
	"github.com/Pudxe/todolist/internal/config"
	"github.com/Pudxe/todolist/internal/db"
	"github.com/Pudxe/todolist/internal/goals"
	"github.com/Pudxe/todolist/internal/tg"
)

func main() {
	runbotCmd := flag.NewFlagSet("runbot", flag.ExitOnError)
	runbotConfig := runbotCmd.String("config", config.DefaultPath(), "Path to config file")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveConfig := serveCmd.String("config", config.DefaultPath(), "Path to config file")

	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateConfig := migrateCmd.String("config", config.DefaultPath(), "Path to config file")

	if len(os.Args) < 2 {
		fmt.Println("Usage: todolist <command> [options]")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  runbot   Start the Telegram bot")
		fmt.Println("  serve    Start the API server")
		fmt.Println("  migrate  Run database migrations")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "runbot":
		runbotCmd.Parse(os.Args[2:])
		runBot(*runbotConfig)

	case "serve":
		serveCmd.Parse(os.Args[2:])
		runServer(*serveConfig)

	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		runMigrations(*migrateConfig)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func setupLogging() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	return cfg
}

func openDatabase(cfg *config.Config) *db.DB {
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	return database
}

func runBot(configPath string) {
	setupLogging()
	cfg := loadConfig(configPath)

	token, err := cfg.RequireBotToken()
	if err != nil {
		slog.Error("cannot start bot", "error", err)
		os.Exit(1)
	}

	database := openDatabase(cfg)
	defer database.Close()

	client := tg.NewClient(token)
	svc := goals.NewService(database)
	b := bot.New(client, database, svc, bot.WithPollTimeout(cfg.Bot.PollTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		slog.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}

func runServer(configPath string) {
	setupLogging()
	cfg := loadConfig(configPath)

	database := openDatabase(cfg)
	defer database.Close()

	server := api.NewServer(database, api.DefaultJWTSecret())
	slog.Info("starting todolist api", "addr", cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(cfg.Listen)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error after shutdown", "error", err)
			os.Exit(1)
		}
	}
}

func runMigrations(configPath string) {
	setupLogging()
	cfg := loadConfig(configPath)

	database := openDatabase(cfg)
	defer database.Close()

	slog.Info("migrations completed successfully")
}
