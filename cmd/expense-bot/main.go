package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/expense-tracker/internal/bot"
	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/logging"
	"github.com/zombor/expense-tracker/internal/metrics"
	"github.com/zombor/expense-tracker/internal/review"
	"github.com/zombor/expense-tracker/internal/scanning"
	"github.com/zombor/expense-tracker/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine
	_ = godotenv.Load()
	logging.Setup()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shut down")
}

// run parses args, wires the bot and the HTTP API and blocks until a signal
// arrives or either of them fails. Resources opened here are released before
// it returns.
func run(args []string) error {
	fs := ff.NewFlagSet("expense-bot")
	var (
		port         = fs.IntLong("port", 8080, "HTTP API port")
		storeType    = fs.StringLong("store", "bolt", "Expense store: 'bolt', 'sqlite' or 'postgres'")
		dbPath       = fs.StringLong("db", "expenses.db", "Database file path for bolt and sqlite")
		databaseURL  = fs.StringLong("database-url", "", "PostgreSQL connection URL (or set DATABASE_URL env var)")
		scannerType  = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'openai'")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		openaiKey    = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiURL    = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL (optional)")
		openaiModel  = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI vision model name")
		discordToken = fs.StringLong("discord-token", "", "Discord bot token (or set DISCORD_TOKEN env var)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username for the HTTP API (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password for the HTTP API (optional)")
		currency     = fs.StringLong("currency", "₽", "Currency shown after amounts")
		recentLimit  = fs.IntLong("recent-limit", 10, "Number of expenses shown by /list")
		_            = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("EXPENSE_BOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		return fmt.Errorf("parsing flags: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	slog.Info("Initializing database...", "store", *storeType)
	db, err := openStore(ctx, *storeType, *dbPath, firstNonEmpty(*databaseURL, os.Getenv("DATABASE_URL")))
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	// Initialize scanner based on type
	scanner, err := openScanner(*scannerType, scannerConfig{
		geminiKey:   firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
		openaiKey:   firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY")),
		openaiURL:   *openaiURL,
		openaiModel: *openaiModel,
	})
	if err != nil {
		return fmt.Errorf("initializing scanner: %w", err)
	}
	defer scanner.Close()

	token := firstNonEmpty(*discordToken, os.Getenv("DISCORD_TOKEN"))
	if token == "" {
		return fmt.Errorf("discord token is required, set --discord-token flag or DISCORD_TOKEN environment variable")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	discordBot, err := bot.New(token)
	if err != nil {
		return fmt.Errorf("creating discord bot: %w", err)
	}
	service := review.NewService(db, scanner, discordBot, review.Options{
		Currency:    *currency,
		RecentLimit: *recentLimit,
		Metrics:     metrics.New(registry),
	})
	discordBot.SetDispatcher(service)

	apiServer := server.New(db, registry, server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return discordBot.Run(ctx)
	})
	g.Go(func() error {
		return apiServer.Run(ctx, fmt.Sprintf(":%d", *port))
	})

	slog.Info("Expense bot started", "version", version)
	return g.Wait()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func openStore(ctx context.Context, storeType, path, databaseURL string) (expense.DB, error) {
	switch storeType {
	case "bolt":
		return expense.NewBoltDB(path)
	case "sqlite":
		return expense.NewSQLiteDB(path)
	case "postgres":
		if databaseURL == "" {
			return nil, fmt.Errorf("postgres store requires --database-url or DATABASE_URL")
		}
		return expense.NewPostgresDB(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("invalid store type %q, valid: bolt, sqlite or postgres", storeType)
	}
}

type scannerConfig struct {
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
	openaiKey   string
	openaiURL   string
	openaiModel string
}

func openScanner(scannerType string, cfg scannerConfig) (scanning.Scanner, error) {
	switch scannerType {
	case "gemini":
		if cfg.geminiKey == "" {
			return nil, fmt.Errorf("gemini API key is required, set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		return scanning.NewGemini(cfg.geminiKey, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	case "openai":
		slog.Info("Initializing OpenAI scanner...", "model", cfg.openaiModel)
		return scanning.NewOpenAI(cfg.openaiKey, cfg.openaiURL, cfg.openaiModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q, valid: gemini, ollama or openai", scannerType)
	}
}
