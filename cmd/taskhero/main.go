package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dukerupert/taskhero/internal/app"
	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/database"
	"github.com/dukerupert/taskhero/internal/logging"
	"github.com/dukerupert/taskhero/internal/store"
	"github.com/dukerupert/taskhero/internal/toast"
)

type config struct {
	APIURL       string
	WSURL        string
	DBPath       string
	LogLevel     string
	LogFile      string
	DeviceSecret string
}

func loadConfig() config {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config{
		APIURL:       os.Getenv("TASKHERO_API_URL"),
		WSURL:        os.Getenv("TASKHERO_WS_URL"),
		DBPath:       os.Getenv("TASKHERO_DB_PATH"),
		LogLevel:     os.Getenv("TASKHERO_LOG_LEVEL"),
		LogFile:      os.Getenv("TASKHERO_LOG_FILE"),
		DeviceSecret: os.Getenv("TASKHERO_DEVICE_SECRET"),
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "taskhero.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	return cfg
}

// env is what every subcommand runs against.
type env struct {
	session  *app.Session
	api      *client.Client
	kv       *store.KVStore
	settings *store.SettingsStore
	out      io.Writer
	logger   *slog.Logger
}

type command struct {
	name  string
	usage string
	// auth commands restore the stored session before running.
	auth bool
	run  func(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands()[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	if err := run(cmd, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd command, args []string) error {
	cfg := loadConfig()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFile)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open device storage: %w", err)
	}
	defer db.Close()

	settings := store.NewSettingsStore(db)
	prefs, err := settings.GetClientSettings()
	if err != nil {
		logger.Warn("read client settings", "error", err)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = prefs["api_base_url"]
	}
	if cfg.WSURL == "" {
		cfg.WSURL = prefs["ws_url"]
	}

	api := client.New(client.Config{BaseURL: cfg.APIURL, Logger: logger.With("component", "api")})
	kv := store.NewKVStore(db)
	sessions := store.NewSessionStore(kv, cfg.DeviceSecret)
	session := app.New(api, sessions, app.Config{WSURL: cfg.WSURL}, logger)
	defer session.Close()

	printer := &toastPrinter{out: os.Stderr, seen: make(map[string]bool)}
	session.Toasts.OnChange(printer.print)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd.auth {
		if err := session.Restore(ctx); err != nil {
			switch {
			case errors.Is(err, app.ErrNotLoggedIn):
				return errors.New("not logged in, run: taskhero login")
			case errors.Is(err, app.ErrSessionExpired):
				return errors.New("session expired, please log in again")
			}
			return err
		}
	}

	fs := flag.NewFlagSet(cmd.name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: taskhero %s %s\n", cmd.name, cmd.usage)
		fs.PrintDefaults()
	}
	e := &env{session: session, api: api, kv: kv, settings: settings, out: os.Stdout, logger: logger}
	return cmd.run(ctx, e, fs, args)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: taskhero <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "commands:")
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, cmds[name].usage)
	}
}

// toastPrinter writes each toast once, when it first appears.
type toastPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]bool
}

func (p *toastPrinter) print(toasts []toast.Toast) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range toasts {
		if p.seen[t.ID] {
			continue
		}
		p.seen[t.ID] = true
		fmt.Fprintf(p.out, "[%s] %s\n", t.Kind, t.Message)
	}
}
