package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/frol/connect-volunteers-bot/internal/api"
	"github.com/frol/connect-volunteers-bot/internal/ledger"
	"github.com/frol/connect-volunteers-bot/internal/lockfile"
	"github.com/frol/connect-volunteers-bot/internal/store"
	"github.com/frol/connect-volunteers-bot/internal/telegram"
	"github.com/frol/connect-volunteers-bot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for bot state data
	DefaultStateDir = "/var/lib/volunteersbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "volunteersbot.db"
	// DefaultDestinationsFileName is the default ledger destination table filename
	DefaultDestinationsFileName = "destinations.yaml"
)

func main() {
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)
	initializeLogger(*flags.debug)

	// Refuse to start a second instance against the same state directory.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire instance lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping volunteers bot with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir,
		"dsn_set", *flags.dbDSN != "",
		"destinations", *flags.destinations,
		"api_addr", *flags.apiAddr)

	telegramOpts := buildTelegramOptions(flags)
	storeOpts := buildStoreOptions(flags)
	ledgerOpts := buildLedgerOptions(flags)
	apiOpts := buildAPIOptions(flags)

	if err := api.Run(telegramOpts, storeOpts, *flags.destinations, ledgerOpts, apiOpts); err != nil {
		slog.Error("Volunteers bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Volunteers bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	TelegramToken     string
	DatabaseURL       string
	StateDir          string
	Destinations      string
	GoogleCredentials string
	GoogleAccessToken string
	APIAddr           string
	Debug             bool
}

// Flags holds command line flag values
type Flags struct {
	telegramToken     *string
	stateDir          *string
	dbDSN             *string
	destinations      *string
	googleCredentials *string
	googleAccessToken *string
	apiAddr           *string
	debug             *bool
}

// initializeLogger sets up structured logging
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		TelegramToken:     os.Getenv("VOLUNTEERS_BOT_TELEGRAM_TOKEN"),
		DatabaseURL:       os.Getenv("VOLUNTEERS_BOT_DB_DSN"),
		StateDir:          os.Getenv("VOLUNTEERS_BOT_STATE_DIR"),
		Destinations:      os.Getenv("VOLUNTEERS_BOT_DESTINATIONS"),
		GoogleCredentials: os.Getenv("VOLUNTEERS_BOT_GOOGLE_CREDENTIALS"),
		GoogleAccessToken: os.Getenv("VOLUNTEERS_BOT_GOOGLE_ACCESS_TOKEN"),
		APIAddr:           os.Getenv("VOLUNTEERS_BOT_API_ADDR"),
		Debug:             util.ParseBoolEnv("VOLUNTEERS_BOT_DEBUG", false),
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.Destinations == "" {
		config.Destinations = filepath.Join(config.StateDir, DefaultDestinationsFileName)
	}
	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
	}

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		telegramToken:     flag.String("telegram-token", config.TelegramToken, "Telegram bot API token (overrides $VOLUNTEERS_BOT_TELEGRAM_TOKEN)"),
		stateDir:          flag.String("state-dir", config.StateDir, "state directory for bot data (overrides $VOLUNTEERS_BOT_STATE_DIR)"),
		dbDSN:             flag.String("db-dsn", config.DatabaseURL, "database DSN for the dialogue state store (overrides $VOLUNTEERS_BOT_DB_DSN or $DATABASE_URL)"),
		destinations:      flag.String("destinations", config.Destinations, "path to the ledger destinations YAML file (overrides $VOLUNTEERS_BOT_DESTINATIONS)"),
		googleCredentials: flag.String("google-credentials", config.GoogleCredentials, "Google service account credentials file (overrides $VOLUNTEERS_BOT_GOOGLE_CREDENTIALS)"),
		googleAccessToken: flag.String("google-access-token", config.GoogleAccessToken, "static Google OAuth2 access token (overrides $VOLUNTEERS_BOT_GOOGLE_ACCESS_TOKEN)"),
		apiAddr:           flag.String("api-addr", config.APIAddr, "operator API listen address (overrides $VOLUNTEERS_BOT_API_ADDR)"),
		debug:             flag.Bool("debug", config.Debug, "enable debug logging (overrides $VOLUNTEERS_BOT_DEBUG)"),
	}
	flag.Parse()

	// Follow the state directory when the DSN was only defaulted from it.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	return flags
}

// buildTelegramOptions constructs Telegram client configuration options
func buildTelegramOptions(flags Flags) []telegram.Option {
	var telegramOpts []telegram.Option
	if *flags.telegramToken != "" {
		telegramOpts = append(telegramOpts, telegram.WithToken(*flags.telegramToken))
	}
	if *flags.debug {
		telegramOpts = append(telegramOpts, telegram.WithDebug())
	}
	return telegramOpts
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	}
	return storeOpts
}

// buildLedgerOptions constructs ledger sink configuration options
func buildLedgerOptions(flags Flags) []ledger.Option {
	var ledgerOpts []ledger.Option
	if *flags.googleCredentials != "" {
		ledgerOpts = append(ledgerOpts, ledger.WithCredentialsFile(*flags.googleCredentials))
	}
	if *flags.googleAccessToken != "" {
		ledgerOpts = append(ledgerOpts, ledger.WithAccessToken(*flags.googleAccessToken))
	}
	return ledgerOpts
}

// buildAPIOptions constructs operator API configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
