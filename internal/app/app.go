package app

import (
	"fmt"
	"os"
	"time"

	"ht-go/internal/api"
	"ht-go/internal/config"
	"ht-go/internal/ht"
	"ht-go/internal/timer"
)

// HTApp is the application layer between the CLI and HTService.
// It constructs all dependencies from config and owns the log file.
type HTApp struct {
	cfg     *config.Config
	client  *api.Client
	service *ht.HTService
	logger  ht.Logger
	logFile *os.File
	db      ht.Database // opened on demand by Backups
}

// NewHTApp creates a fully wired HTApp from the given config.
// command identifies the CLI command being run (e.g. "focus start") and is
// attached to every log record. The caller must call Close when done.
func NewHTApp(cfg *config.Config, command string, verbose bool) (*HTApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID, verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("command", command, "client", cfg.ClientID)}

	client, err := api.NewClient(cfg.API.BaseURL,
		api.WithToken(APIToken(cfg.API.Token)),
		api.WithTimeout(cfg.API.Timeout()),
		api.WithLogger(logger),
	)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	svc := ht.NewHTService(client, client, logger, ht.RealClock{}, cfg.Focus.DefaultPlannedMinutes)

	return &HTApp{
		cfg:     cfg,
		client:  client,
		service: svc,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Service returns the focus-session service.
func (a *HTApp) Service() *ht.HTService {
	return a.service
}

// Logger returns the application logger.
func (a *HTApp) Logger() ht.Logger {
	return a.logger
}

// Config returns the validated configuration.
func (a *HTApp) Config() *config.Config {
	return a.cfg
}

// NewTimer builds a timer context that reads the active session from the backend.
// The caller must Close it.
func (a *HTApp) NewTimer() *timer.Context {
	return timer.NewContext(
		timer.WithSource(a.client),
		timer.WithLogger(a.logger),
		timer.WithFallbackMinutes(a.cfg.Focus.DefaultPlannedMinutes),
		timer.WithCelebrationDuration(a.cfg.Focus.CelebrationDuration()),
	)
}

// Close releases the database, if one was opened, and the log file.
func (a *HTApp) Close() error {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logFile.Close()
			return fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			return fmt.Errorf("closing log file: %w", err)
		}
	}
	return nil
}
