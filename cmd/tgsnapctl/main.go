package main

import (
	"fmt"
	"os"

	"github.com/aryanfhm/tgsnap/internal/api"
	"github.com/aryanfhm/tgsnap/internal/config"
	"github.com/aryanfhm/tgsnap/internal/daemon"
	"github.com/aryanfhm/tgsnap/internal/logging"
	"github.com/aryanfhm/tgsnap/internal/session"
	"github.com/aryanfhm/tgsnap/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tgsnapctl",
		Short:         "Manage Telegram accounts and conversation snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newLogoutCmd())
	return cmd
}

// app wires the services the CLI needs directly in process.
type app struct {
	cfg      *config.Config
	registry *session.Registry
	db       *store.DB
	login    *api.LoginService
	ingest   *api.IngestService
	logger   *zap.Logger
}

func newApp(configPath string) (*app, error) {
	if configPath == "" {
		configPath = session.ConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := session.EnsureBaseDirs(); err != nil {
		return nil, err
	}

	logger := logging.Console()
	registry := daemon.NewRegistry(cfg, nil, logger)

	db, err := store.Open(session.StorePath())
	if err != nil {
		registry.Close()
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		registry.Close()
		_ = db.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		registry: registry,
		db:       db,
		login:    api.NewLoginService(registry, cfg.CountryCode, logger),
		ingest:   api.NewIngestService(registry, db, nil, logger),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	a.registry.Close()
	_ = a.db.Close()
}

// resolveAccount applies the --account flag over the config default.
func (a *app) resolveAccount(flagValue string) (string, error) {
	account := session.ResolveAccount(flagValue, a.cfg)
	if account == "" {
		return "", fmt.Errorf("no account given: pass --account or set default_account in config")
	}
	return account, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
