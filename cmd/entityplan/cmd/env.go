package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/entityplan/internal/config"
	"github.com/dbsmedya/entityplan/internal/database"
	"github.com/dbsmedya/entityplan/internal/ident"
	"github.com/dbsmedya/entityplan/internal/logger"
	"github.com/dbsmedya/entityplan/internal/planner"
	"github.com/dbsmedya/entityplan/internal/record"
	"github.com/dbsmedya/entityplan/internal/schema"
	"github.com/dbsmedya/entityplan/internal/store"
)

// readConfig reads the config file and applies the CLI overrides.
func readConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.Store, o.Schema, o.Workers)
	return cfg, nil
}

// loadConfig is readConfig followed by validation.
func loadConfig() (*config.Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// signalContext derives the command context cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command, log *logger.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return database.SetupSignalHandlerWithCallback(parent, func(sig os.Signal) {
		log.Warnw("Received shutdown signal, cancelling store I/O", "signal", sig.String())
	})
}

// runRequest is one planner invocation from the CLI.
type runRequest struct {
	RecordsPath string
	Options     planner.RunOptions
}

// executeRun loads the schema and batch, opens the configured store and runs
// the planner against it.
func executeRun(ctx context.Context, cfg *config.Config, log *logger.Logger, req runRequest) (*planner.Result, error) {
	desc, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}

	batch, err := record.LoadBatch(req.RecordsPath)
	if err != nil {
		return nil, err
	}

	deriver, err := newDeriver(&cfg.Planner)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warnw("Failed to close plan store", "error", cerr)
		}
	}()

	tp, shutdown := newTracerProvider(&cfg.Telemetry, log)
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warnw("Failed to flush telemetry", "error", serr)
		}
	}()

	p, err := planner.New(desc, st,
		planner.WithWorkers(cfg.Planner.Workers),
		planner.WithLogger(log),
		planner.WithDeriver(deriver),
		planner.WithTracerProvider(tp),
	)
	if err != nil {
		return nil, err
	}

	return p.Run(ctx, batch, req.Options)
}

func newDeriver(cfg *config.PlannerConfig) (*ident.Deriver, error) {
	ns, err := ident.ParseNamespace(cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("planner.namespace: %w", err)
	}
	return ident.New(ns, cfg.IDPrefix), nil
}
