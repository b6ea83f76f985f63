package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rpattn/streamgate/internal/config"
	"github.com/rpattn/streamgate/internal/db"
	"github.com/rpattn/streamgate/internal/logging"
	"github.com/rpattn/streamgate/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configDir  string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "streamgate",
		Short: "streamgate - event stream gate dashboard backend",
		Long: `streamgate polls a PostgREST table, surfaces each new row once in a
bounded feed, and serves the feed and poller controls behind a mock
access-key gate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "directory containing config.yaml")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newHistoryCmd(opts))
	return cmd
}

// bootstrap loads configuration and builds the logger shared by every command.
func (o *rootOptions) bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configDir, nil)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func (o *rootOptions) outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// storage bundles the repositories for the configured driver.
type storage struct {
	keys     repository.ProcessedKeyRepository
	sessions repository.SessionRepository
	close    func()
}

func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			return nil, err
		}
		conn, err := db.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return &storage{
			keys:     repository.NewProcessedKeyRepository(conn.Pool),
			sessions: repository.NewSessionRepository(conn.Pool),
			close:    conn.Close,
		}, nil
	case config.StorageDriverFile:
		logger.Info("using file storage", zap.String("data_dir", cfg.Storage.DataDir))
		return &storage{
			keys:     repository.NewFileProcessedKeyRepository(cfg.Storage.DataDir),
			sessions: repository.NewFileSessionRepository(cfg.Storage.DataDir),
			close:    func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
