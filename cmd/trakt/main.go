package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adeilh/go-trakt/config"
	"github.com/adeilh/go-trakt/internal/app"
	"github.com/adeilh/go-trakt/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "trakt",
		Short:         "Authenticated, cached client for the content-listing service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "path to config file")

	load := func(cmd *cobra.Command) (*app.App, error) {
		return loadApp(cmd.Context(), configPath, cmd.ErrOrStderr())
	}

	root.AddCommand(
		newServeCmd(load),
		newListsCmd(load),
		newDetailsCmd(load),
		newFetchCmd(load),
		newAuthCmd(load),
	)
	return root
}

type loader func(cmd *cobra.Command) (*app.App, error)

func loadApp(ctx context.Context, path string, logOut io.Writer) (*app.App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
