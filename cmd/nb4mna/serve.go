package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nb4mna/nb4mna/internal/config"
	"github.com/nb4mna/nb4mna/internal/logging"
	"github.com/nb4mna/nb4mna/internal/server"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat commands HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := logging.Configure(cfg.Log.Level); err != nil {
				return err
			}

			srv, err := server.New(cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if configPath != "" {
				logrus.Infof("Loaded config from %s", configPath)
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml",
		"path to config file, empty to configure from the environment only")
	return cmd
}
