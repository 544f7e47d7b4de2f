// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/circlesync"
	"github.com/blinklabs-io/zkcircles/client"
	"github.com/blinklabs-io/zkcircles/explorer"
	"github.com/blinklabs-io/zkcircles/internal/config"
	"github.com/blinklabs-io/zkcircles/mirror"
	"github.com/spf13/cobra"
)

// openSyncer builds a facade over the configured backend and mirror. The
// returned func closes the mirror
func openSyncer(cfg *config.Config, logger *slog.Logger) (*circlesync.Syncer, func(), error) {
	store, err := mirror.OpenBlobStore(cfg.MirrorPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open mirror: %w", err)
	}
	m := mirror.New(store, logger)
	s, err := circlesync.New(circlesync.Config{
		Remote:   client.New(cfg.BackendURL),
		Mirror:   m,
		Logger:   logger,
		Timeout:  cfg.RemoteTimeout,
		SeedData: cfg.SeedData,
	})
	if err != nil {
		return nil, nil, errors.Join(err, m.Close())
	}
	return s, func() {
		if err := m.Close(); err != nil {
			logger.Error("failed to close mirror", "error", err)
		}
	}, nil
}

// cliLogger logs to stderr so command output stays parseable
func cliLogger() *slog.Logger {
	logLevel := slog.LevelWarn
	if globalFlags.debug {
		logLevel = slog.LevelDebug
	}
	return slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}),
	)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// circlesRunE wraps a command body with config lookup and a facade
func circlesRunE(
	fn func(ctx context.Context, s *circlesync.Syncer, args []string) (any, error),
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if cfg == nil {
			return errors.New("no config found in context")
		}
		logger := cliLogger()
		s, closeFn, err := openSyncer(cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		ret, err := fn(cmd.Context(), s, args)
		if err != nil {
			return err
		}
		return printJSON(ret)
	}
}

func circlesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circles",
		Short: "Query circles through the local mirror and the backend",
	}
	cmd.AddCommand(
		circlesListCommand(),
		circlesShowCommand(),
		circlesMineCommand(),
		circlesTxStatusCommand(),
	)
	return cmd
}

func circlesListCommand() *cobra.Command {
	var status, limit string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List circles with aggregate stats",
		Args:  cobra.NoArgs,
		RunE: circlesRunE(
			func(ctx context.Context, s *circlesync.Syncer, _ []string) (any, error) {
				filter, err := circle.ParseFilter(status, limit)
				if err != nil {
					return nil, err
				}
				return s.ListCircles(ctx, filter), nil
			},
		),
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (0-3 or all)")
	cmd.Flags().StringVar(&limit, "limit", "", "maximum number of circles")
	return cmd
}

func circlesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <circle-id>",
		Short: "Show a circle and its members",
		Args:  cobra.ExactArgs(1),
		RunE: circlesRunE(
			func(ctx context.Context, s *circlesync.Syncer, args []string) (any, error) {
				detail, found := s.GetCircle(ctx, args[0])
				if !found {
					return nil, fmt.Errorf("%w: %s", circle.ErrNotFound, args[0])
				}
				return detail, nil
			},
		),
	}
}

func circlesMineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mine <address>",
		Short: "List the circles an address belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: circlesRunE(
			func(ctx context.Context, s *circlesync.Syncer, args []string) (any, error) {
				return s.CirclesForAddress(ctx, args[0]), nil
			},
		),
	}
}

func circlesTxStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tx-status <transaction-id>",
		Short: "Show the confirmation status of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			c := explorer.NewClient(
				cfg.ExplorerURL,
				explorer.WithLogger(cliLogger()),
			)
			return printJSON(map[string]string{
				"transactionId": args[0],
				"status":        string(c.TransactionStatus(cmd.Context(), args[0])),
			})
		},
	}
}
