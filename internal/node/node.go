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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/zkcircles"
	"github.com/blinklabs-io/zkcircles/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(
		fmt.Sprintf(
			"config: listen=%s metadata=%s databasePath=%q",
			cfg.ListenAddress(),
			cfg.MetadataPlugin,
			cfg.DatabasePath,
		),
		"component", "node",
	)
	n, err := zkcircles.New(
		zkcircles.NewConfig(
			zkcircles.WithLogger(logger),
			zkcircles.WithListenAddress(cfg.ListenAddress()),
			zkcircles.WithCorsOrigins(cfg.CorsOrigins...),
			zkcircles.WithMetadataPlugin(cfg.MetadataPlugin),
			zkcircles.WithDatabasePath(cfg.DatabasePath),
			zkcircles.WithDatabaseURL(cfg.DatabaseURL),
			zkcircles.WithEncryptionKey(cfg.EncryptionKey),
			zkcircles.WithEncryptionKeyFile(cfg.EncryptionKeyFile),
			zkcircles.WithTracing(cfg.Tracing),
			zkcircles.WithTracingStdout(cfg.TracingStdout),
			zkcircles.WithShutdownTimeout(cfg.ShutdownTimeout),
			// Enable metrics with default prometheus registry
			zkcircles.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	var metricsServer *http.Server
	if addr := cfg.MetricsAddress(); addr != "" {
		metricsServer = startMetricsServer(addr, logger, signalCtxStop)
	}

	//nolint:contextcheck
	err = n.Run(signalCtx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			cfg.ShutdownTimeout,
		)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics server shutdown error", "error", shutdownErr)
		}
	}
	if err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// startMetricsServer serves prometheus metrics on addr. A listener failure
// stops the node through stop
func startMetricsServer(
	addr string,
	logger *slog.Logger,
	stop context.CancelFunc,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+addr,
		"component",
		"node",
	)
	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			stop()
		}
	}()
	return metricsServer
}
