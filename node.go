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

package zkcircles

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/zkcircles/api"
	"github.com/blinklabs-io/zkcircles/database"
	"github.com/blinklabs-io/zkcircles/event"
	"github.com/blinklabs-io/zkcircles/fieldcodec"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	api           *api.Server
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	mu            sync.Mutex
	startOnce     sync.Once
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		done:   make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n.eventBus = event.NewEventBus(cfg.promRegistry, cfg.logger)
	return n, nil
}

// Start opens the gateway and starts the API listener. It returns once the
// listener is bound
func (n *Node) Start(ctx context.Context) error {
	err := errors.New("node already started")
	n.startOnce.Do(func() {
		err = n.start(ctx)
	})
	return err
}

func (n *Node) start(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	codec, err := fieldcodec.NewFromConfig(
		n.config.encryptionKey,
		n.config.encryptionKeyFile,
		n.config.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to load encryption key: %w", err)
	}
	// Load database
	mock := n.config.mockMode()
	db, err := database.New(database.Config{
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		EventBus:       n.eventBus,
		Codec:          codec,
		MetadataPlugin: n.config.metadataPlugin,
		DataDir:        n.config.dataDir,
		DatabaseURL:    n.config.databaseURL,
		MockData:       mock,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	if mock {
		n.config.logger.Warn(
			"no database configured, serving in-memory example data",
			"component", "node",
		)
	}
	n.eventBus.SubscribeFunc(
		event.CircleActivatedEventType,
		n.logCircleEvent("circle activated"),
	)
	n.eventBus.SubscribeFunc(
		event.CircleCompletedEventType,
		n.logCircleEvent("circle completed"),
	)
	n.eventBus.SubscribeFunc(
		event.CircleDissolvedEventType,
		n.logCircleEvent("circle dissolved"),
	)
	// API listener
	apiServer := api.New(
		api.Config{
			ListenAddress:   n.config.listenAddress,
			CorsOrigins:     n.config.corsOrigins,
			ShutdownTimeout: n.config.shutdownTimeout,
		},
		n.db,
		n.config.logger,
	)
	apiCtx, apiCancel := context.WithCancel(ctx)
	n.shutdownFuncs = append(n.shutdownFuncs, func(context.Context) error {
		apiCancel()
		return nil
	})
	if err := apiServer.Start(apiCtx); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	n.mu.Lock()
	n.api = apiServer
	n.mu.Unlock()
	return nil
}

// Run starts the node and blocks until the context is cancelled or Stop is
// called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return errors.Join(err, n.Stop())
	}
	select {
	case <-ctx.Done():
		return n.Stop()
	case <-n.done:
		return nil
	}
}

// Addr returns the bound API listener address
func (n *Node) Addr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.api == nil {
		return ""
	}
	return n.api.Addr()
}

func (n *Node) logCircleEvent(msg string) event.EventHandlerFunc {
	return func(evt event.Event) {
		data, ok := evt.Data.(event.CircleEvent)
		if !ok {
			return
		}
		n.config.logger.Info(
			msg,
			"component", "node",
			"circle_id", data.CircleID,
			"cycle", data.Cycle,
		)
	}
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.mu.Lock()
	apiServer := n.api
	n.mu.Unlock()
	if apiServer != nil {
		if stopErr := apiServer.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain events and close database
	if n.eventBus != nil {
		n.eventBus.Stop()
	}
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 3: Cleanup resources
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
