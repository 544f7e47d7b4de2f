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
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/blinklabs-io/zkcircles/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNodeServesMockData(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n, err := New(NewConfig(
		WithListenAddress("127.0.0.1:0"),
		WithPrometheusRegistry(prometheus.NewRegistry()),
		WithShutdownTimeout(5*time.Second),
	))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	require.Error(t, n.Start(context.Background()))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + n.Addr() + "/health")
	require.NoError(t, err)
	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "mock", health.Mode)

	resp, err = client.Get("http://" + n.Addr() + "/api/circles/mock_circle_1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client.CloseIdleConnections()
	require.NoError(t, n.Stop())
	require.NoError(t, n.Stop())
}

func TestNodeRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n, err := New(NewConfig(
		WithListenAddress("127.0.0.1:0"),
		WithShutdownTimeout(5*time.Second),
	))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return n.Addr() != ""
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("node did not stop")
	}
}

func TestNodeBadEncryptionKey(t *testing.T) {
	n, err := New(NewConfig(
		WithListenAddress("127.0.0.1:0"),
		WithEncryptionKey("too short"),
	))
	require.NoError(t, err)
	err = n.Start(context.Background())
	require.ErrorContains(t, err, "encryption key")
	require.NoError(t, n.Stop())
}
