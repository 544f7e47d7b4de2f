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

package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultURL = "https://api.explorer.aleo.org/v1/testnet"

// maxResponseBytes limits transaction responses to 4 MiB
const maxResponseBytes = 4 << 20

// TxStatus is the confirmation state of a transaction
type TxStatus string

const (
	TxPending   TxStatus = "Pending"
	TxCompleted TxStatus = "Completed"
	TxFailed    TxStatus = "Failed"
)

// Client looks up transactions on a chain explorer
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an explorer client. An empty baseURL uses DefaultURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TransactionInfo is the part of an explorer transaction we inspect
type TransactionInfo struct {
	Status    string          `json:"status"`
	Execution json.RawMessage `json:"execution"`
}

// Transaction fetches the raw explorer view of a transaction.
// Corresponds to GET /transaction/{id}
func (c *Client) Transaction(
	ctx context.Context,
	txID string,
) (*TransactionInfo, error) {
	if txID == "" {
		return nil, errors.New("transaction id required")
	}
	reqURL := c.baseURL + "/transaction/" + url.PathEscape(txID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL is built from the configured explorer base
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var ret TransactionInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&ret); err != nil {
		return nil, fmt.Errorf("decoding transaction %s: %w", txID, err)
	}
	return &ret, nil
}

// TransactionStatus reports whether txID has been executed on chain. Any
// lookup failure is reported as TxPending
func (c *Client) TransactionStatus(ctx context.Context, txID string) TxStatus {
	tx, err := c.Transaction(ctx, txID)
	if err != nil {
		c.logger.Debug(
			"transaction lookup failed",
			"component", "explorer",
			"tx_id", txID,
			"error", err,
		)
		return TxPending
	}
	switch {
	case len(tx.Execution) > 0 && string(tx.Execution) != "null":
		return TxCompleted
	case tx.Status == "rejected":
		return TxFailed
	}
	return TxPending
}
