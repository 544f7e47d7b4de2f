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

// Package client implements the circle store over the gateway HTTP API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/zkcircles/api"
	"github.com/blinklabs-io/zkcircles/circle"
)

const DefaultURL = "http://localhost:3001"

// maxResponseBytes limits JSON API responses to 10 MiB
const maxResponseBytes = 10 << 20

// Client talks to a circle gateway over HTTP. Transport failures and 5xx
// responses wrap circle.ErrUnavailable, other error responses wrap the
// matching circle error
type Client struct {
	baseURL    string
	httpClient *http.Client
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

// New creates a gateway client. An empty baseURL uses DefaultURL
func New(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health returns the gateway health report. Corresponds to GET /health
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var ret api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &ret)
	return ret, err
}

// ListCircles corresponds to GET /api/circles
func (c *Client) ListCircles(
	ctx context.Context,
	filter circle.Filter,
) (circle.List, error) {
	filter = filter.Normalize()
	params := url.Values{}
	params.Set("status", filter.StatusParam())
	params.Set("limit", strconv.Itoa(filter.Limit))
	var ret circle.List
	if err := c.do(ctx, http.MethodGet, "/api/circles?"+params.Encode(), nil, &ret); err != nil {
		return ret, fmt.Errorf("listing circles: %w", err)
	}
	return ret, nil
}

// GetCircle corresponds to GET /api/circles/{id}
func (c *Client) GetCircle(
	ctx context.Context,
	circleID string,
) (circle.Detail, error) {
	var ret circle.Detail
	if err := c.do(ctx, http.MethodGet, "/api/circles/"+url.PathEscape(circleID), nil, &ret); err != nil {
		return ret, fmt.Errorf("getting circle %s: %w", circleID, err)
	}
	return ret, nil
}

// CirclesForAddress corresponds to GET /api/circles/member/{address}
func (c *Client) CirclesForAddress(
	ctx context.Context,
	address string,
) ([]circle.Circle, error) {
	ret := []circle.Circle{}
	if err := c.do(ctx, http.MethodGet, "/api/circles/member/"+url.PathEscape(address), nil, &ret); err != nil {
		return nil, fmt.Errorf("listing circles for address: %w", err)
	}
	return ret, nil
}

// CreateCircle corresponds to POST /api/circles
func (c *Client) CreateCircle(ctx context.Context, nc circle.NewCircle) error {
	var ret api.CreateCircleResponse
	if err := c.do(ctx, http.MethodPost, "/api/circles", nc, &ret); err != nil {
		return fmt.Errorf("creating circle %s: %w", nc.CircleID, err)
	}
	return nil
}

// AddMember corresponds to POST /api/circles/{id}/members
func (c *Client) AddMember(
	ctx context.Context,
	circleID string,
	nm circle.NewMember,
) (uint8, error) {
	var ret api.AddMemberResponse
	if err := c.do(ctx, http.MethodPost, "/api/circles/"+url.PathEscape(circleID)+"/members", nm, &ret); err != nil {
		return 0, fmt.Errorf("adding member to circle %s: %w", circleID, err)
	}
	return ret.JoinOrder, nil
}

// RecordContribution corresponds to POST /api/contributions
func (c *Client) RecordContribution(ctx context.Context, rec circle.Contribution) error {
	var ret api.SuccessResponse
	if err := c.do(ctx, http.MethodPost, "/api/contributions", rec, &ret); err != nil {
		return fmt.Errorf("recording contribution: %w", err)
	}
	return nil
}

// RecordPayout corresponds to POST /api/payouts
func (c *Client) RecordPayout(ctx context.Context, rec circle.Payout) error {
	var ret api.SuccessResponse
	if err := c.do(ctx, http.MethodPost, "/api/payouts", rec, &ret); err != nil {
		return fmt.Errorf("recording payout: %w", err)
	}
	return nil
}

// DissolveCircle corresponds to DELETE /api/circles/{id}
func (c *Client) DissolveCircle(
	ctx context.Context,
	circleID string,
	requester string,
) error {
	var ret api.DissolveResponse
	body := api.DissolveRequest{CreatorAddress: requester}
	if err := c.do(ctx, http.MethodDelete, "/api/circles/"+url.PathEscape(circleID), body, &ret); err != nil {
		return fmt.Errorf("dissolving circle %s: %w", circleID, err)
	}
	return nil
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	out any,
) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL is built from the configured gateway base
	if err != nil {
		return fmt.Errorf("%w: %w", circle.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		// Non-JSON error bodies still map by status code
		_ = json.NewDecoder(limited).Decode(&errResp)
		if errResp.Error == "" {
			errResp.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return api.ErrorForResponse(resp.StatusCode, errResp)
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", circle.ErrUnavailable, err)
	}
	return nil
}
