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

package api

import (
	"context"

	"github.com/blinklabs-io/zkcircles/circle"
)

// Gateway is the circle store the API serves. This decouples the HTTP
// server from the concrete database and enables testing with mock
// implementations.
type Gateway interface {
	ListCircles(ctx context.Context, filter circle.Filter) (circle.List, error)
	GetCircle(ctx context.Context, circleID string) (circle.Detail, error)
	CirclesForAddress(ctx context.Context, address string) ([]circle.Circle, error)
	CreateCircle(ctx context.Context, nc circle.NewCircle) error
	AddMember(ctx context.Context, circleID string, nm circle.NewMember) (uint8, error)
	RecordContribution(ctx context.Context, rec circle.Contribution) error
	RecordPayout(ctx context.Context, rec circle.Payout) error
	DissolveCircle(ctx context.Context, circleID string, requester string) error

	// Mock reports whether the gateway runs on seeded in-memory data
	Mock() bool
}
