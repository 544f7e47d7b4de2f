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

// ServiceName is reported by the root and health endpoints
const ServiceName = "zk-circles-backend"

// RootResponse is returned by GET /
type RootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode"`
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse acknowledges a write
type SuccessResponse struct {
	Success bool `json:"success"`
}

type CreateCircleResponse struct {
	Success  bool   `json:"success"`
	CircleID string `json:"circleId"`
}

type AddMemberResponse struct {
	Success   bool  `json:"success"`
	JoinOrder uint8 `json:"joinOrder"`
}

type DissolveRequest struct {
	CreatorAddress string `json:"creatorAddress"`
}

type DissolveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
