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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/internal/version"
	"github.com/go-chi/chi/v5"
)

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and error body. Unclassified
// errors are logged and reported with the fallback message
func (s *Server) writeError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	fallback string,
) {
	status, code, msg := classify(err, fallback)
	if status == http.StatusInternalServerError {
		s.logger.Error(
			fallback,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// unchanged
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid request body", circle.ErrInvalidState)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Service: ServiceName,
		Version: version.GetVersionString(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mode := "production"
	if s.gateway.Mock() {
		mode = "mock"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: ServiceName,
		Mode:    mode,
	})
}

// handleListCircles handles GET /api/circles?status=&limit=
func (s *Server) handleListCircles(w http.ResponseWriter, r *http.Request) {
	filter, err := circle.ParseFilter(
		r.URL.Query().Get("status"),
		r.URL.Query().Get("limit"),
	)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch circles")
		return
	}
	list, err := s.gateway.ListCircles(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch circles")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetCircle handles GET /api/circles/{circleID}
func (s *Server) handleGetCircle(w http.ResponseWriter, r *http.Request) {
	detail, err := s.gateway.GetCircle(r.Context(), chi.URLParam(r, "circleID"))
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch circle")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleCirclesForAddress handles GET /api/circles/member/{address}
func (s *Server) handleCirclesForAddress(w http.ResponseWriter, r *http.Request) {
	circles, err := s.gateway.CirclesForAddress(
		r.Context(),
		chi.URLParam(r, "address"),
	)
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch circles")
		return
	}
	writeJSON(w, http.StatusOK, circles)
}

// handleCreateCircle handles POST /api/circles
func (s *Server) handleCreateCircle(w http.ResponseWriter, r *http.Request) {
	var req circle.NewCircle
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, "Failed to create circle")
		return
	}
	if err := s.gateway.CreateCircle(r.Context(), req); err != nil {
		s.writeError(w, r, err, "Failed to create circle")
		return
	}
	writeJSON(w, http.StatusOK, CreateCircleResponse{
		Success:  true,
		CircleID: req.CircleID,
	})
}

// handleAddMember handles POST /api/circles/{circleID}/members
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req circle.NewMember
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, "Failed to add member")
		return
	}
	joinOrder, err := s.gateway.AddMember(
		r.Context(),
		chi.URLParam(r, "circleID"),
		req,
	)
	if err != nil {
		s.writeError(w, r, err, "Failed to add member")
		return
	}
	writeJSON(w, http.StatusOK, AddMemberResponse{
		Success:   true,
		JoinOrder: joinOrder,
	})
}

// handleRecordContribution handles POST /api/contributions
func (s *Server) handleRecordContribution(w http.ResponseWriter, r *http.Request) {
	var req circle.Contribution
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, "Failed to record contribution")
		return
	}
	if err := s.gateway.RecordContribution(r.Context(), req); err != nil {
		s.writeError(w, r, err, "Failed to record contribution")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// handleRecordPayout handles POST /api/payouts
func (s *Server) handleRecordPayout(w http.ResponseWriter, r *http.Request) {
	var req circle.Payout
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, "Failed to record payout")
		return
	}
	if err := s.gateway.RecordPayout(r.Context(), req); err != nil {
		s.writeError(w, r, err, "Failed to record payout")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// handleDissolveCircle handles DELETE /api/circles/{circleID} with the
// creator address in the body
func (s *Server) handleDissolveCircle(w http.ResponseWriter, r *http.Request) {
	var req DissolveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, "Failed to dissolve circle")
		return
	}
	err := s.gateway.DissolveCircle(
		r.Context(),
		chi.URLParam(r, "circleID"),
		req.CreatorAddress,
	)
	if err != nil {
		s.writeError(w, r, err, "Failed to dissolve circle")
		return
	}
	writeJSON(w, http.StatusOK, DissolveResponse{
		Success: true,
		Message: "Circle dissolved successfully",
	})
}
