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

// Package circlesync keeps a local mirror of circle state in step with
// the gateway and answers from the mirror when the gateway cannot
package circlesync

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/mirror"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultTimeout = 10 * time.Second

// Remote is the authoritative circle store, usually the gateway HTTP
// client
type Remote interface {
	ListCircles(ctx context.Context, filter circle.Filter) (circle.List, error)
	GetCircle(ctx context.Context, circleID string) (circle.Detail, error)
	CirclesForAddress(ctx context.Context, address string) ([]circle.Circle, error)
	CreateCircle(ctx context.Context, nc circle.NewCircle) error
	AddMember(ctx context.Context, circleID string, nm circle.NewMember) (uint8, error)
	RecordContribution(ctx context.Context, rec circle.Contribution) error
	RecordPayout(ctx context.Context, rec circle.Payout) error
	DissolveCircle(ctx context.Context, circleID string, requester string) error
}

var errNoRemote = errors.New("no remote configured")

type Config struct {
	// Remote may be nil, in which case every read is served locally
	Remote       Remote
	Mirror       *mirror.Mirror
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Timeout bounds each remote call
	Timeout time.Duration
	// SeedData supplements an empty mirror with example circles
	SeedData bool
}

// Syncer is the read/write surface used by the application. Reads never
// fail. Writes land in the mirror first, then go to the remote once
type Syncer struct {
	remote  Remote
	mirror  *mirror.Mirror
	logger  *slog.Logger
	metrics *syncMetrics
	timeout time.Duration
	seed    bool
	now     func() time.Time
}

func New(cfg Config) (*Syncer, error) {
	if cfg.Mirror == nil {
		return nil, errors.New("local mirror is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	s := &Syncer{
		remote:  cfg.Remote,
		mirror:  cfg.Mirror,
		logger:  cfg.Logger.With("component", "circlesync"),
		timeout: cfg.Timeout,
		seed:    cfg.SeedData,
		now:     time.Now,
	}
	if cfg.PromRegistry != nil {
		s.metrics = newSyncMetrics(cfg.PromRegistry)
	}
	return s, nil
}

// Mirror returns the local mirror
func (s *Syncer) Mirror() *mirror.Mirror {
	return s.mirror
}

// callRemote runs fn against the remote with the per-call timeout
func (s *Syncer) callRemote(
	ctx context.Context,
	fn func(ctx context.Context, remote Remote) error,
) error {
	if s.remote == nil {
		return errNoRemote
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx, s.remote)
}

// remoteFailed logs and counts a remote failure. It reports whether err is
// a validation error the caller must see
func (s *Syncer) remoteFailed(op string, err error) bool {
	if circle.IsValidation(err) {
		s.logger.Debug(
			"remote rejected "+op,
			"error", err,
		)
		return true
	}
	if errors.Is(err, errNoRemote) {
		return false
	}
	if s.metrics != nil {
		s.metrics.remoteErrors.WithLabelValues(op).Inc()
	}
	s.logger.Warn(
		"remote "+op+" failed, using local mirror",
		"error", err,
	)
	return false
}

func (s *Syncer) fallback(op string) {
	if s.metrics != nil {
		s.metrics.fallbacks.WithLabelValues(op).Inc()
	}
}

// updateMirror applies fn to the mirror. Validation errors from fn are
// returned, anything else is logged
func (s *Syncer) updateMirror(op string, fn func(*mirror.State) error) error {
	err := s.mirror.Update(fn)
	if err == nil || circle.IsValidation(err) {
		return err
	}
	s.logger.Warn(
		"failed to update local mirror",
		"op", op,
		"error", err,
	)
	return nil
}

// ListCircles returns circles matching filter with aggregate stats
func (s *Syncer) ListCircles(ctx context.Context, filter circle.Filter) circle.List {
	filter = filter.Normalize()
	var list circle.List
	err := s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		var err error
		list, err = r.ListCircles(ctx, filter)
		return err
	})
	if err == nil {
		_ = s.updateMirror("ListCircles", func(st *mirror.State) error {
			for _, c := range list.Circles {
				st.UpsertCircle(c)
			}
			return nil
		})
		if list.Circles == nil {
			list.Circles = []circle.Circle{}
		}
		return list
	}
	s.remoteFailed("ListCircles", err)
	s.fallback("ListCircles")
	return s.localList(filter)
}

func (s *Syncer) localList(filter circle.Filter) circle.List {
	st := s.mirror.Load()
	all := slices.Clone(st.Circles)
	if len(all) == 0 && s.seed {
		all = seedCircles(s.now())
	}
	slices.SortStableFunc(all, func(a, b circle.Circle) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	circles := []circle.Circle{}
	counts := make(map[string]int)
	for _, c := range all {
		if !filter.Matches(c) {
			continue
		}
		if len(circles) >= filter.Limit {
			break
		}
		circles = append(circles, c)
		counts[c.ID] = cmp.Or(len(st.Members(c.ID)), int(c.MembersJoined))
	}
	return circle.List{
		Circles: circles,
		Stats:   circle.ComputeStats(circles, counts),
	}
}

// GetCircle returns a circle with its members. The boolean is false when
// neither the remote nor the mirror knows the circle
func (s *Syncer) GetCircle(ctx context.Context, circleID string) (circle.Detail, bool) {
	var detail circle.Detail
	err := s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		var err error
		detail, err = r.GetCircle(ctx, circleID)
		return err
	})
	if err == nil {
		_ = s.updateMirror("GetCircle", func(st *mirror.State) error {
			mergeDetail(st, detail)
			return nil
		})
		if detail.Members == nil {
			detail.Members = []circle.Member{}
		}
		return detail, true
	}
	if errors.Is(err, circle.ErrNotFound) {
		// The remote is authoritative about existence
		_ = s.updateMirror("GetCircle", func(st *mirror.State) error {
			st.RemoveCircle(circleID)
			return nil
		})
		return circle.Detail{}, false
	}
	s.remoteFailed("GetCircle", err)
	s.fallback("GetCircle")
	st := s.mirror.Load()
	if c, ok := st.Circle(circleID); ok {
		return localDetail(st, c), true
	}
	if s.seed {
		return seedDetail(circleID, s.now()), true
	}
	return circle.Detail{}, false
}

func mergeDetail(st *mirror.State, detail circle.Detail) {
	c := detail.Circle
	st.UpsertCircle(c)
	if len(detail.Members) == 0 {
		return
	}
	addresses := make([]string, 0, len(detail.Members))
	for _, m := range detail.Members {
		addresses = append(addresses, m.Address)
		for _, cycle := range m.ContributedCycles {
			if cycle < 0 || cycle > 255 {
				continue
			}
			st.AddContribution(mirror.Record{
				CircleID:      c.ID,
				MemberAddress: m.Address,
				Cycle:         uint8(cycle),
				Amount:        c.ContributionAmount,
			})
		}
	}
	st.SetMembers(c.ID, addresses)
}

func localDetail(st *mirror.State, c circle.Circle) circle.Detail {
	ret := circle.Detail{
		Circle:  c,
		Members: []circle.Member{},
	}
	for idx, address := range st.Members(c.ID) {
		ret.Members = append(ret.Members, circle.Member{
			Address:           address,
			JoinOrder:         uint8(min(idx+1, 255)), // #nosec G115
			TotalContributed:  st.Contributed(c.ID, address),
			HasReceivedPayout: st.ReceivedPayout(c.ID, address),
			Active:            true,
			ContributedCycles: st.ContributedCycles(c.ID, address),
		})
	}
	return ret
}

// CirclesForAddress returns the circles address created or joined
func (s *Syncer) CirclesForAddress(ctx context.Context, address string) []circle.Circle {
	var circles []circle.Circle
	err := s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		var err error
		circles, err = r.CirclesForAddress(ctx, address)
		return err
	})
	if err == nil {
		if len(circles) > 0 {
			_ = s.updateMirror("CirclesForAddress", func(st *mirror.State) error {
				for _, c := range circles {
					// Per-address flags are not part of the mirrored circle
					c.TotalContributed = 0
					c.IsYourTurn = false
					c.NeedsContribution = false
					st.UpsertCircle(c)
					st.AddMember(c.ID, address)
				}
				return nil
			})
		}
		if circles == nil {
			circles = []circle.Circle{}
		}
		return circles
	}
	s.remoteFailed("CirclesForAddress", err)
	s.fallback("CirclesForAddress")
	st := s.mirror.Load()
	ret := st.CirclesFor(address)
	for i := range ret {
		c := &ret[i]
		c.TotalContributed = st.Contributed(c.ID, address)
		if c.Status != circle.StatusActive {
			continue
		}
		joinOrder := slices.Index(st.Members(c.ID), address) + 1
		c.IsYourTurn = joinOrder == int(c.CurrentCycle) &&
			!st.ReceivedPayout(c.ID, address)
		c.NeedsContribution = !st.HasContribution(c.ID, address, c.CurrentCycle)
	}
	return ret
}
