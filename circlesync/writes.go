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

package circlesync

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/mirror"
)

// Remote infrastructure failures never fail a write: the local mirror
// already holds the change. Validation errors from the remote are
// returned.

// CreateCircle records a new circle with its creator as first member. A
// circle that is already mirrored is left as it is
func (s *Syncer) CreateCircle(ctx context.Context, nc circle.NewCircle) error {
	if err := nc.Validate(); err != nil {
		return err
	}
	c := nc.Circle(s.now())
	_ = s.updateMirror("CreateCircle", func(st *mirror.State) error {
		if _, ok := st.Circle(c.ID); ok {
			return nil
		}
		st.UpsertCircle(c)
		st.AddMember(c.ID, c.Creator)
		return nil
	})
	err := s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		return r.CreateCircle(ctx, nc)
	})
	if err != nil && s.remoteFailed("CreateCircle", err) {
		return err
	}
	return nil
}

// AddMember records a member joining a circle and returns its join order.
// A mirrored circle must still have a free seat while forming. The remote
// assigns the join order when reachable
func (s *Syncer) AddMember(
	ctx context.Context,
	circleID string,
	nm circle.NewMember,
) (uint8, error) {
	if err := nm.Validate(); err != nil {
		return 0, err
	}
	var (
		joinOrder uint8
		added     bool
		prev      circle.Circle
		mirrored  bool
	)
	err := s.updateMirror("AddMember", func(st *mirror.State) error {
		c, ok := st.Circle(circleID)
		prev, mirrored = c, ok
		if !ok || st.IsMember(circleID, nm.MemberAddress) {
			added = st.AddMember(circleID, nm.MemberAddress)
			joinOrder = memberOrder(st, circleID, nm.MemberAddress)
			return nil
		}
		order, err := c.Join(uint64(s.now().UnixMilli())) // #nosec G115
		if err != nil {
			return err
		}
		added = st.AddMember(circleID, nm.MemberAddress)
		st.UpsertCircle(c)
		joinOrder = order
		return nil
	})
	if err != nil {
		return 0, err
	}
	err = s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		remoteOrder, err := r.AddMember(ctx, circleID, nm)
		if err != nil {
			return err
		}
		joinOrder = remoteOrder
		return nil
	})
	if err != nil && s.remoteFailed("AddMember", err) {
		// The remote refused the join, so the local seat is released
		_ = s.updateMirror("AddMember", func(st *mirror.State) error {
			if added {
				st.RemoveMember(circleID, nm.MemberAddress)
			}
			if mirrored {
				st.UpsertCircle(prev)
			}
			return nil
		})
		return 0, err
	}
	return joinOrder, nil
}

// memberOrder is the position of address in the mirrored membership list
func memberOrder(st *mirror.State, circleID string, address string) uint8 {
	idx := slices.Index(st.Members(circleID), address)
	return uint8(min(idx+1, 255)) // #nosec G115
}

// RecordContribution records a member's contribution for a cycle
func (s *Syncer) RecordContribution(ctx context.Context, rec circle.Contribution) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_ = s.updateMirror("RecordContribution", func(st *mirror.State) error {
		st.AddContribution(mirror.Record{
			CircleID:      rec.CircleID,
			MemberAddress: rec.MemberAddress,
			Cycle:         rec.Cycle,
			Amount:        rec.Amount,
		})
		return nil
	})
	err := s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		return r.RecordContribution(ctx, rec)
	})
	if err != nil && s.remoteFailed("RecordContribution", err) {
		return err
	}
	return nil
}

// RecordPayout records the payout of a cycle. A newly mirrored payout for
// the current cycle advances the mirrored circle
func (s *Syncer) RecordPayout(ctx context.Context, rec circle.Payout) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_ = s.updateMirror("RecordPayout", func(st *mirror.State) error {
		added := st.AddPayout(mirror.Record{
			CircleID:      rec.CircleID,
			MemberAddress: rec.MemberAddress,
			Cycle:         rec.Cycle,
			Amount:        rec.Amount,
		})
		c, ok := st.Circle(rec.CircleID)
		if !added || !ok {
			return nil
		}
		if c.Status == circle.StatusActive && c.CurrentCycle == rec.Cycle {
			c.AdvanceCycle()
			st.UpsertCircle(c)
		}
		return nil
	})
	err := s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		return r.RecordPayout(ctx, rec)
	})
	if err != nil && s.remoteFailed("RecordPayout", err) {
		return err
	}
	return nil
}

// DissolveCircle deletes a forming circle on behalf of its creator. A
// mirrored circle is checked before anything is removed
func (s *Syncer) DissolveCircle(
	ctx context.Context,
	circleID string,
	requester string,
) error {
	if strings.TrimSpace(requester) == "" {
		return fmt.Errorf("%w: creator address required", circle.ErrInvalidState)
	}
	if c, ok := s.mirror.Load().Circle(circleID); ok {
		if err := c.CheckDissolve(requester); err != nil {
			return err
		}
	}
	_ = s.updateMirror("DissolveCircle", func(st *mirror.State) error {
		st.RemoveCircle(circleID)
		return nil
	})
	err := s.callRemote(ctx, func(ctx context.Context, r Remote) error {
		return r.DissolveCircle(ctx, circleID, requester)
	})
	if err != nil && s.remoteFailed("DissolveCircle", err) {
		return err
	}
	return nil
}
