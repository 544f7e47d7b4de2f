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

package database

import (
	"context"
	"strings"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database/models"
)

// CirclesForAddress returns the circles an address created or joined,
// newest first, with the address's standing in each. Addresses are stored
// encrypted with a random nonce, so every row is decrypted and compared
func (d *Database) CirclesForAddress(
	ctx context.Context,
	address string,
) (ret []circle.Circle, err error) {
	ctx, done := d.startOp(ctx, "CirclesForAddress", "")
	defer func() { done(&err) }()
	ret = []circle.Circle{}
	if strings.TrimSpace(address) == "" {
		return ret, nil
	}
	db := d.metadata.DB().WithContext(ctx)
	var rows []models.Circle
	if result := db.Order("created_at DESC").Order("id DESC").Find(&rows); result.Error != nil {
		return nil, result.Error
	}
	var members []models.Member
	if result := db.Find(&members); result.Error != nil {
		return nil, result.Error
	}
	memberships := make(map[string]models.Member)
	for _, m := range members {
		if d.codec.Equal(m.MemberAddress, address) {
			memberships[m.CircleID] = m
		}
	}
	contributed, err := d.contributedCycles(ctx, memberships)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		member, isMember := memberships[row.CircleID]
		if !isMember && !d.codec.Equal(row.Creator, address) {
			continue
		}
		c := d.toCircle(row)
		if isMember {
			c.TotalContributed = member.TotalContributed
			if c.Status == circle.StatusActive {
				c.IsYourTurn = member.JoinOrder == c.CurrentCycle &&
					!member.HasReceivedPayout
				c.NeedsContribution = !contributed[member.ID][c.CurrentCycle]
			}
		}
		ret = append(ret, c)
	}
	return ret, nil
}

// contributedCycles returns the cycles each member row has contributed to
func (d *Database) contributedCycles(
	ctx context.Context,
	memberships map[string]models.Member,
) (map[uint]map[uint8]bool, error) {
	ret := make(map[uint]map[uint8]bool, len(memberships))
	if len(memberships) == 0 {
		return ret, nil
	}
	ids := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ID)
	}
	var rows []models.Contribution
	result := d.metadata.DB().WithContext(ctx).
		Where("member_id IN ?", ids).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	for _, row := range rows {
		if ret[row.MemberID] == nil {
			ret[row.MemberID] = make(map[uint8]bool)
		}
		ret[row.MemberID][row.Cycle] = true
	}
	return ret, nil
}
