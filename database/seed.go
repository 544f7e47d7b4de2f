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
	"time"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database/models"
	"gorm.io/gorm"
)

const (
	MockCircleForming = "mock_circle_1"
	MockCircleActive  = "mock_circle_2"
)

type mockMember struct {
	address     string
	contributed uint64
	paid        bool
}

type mockCircle struct {
	circle  circle.Circle
	members []mockMember
}

func mockCircles(now time.Time) []mockCircle {
	weekAgo := now.Add(-7 * 24 * time.Hour)
	startBlock := uint64(weekAgo.UnixMilli()) // #nosec G115
	return []mockCircle{
		{
			circle: circle.Circle{
				ID:                  MockCircleForming,
				Name:                "Community Savings Pool",
				Creator:             "aleo1mock...abc",
				ContributionAmount:  10000000,
				MaxMembers:          6,
				CycleDurationBlocks: 168000,
				TotalCycles:         6,
				Status:              circle.StatusForming,
				MembersJoined:       2,
				CreatedAt:           now,
			},
			members: []mockMember{
				{address: "aleo1mock...abc"},
				{address: "aleo1mock...def"},
			},
		},
		{
			circle: circle.Circle{
				ID:                  MockCircleActive,
				Name:                "Weekly Tanda",
				Creator:             "aleo1mock...def",
				ContributionAmount:  5000000,
				MaxMembers:          4,
				CycleDurationBlocks: 168000,
				TotalCycles:         4,
				Status:              circle.StatusActive,
				CurrentCycle:        2,
				MembersJoined:       4,
				StartBlock:          &startBlock,
				CreatedAt:           weekAgo,
			},
			members: []mockMember{
				{address: "aleo1mock...def", contributed: 5000000, paid: true},
				{address: "aleo1mock...abc", contributed: 5000000},
				{address: "aleo1mock...ghi", contributed: 5000000},
				{address: "aleo1mock...jkl", contributed: 5000000},
			},
		},
	}
}

// seedMockData fills an empty store with example circles whose counters
// match their member, contribution and payout rows
func (d *Database) seedMockData() error {
	return d.metadata.DB().Transaction(func(tx *gorm.DB) error {
		var count int64
		if result := tx.Model(&models.Circle{}).Count(&count); result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return nil
		}
		for _, mc := range mockCircles(d.now()) {
			if err := d.seedCircle(tx, mc); err != nil {
				return err
			}
		}
		d.logger.Info(
			"seeded mock circles",
			"component", "database",
		)
		return nil
	})
}

func (d *Database) seedCircle(tx *gorm.DB, mc mockCircle) error {
	row, err := d.circleModel(mc.circle, "", "")
	if err != nil {
		return err
	}
	if result := tx.Create(&row); result.Error != nil {
		return result.Error
	}
	for i, mm := range mc.members {
		member, err := d.memberModel(row.CircleID, mm.address, uint8(i+1), "", "") // #nosec G115
		if err != nil {
			return err
		}
		member.TotalContributed = mm.contributed
		member.HasReceivedPayout = mm.paid
		if result := tx.Create(&member); result.Error != nil {
			return result.Error
		}
		if mm.contributed > 0 {
			contribution := models.Contribution{
				CircleID:      row.CircleID,
				MemberID:      member.ID,
				MemberAddress: member.MemberAddress,
				Cycle:         1,
				Amount:        mm.contributed,
			}
			if result := tx.Create(&contribution); result.Error != nil {
				return result.Error
			}
		}
		if mm.paid {
			payout := models.Payout{
				CircleID:      row.CircleID,
				MemberID:      member.ID,
				MemberAddress: member.MemberAddress,
				Cycle:         1,
				Amount:        mc.circle.ContributionAmount * uint64(mc.circle.MaxMembers),
			}
			if result := tx.Create(&payout); result.Error != nil {
				return result.Error
			}
		}
	}
	return nil
}
