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

package models

import "time"

// Member is a seat in a circle. The (circle, join order) pair is unique so
// two concurrent joins can never be stored with the same position.
type Member struct {
	CreatedAt         time.Time
	CircleID          string `gorm:"size:255;not null;uniqueIndex:idx_member_circle_join_order,priority:1"`
	MemberAddress     string `gorm:"size:1024;not null"`
	Salt              string `gorm:"size:255"`
	TransactionID     string `gorm:"size:255"`
	ID                uint   `gorm:"primarykey"`
	TotalContributed  uint64
	JoinOrder         uint8 `gorm:"uniqueIndex:idx_member_circle_join_order,priority:2"`
	HasReceivedPayout bool
	Active            bool
}

func (Member) TableName() string {
	return "member"
}

// Contribution is a member payment for one cycle. A member contributes at
// most once per cycle.
type Contribution struct {
	CreatedAt     time.Time
	CircleID      string `gorm:"size:255;not null;uniqueIndex:idx_contribution_member_cycle,priority:1"`
	MemberAddress string `gorm:"size:1024;not null"`
	TransactionID string `gorm:"size:255"`
	ID            uint   `gorm:"primarykey"`
	MemberID      uint   `gorm:"uniqueIndex:idx_contribution_member_cycle,priority:2"`
	Amount        uint64
	Cycle         uint8 `gorm:"uniqueIndex:idx_contribution_member_cycle,priority:3"`
}

func (Contribution) TableName() string {
	return "contribution"
}

// Payout is the pot distribution for one cycle of a circle
type Payout struct {
	CreatedAt     time.Time
	CircleID      string `gorm:"size:255;not null;uniqueIndex:idx_payout_circle_cycle,priority:1"`
	MemberAddress string `gorm:"size:1024;not null"`
	TransactionID string `gorm:"size:255"`
	ID            uint   `gorm:"primarykey"`
	MemberID      uint   `gorm:"index"`
	Amount        uint64
	Cycle         uint8 `gorm:"uniqueIndex:idx_payout_circle_cycle,priority:2"`
}

func (Payout) TableName() string {
	return "payout"
}
