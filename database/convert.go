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
	"fmt"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database/models"
)

func (d *Database) toCircle(row models.Circle) circle.Circle {
	return circle.Circle{
		ID:                  row.CircleID,
		Name:                d.codec.Decrypt(row.Name),
		NameHash:            row.NameHash,
		Creator:             d.codec.Decrypt(row.Creator),
		ContributionAmount:  row.ContributionAmount,
		MaxMembers:          row.MaxMembers,
		CycleDurationBlocks: row.CycleDurationBlocks,
		TotalCycles:         row.TotalCycles,
		Status:              circle.Status(row.Status),
		CurrentCycle:        row.CurrentCycle,
		MembersJoined:       row.MembersJoined,
		StartBlock:          row.StartBlock,
		CreatedAt:           row.CreatedAt,
	}
}

func (d *Database) toMember(row models.Member) circle.Member {
	return circle.Member{
		Address:           d.codec.Decrypt(row.MemberAddress),
		JoinOrder:         row.JoinOrder,
		TotalContributed:  row.TotalContributed,
		HasReceivedPayout: row.HasReceivedPayout,
		Active:            row.Active,
	}
}

func (d *Database) circleModel(
	c circle.Circle,
	salt string,
	txID string,
) (models.Circle, error) {
	name, err := d.codec.Encrypt(c.Name)
	if err != nil {
		return models.Circle{}, fmt.Errorf("encrypt name: %w", err)
	}
	creator, err := d.codec.Encrypt(c.Creator)
	if err != nil {
		return models.Circle{}, fmt.Errorf("encrypt creator: %w", err)
	}
	return models.Circle{
		CircleID:            c.ID,
		Name:                name,
		NameHash:            c.NameHash,
		Creator:             creator,
		ContributionAmount:  c.ContributionAmount,
		MaxMembers:          c.MaxMembers,
		CycleDurationBlocks: c.CycleDurationBlocks,
		TotalCycles:         c.TotalCycles,
		Status:              uint8(c.Status),
		CurrentCycle:        c.CurrentCycle,
		MembersJoined:       c.MembersJoined,
		StartBlock:          c.StartBlock,
		Salt:                salt,
		TransactionID:       txID,
		CreatedAt:           c.CreatedAt,
	}, nil
}

func (d *Database) memberModel(
	circleID string,
	address string,
	joinOrder uint8,
	salt string,
	txID string,
) (models.Member, error) {
	encAddress, err := d.codec.Encrypt(address)
	if err != nil {
		return models.Member{}, fmt.Errorf("encrypt member address: %w", err)
	}
	return models.Member{
		CircleID:      circleID,
		MemberAddress: encAddress,
		JoinOrder:     joinOrder,
		Active:        true,
		Salt:          salt,
		TransactionID: txID,
	}, nil
}
