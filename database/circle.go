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
	"fmt"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database/models"
	"github.com/blinklabs-io/zkcircles/event"
	"gorm.io/gorm"
)

// ListCircles returns circles newest first along with aggregate stats
func (d *Database) ListCircles(
	ctx context.Context,
	filter circle.Filter,
) (ret circle.List, err error) {
	ctx, done := d.startOp(ctx, "ListCircles", "")
	defer func() { done(&err) }()
	filter = filter.Normalize()
	db := d.metadata.DB().WithContext(ctx)
	var rows []models.Circle
	q := db.Order("created_at DESC").Order("id DESC").Limit(filter.Limit)
	if filter.Status != nil {
		q = q.Where("status = ?", uint8(*filter.Status))
	}
	if result := q.Find(&rows); result.Error != nil {
		return ret, result.Error
	}
	memberCounts, err := memberCountsByCircle(db)
	if err != nil {
		return ret, err
	}
	ret.Circles = make([]circle.Circle, 0, len(rows))
	for _, row := range rows {
		c := d.toCircle(row)
		// Report actual member rows rather than the stored counter
		if count := memberCounts[c.ID]; count > 0 {
			c.MembersJoined = uint8(min(count, 255)) // #nosec G115
		}
		ret.Circles = append(ret.Circles, c)
	}
	ret.Stats = circle.ComputeStats(ret.Circles, memberCounts)
	return ret, nil
}

func memberCountsByCircle(db *gorm.DB) (map[string]int, error) {
	var counts []struct {
		CircleID string
		Count    int
	}
	result := db.Model(&models.Member{}).
		Select("circle_id, count(*) AS count").
		Group("circle_id").
		Scan(&counts)
	if result.Error != nil {
		return nil, result.Error
	}
	ret := make(map[string]int, len(counts))
	for _, c := range counts {
		ret[c.CircleID] = c.Count
	}
	return ret, nil
}

// GetCircle returns a circle with its members. Drifted counters are
// repaired and persisted before returning
func (d *Database) GetCircle(
	ctx context.Context,
	circleID string,
) (ret circle.Detail, err error) {
	ctx, done := d.startOp(ctx, "GetCircle", circleID)
	defer func() { done(&err) }()
	var repaired bool
	err = d.circleTxn(ctx, circleID, func(tx *gorm.DB) error {
		row, err := d.lockCircle(tx, circleID)
		if err != nil {
			return err
		}
		var c circle.Circle
		c, repaired, err = d.reconcile(tx, row)
		if err != nil {
			return err
		}
		members, err := d.circleMembers(tx, circleID)
		if err != nil {
			return err
		}
		ret = circle.Detail{
			Circle:  c,
			Members: members,
		}
		return nil
	})
	if err != nil {
		return circle.Detail{}, err
	}
	if repaired {
		d.publish(
			event.CircleReconciledEventType,
			event.CircleEvent{
				CircleID:      circleID,
				Cycle:         ret.Circle.CurrentCycle,
				MembersJoined: ret.Circle.MembersJoined,
			},
		)
	}
	return ret, nil
}

// circleMembers returns the members ordered by join order, each with the
// cycles it has contributed to
func (d *Database) circleMembers(
	tx *gorm.DB,
	circleID string,
) ([]circle.Member, error) {
	var rows []models.Member
	result := tx.Where("circle_id = ?", circleID).
		Order("join_order ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	var contributions []models.Contribution
	result = tx.Where("circle_id = ?", circleID).
		Order("cycle ASC").
		Find(&contributions)
	if result.Error != nil {
		return nil, result.Error
	}
	cycles := make(map[string][]int)
	for _, c := range contributions {
		addr := d.codec.Decrypt(c.MemberAddress)
		cycles[addr] = append(cycles[addr], int(c.Cycle))
	}
	ret := make([]circle.Member, 0, len(rows))
	for _, row := range rows {
		m := d.toMember(row)
		m.ContributedCycles = cycles[m.Address]
		ret = append(ret, m)
	}
	return ret, nil
}

// CreateCircle stores a circle created on-chain with its creator as the
// first member
func (d *Database) CreateCircle(
	ctx context.Context,
	nc circle.NewCircle,
) (err error) {
	ctx, done := d.startOp(ctx, "CreateCircle", nc.CircleID)
	defer func() { done(&err) }()
	if err := nc.Validate(); err != nil {
		return err
	}
	c := nc.Circle(d.now())
	err = d.circleTxn(ctx, nc.CircleID, func(tx *gorm.DB) error {
		var existing int64
		result := tx.Model(&models.Circle{}).
			Where("circle_id = ?", nc.CircleID).
			Count(&existing)
		if result.Error != nil {
			return result.Error
		}
		if existing > 0 {
			return fmt.Errorf(
				"%w: circle %s already exists",
				circle.ErrDuplicate,
				nc.CircleID,
			)
		}
		row, err := d.circleModel(c, nc.Salt, nc.TransactionID)
		if err != nil {
			return err
		}
		if result := tx.Create(&row); result.Error != nil {
			return result.Error
		}
		member, err := d.memberModel(c.ID, c.Creator, 1, nc.Salt, nc.TransactionID)
		if err != nil {
			return err
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return err
	}
	d.logger.Info(
		"circle created",
		"component", "database",
		"circle_id", c.ID,
		"max_members", c.MaxMembers,
	)
	d.publish(
		event.CircleCreatedEventType,
		event.CircleEvent{
			CircleID:      c.ID,
			MembersJoined: c.MembersJoined,
			Amount:        c.ContributionAmount,
		},
	)
	return nil
}
