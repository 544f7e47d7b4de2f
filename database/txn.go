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
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// circleTxn runs fn inside one database transaction while holding the
// in-process lock for circleID. Inside fn every query must go through tx:
// the sqlite store has a single connection
func (d *Database) circleTxn(
	ctx context.Context,
	circleID string,
	fn func(tx *gorm.DB) error,
) error {
	unlock := d.locks.Lock(circleID)
	defer unlock()
	return translateError(
		d.metadata.DB().WithContext(ctx).Transaction(fn),
	)
}

// lockCircle loads a circle row for update
func (d *Database) lockCircle(
	tx *gorm.DB,
	circleID string,
) (models.Circle, error) {
	var row models.Circle
	q := tx
	if d.metadata.SupportsRowLocks() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	result := q.Where("circle_id = ?", circleID).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return row, fmt.Errorf(
				"%w: circle %s",
				circle.ErrNotFound,
				circleID,
			)
		}
		return row, result.Error
	}
	return row, nil
}

// updateCircleState writes the mutable state of c, but only if the row still
// holds the state it was read with
func updateCircleState(
	tx *gorm.DB,
	row models.Circle,
	c circle.Circle,
) error {
	result := tx.Model(&models.Circle{}).
		Where(
			"id = ? AND status = ? AND current_cycle = ? AND members_joined = ?",
			row.ID,
			row.Status,
			row.CurrentCycle,
			row.MembersJoined,
		).
		Updates(map[string]any{
			"status":         uint8(c.Status),
			"current_cycle":  c.CurrentCycle,
			"members_joined": c.MembersJoined,
			"start_block":    c.StartBlock,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf(
			"%w: circle %s changed while updating",
			circle.ErrConflict,
			c.ID,
		)
	}
	return nil
}

// findMember resolves a plaintext address to its member row
func (d *Database) findMember(
	tx *gorm.DB,
	circleID string,
	address string,
) (models.Member, error) {
	var members []models.Member
	if result := tx.Where("circle_id = ?", circleID).Find(&members); result.Error != nil {
		return models.Member{}, result.Error
	}
	for _, m := range members {
		if d.codec.Equal(m.MemberAddress, address) {
			return m, nil
		}
	}
	return models.Member{}, fmt.Errorf(
		"%w: address is not a member of circle %s",
		circle.ErrNotFound,
		circleID,
	)
}

func countMembers(tx *gorm.DB, circleID string) (int, error) {
	var count int64
	result := tx.Model(&models.Member{}).
		Where("circle_id = ?", circleID).
		Count(&count)
	return int(count), result.Error
}

// translateError maps unique constraint violations onto circle.ErrDuplicate
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", circle.ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
