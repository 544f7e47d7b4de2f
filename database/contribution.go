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

// RecordContribution stores a member's contribution for a cycle and adds it
// to the member's running total
func (d *Database) RecordContribution(
	ctx context.Context,
	rec circle.Contribution,
) (err error) {
	ctx, done := d.startOp(ctx, "RecordContribution", rec.CircleID)
	defer func() { done(&err) }()
	if err := rec.Validate(); err != nil {
		return err
	}
	err = d.circleTxn(ctx, rec.CircleID, func(tx *gorm.DB) error {
		if _, err := d.lockCircle(tx, rec.CircleID); err != nil {
			return err
		}
		member, err := d.findMember(tx, rec.CircleID, rec.MemberAddress)
		if err != nil {
			return err
		}
		var existing int64
		result := tx.Model(&models.Contribution{}).
			Where(
				"circle_id = ? AND member_id = ? AND cycle = ?",
				rec.CircleID,
				member.ID,
				rec.Cycle,
			).
			Count(&existing)
		if result.Error != nil {
			return result.Error
		}
		if existing > 0 {
			return fmt.Errorf(
				"%w: contribution for cycle %d already recorded",
				circle.ErrDuplicate,
				rec.Cycle,
			)
		}
		encAddress, err := d.codec.Encrypt(rec.MemberAddress)
		if err != nil {
			return fmt.Errorf("encrypt member address: %w", err)
		}
		contribution := models.Contribution{
			CircleID:      rec.CircleID,
			MemberID:      member.ID,
			MemberAddress: encAddress,
			Cycle:         rec.Cycle,
			Amount:        rec.Amount,
			TransactionID: rec.TransactionID,
		}
		if result := tx.Create(&contribution); result.Error != nil {
			return result.Error
		}
		return tx.Model(&models.Member{}).
			Where("id = ?", member.ID).
			Update(
				"total_contributed",
				gorm.Expr("total_contributed + ?", rec.Amount),
			).Error
	})
	if err != nil {
		return err
	}
	d.publish(
		event.ContributionEventType,
		event.CircleEvent{
			CircleID: rec.CircleID,
			Cycle:    rec.Cycle,
			Amount:   rec.Amount,
		},
	)
	return nil
}
