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

// RecordPayout stores the payout of a cycle, marks the recipient as paid
// and advances the circle to its next cycle, completing it after the last
func (d *Database) RecordPayout(
	ctx context.Context,
	rec circle.Payout,
) (err error) {
	ctx, done := d.startOp(ctx, "RecordPayout", rec.CircleID)
	defer func() { done(&err) }()
	if err := rec.Validate(); err != nil {
		return err
	}
	var c circle.Circle
	err = d.circleTxn(ctx, rec.CircleID, func(tx *gorm.DB) error {
		row, err := d.lockCircle(tx, rec.CircleID)
		if err != nil {
			return err
		}
		c = d.toCircle(row)
		if c.Status != circle.StatusActive {
			return fmt.Errorf(
				"%w: circle %s is %s",
				circle.ErrInvalidState,
				c.ID,
				c.Status,
			)
		}
		member, err := d.findMember(tx, rec.CircleID, rec.MemberAddress)
		if err != nil {
			return err
		}
		var existing int64
		result := tx.Model(&models.Payout{}).
			Where("circle_id = ? AND cycle = ?", rec.CircleID, rec.Cycle).
			Count(&existing)
		if result.Error != nil {
			return result.Error
		}
		if existing > 0 {
			return fmt.Errorf(
				"%w: payout for cycle %d already recorded",
				circle.ErrDuplicate,
				rec.Cycle,
			)
		}
		if err := checkPayoutTurn(c, member, rec); err != nil {
			return err
		}
		encAddress, err := d.codec.Encrypt(rec.MemberAddress)
		if err != nil {
			return fmt.Errorf("encrypt member address: %w", err)
		}
		payout := models.Payout{
			CircleID:      rec.CircleID,
			MemberID:      member.ID,
			MemberAddress: encAddress,
			Cycle:         rec.Cycle,
			Amount:        rec.Amount,
			TransactionID: rec.TransactionID,
		}
		if result := tx.Create(&payout); result.Error != nil {
			return result.Error
		}
		result = tx.Model(&models.Member{}).
			Where("id = ?", member.ID).
			Update("has_received_payout", true)
		if result.Error != nil {
			return result.Error
		}
		c.AdvanceCycle()
		return updateCircleState(tx, row, c)
	})
	if err != nil {
		return err
	}
	d.publish(
		event.PayoutEventType,
		event.CircleEvent{
			CircleID: rec.CircleID,
			Cycle:    rec.Cycle,
			Amount:   rec.Amount,
		},
	)
	if c.Status == circle.StatusCompleted {
		d.logger.Info(
			"circle completed",
			"component", "database",
			"circle_id", rec.CircleID,
		)
		d.publish(
			event.CircleCompletedEventType,
			event.CircleEvent{
				CircleID: rec.CircleID,
				Cycle:    c.CurrentCycle,
			},
		)
	}
	return nil
}

// checkPayoutTurn enforces that payouts follow join order, one cycle at a
// time, and that nobody is paid twice
func checkPayoutTurn(c circle.Circle, member models.Member, rec circle.Payout) error {
	switch {
	case rec.Cycle != c.CurrentCycle:
		return fmt.Errorf(
			"%w: circle %s is in cycle %d, not %d",
			circle.ErrInvalidState,
			c.ID,
			c.CurrentCycle,
			rec.Cycle,
		)
	case member.JoinOrder != c.CurrentCycle:
		return fmt.Errorf(
			"%w: cycle %d pays join order %d, not %d",
			circle.ErrInvalidState,
			c.CurrentCycle,
			c.CurrentCycle,
			member.JoinOrder,
		)
	case member.HasReceivedPayout:
		return fmt.Errorf(
			"%w: member already received a payout",
			circle.ErrInvalidState,
		)
	}
	return nil
}
