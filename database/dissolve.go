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
	"strings"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database/models"
	"github.com/blinklabs-io/zkcircles/event"
	"gorm.io/gorm"
)

// DissolveCircle deletes a forming circle and everything recorded for it.
// Only the creator may dissolve a circle
func (d *Database) DissolveCircle(
	ctx context.Context,
	circleID string,
	requester string,
) (err error) {
	ctx, done := d.startOp(ctx, "DissolveCircle", circleID)
	defer func() { done(&err) }()
	if strings.TrimSpace(requester) == "" {
		return fmt.Errorf("%w: creator address required", circle.ErrInvalidState)
	}
	err = d.circleTxn(ctx, circleID, func(tx *gorm.DB) error {
		row, err := d.lockCircle(tx, circleID)
		if err != nil {
			return err
		}
		c := d.toCircle(row)
		if err := c.CheckDissolve(requester); err != nil {
			return err
		}
		for _, model := range []any{
			&models.Member{},
			&models.Contribution{},
			&models.Payout{},
		} {
			result := tx.Where("circle_id = ?", circleID).Delete(model)
			if result.Error != nil {
				return result.Error
			}
		}
		return tx.Delete(&models.Circle{}, row.ID).Error
	})
	if err != nil {
		return err
	}
	d.logger.Info(
		"circle dissolved",
		"component", "database",
		"circle_id", circleID,
	)
	d.publish(
		event.CircleDissolvedEventType,
		event.CircleEvent{CircleID: circleID},
	)
	return nil
}
