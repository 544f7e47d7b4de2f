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

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/event"
	"gorm.io/gorm"
)

// AddMember records a join accepted on-chain and returns the member's join
// order. Filling the last seat activates the circle
func (d *Database) AddMember(
	ctx context.Context,
	circleID string,
	nm circle.NewMember,
) (joinOrder uint8, err error) {
	ctx, done := d.startOp(ctx, "AddMember", circleID)
	defer func() { done(&err) }()
	if err := nm.Validate(); err != nil {
		return 0, err
	}
	var c circle.Circle
	err = d.circleTxn(ctx, circleID, func(tx *gorm.DB) error {
		row, err := d.lockCircle(tx, circleID)
		if err != nil {
			return err
		}
		_, err = d.findMember(tx, circleID, nm.MemberAddress)
		if err == nil {
			return fmt.Errorf(
				"%w: address already joined circle %s",
				circle.ErrInvalidState,
				circleID,
			)
		}
		if !errors.Is(err, circle.ErrNotFound) {
			return err
		}
		c = d.toCircle(row)
		// The next seat follows the member rows, not a drifted counter
		actual, err := countMembers(tx, circleID)
		if err != nil {
			return err
		}
		c.MembersJoined = uint8(min(actual, 255)) // #nosec G115
		joinOrder, err = c.Join(d.nowMillis())
		if err != nil {
			return err
		}
		member, err := d.memberModel(
			circleID,
			nm.MemberAddress,
			joinOrder,
			nm.Salt,
			nm.TransactionID,
		)
		if err != nil {
			return err
		}
		if result := tx.Create(&member); result.Error != nil {
			return result.Error
		}
		return updateCircleState(tx, row, c)
	})
	if err != nil {
		return 0, err
	}
	d.publish(
		event.MemberJoinedEventType,
		event.CircleEvent{
			CircleID:      circleID,
			JoinOrder:     joinOrder,
			MembersJoined: c.MembersJoined,
		},
	)
	if c.Status == circle.StatusActive {
		d.logger.Info(
			"circle activated",
			"component", "database",
			"circle_id", circleID,
			"members", c.MembersJoined,
		)
		d.publish(
			event.CircleActivatedEventType,
			event.CircleEvent{
				CircleID:      circleID,
				Cycle:         c.CurrentCycle,
				MembersJoined: c.MembersJoined,
			},
		)
	}
	return joinOrder, nil
}
