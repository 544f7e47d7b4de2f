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
	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database/models"
	"gorm.io/gorm"
)

// reconcile repairs membersJoined from the actual member rows and activates
// a forming circle that is already full. Repairs are written back before
// the circle is returned
func (d *Database) reconcile(
	tx *gorm.DB,
	row models.Circle,
) (circle.Circle, bool, error) {
	c := d.toCircle(row)
	actual, err := countMembers(tx, row.CircleID)
	if err != nil {
		return c, false, err
	}
	before := c
	if !c.Reconcile(actual, d.nowMillis()) {
		return c, false, nil
	}
	if err := updateCircleState(tx, row, c); err != nil {
		return c, false, err
	}
	d.logger.Info(
		"repaired circle counters",
		"component", "database",
		"circle_id", c.ID,
		"members_joined_before", before.MembersJoined,
		"members_joined", c.MembersJoined,
		"status_before", before.Status.String(),
		"status", c.Status.String(),
	)
	if d.metrics != nil {
		d.metrics.repairsTotal.Inc()
	}
	return c, true, nil
}
