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

package circlesync

import (
	"time"

	"github.com/blinklabs-io/zkcircles/circle"
)

const day = 24 * time.Hour

// seedCircles are shown by the fallback listing when the mirror is empty
func seedCircles(now time.Time) []circle.Circle {
	return []circle.Circle{
		{
			ID:                  "123456789012345678901234567890123456789012345678901234567890field",
			Name:                "Neighborhood Fund",
			Creator:             "aleo1abc...xyz",
			ContributionAmount:  10_000_000,
			MaxMembers:          6,
			CycleDurationBlocks: 168_000,
			TotalCycles:         6,
			Status:              circle.StatusForming,
			MembersJoined:       3,
			CreatedAt:           now,
		},
		{
			ID:                  "234567890123456789012345678901234567890123456789012345678901field",
			Name:                "Family Savings",
			Creator:             "aleo1def...uvw",
			ContributionAmount:  5_000_000,
			MaxMembers:          4,
			CycleDurationBlocks: 24_000,
			TotalCycles:         4,
			Status:              circle.StatusActive,
			CurrentCycle:        2,
			MembersJoined:       4,
			CreatedAt:           now.Add(-5 * day),
		},
		{
			ID:                  "345678901234567890123456789012345678901234567890123456789012field",
			Name:                "Community Investment",
			Creator:             "aleo1ghi...rst",
			ContributionAmount:  25_000_000,
			MaxMembers:          8,
			CycleDurationBlocks: 672_000,
			TotalCycles:         8,
			Status:              circle.StatusActive,
			CurrentCycle:        5,
			MembersJoined:       8,
			CreatedAt:           now.Add(-90 * day),
		},
	}
}

// seedDetail is the last resort answer for a circle nobody knows about
func seedDetail(circleID string, now time.Time) circle.Detail {
	for _, c := range seedCircles(now) {
		if c.ID == circleID {
			return circle.Detail{
				Circle:  c,
				Members: []circle.Member{},
			}
		}
	}
	startBlock := uint64(100_000)
	members := []struct {
		address     string
		contributed uint64
		paid        bool
	}{
		{"aleo1abc123def456ghi789jkl012mno345pqr678stu901vwx234yz567ab", 30_000_000, true},
		{"aleo1def456ghi789jkl012mno345pqr678stu901vwx234yz567abc123de", 30_000_000, true},
		{"aleo1ghi789jkl012mno345pqr678stu901vwx234yz567abc123def456gh", 30_000_000, false},
		{"aleo1jkl012mno345pqr678stu901vwx234yz567abc123def456ghi789jk", 20_000_000, false},
		{"aleo1mno345pqr678stu901vwx234yz567abc123def456ghi789jkl012mn", 20_000_000, false},
		{"aleo1pqr678stu901vwx234yz567abc123def456ghi789jkl012mno345pq", 20_000_000, false},
	}
	ret := circle.Detail{
		Circle: circle.Circle{
			ID:                  circleID,
			Name:                "Sample Circle",
			Creator:             members[0].address,
			ContributionAmount:  10_000_000,
			MaxMembers:          6,
			CycleDurationBlocks: 168_000,
			TotalCycles:         6,
			Status:              circle.StatusActive,
			CurrentCycle:        3,
			MembersJoined:       6,
			StartBlock:          &startBlock,
			CreatedAt:           now.Add(-14 * day),
		},
	}
	for i, m := range members {
		ret.Members = append(ret.Members, circle.Member{
			Address:           m.address,
			JoinOrder:         uint8(i + 1), // #nosec G115
			TotalContributed:  m.contributed,
			HasReceivedPayout: m.paid,
			Active:            true,
		})
	}
	return ret
}
