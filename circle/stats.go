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

package circle

// Stats are the aggregate figures returned with a circle listing
type Stats struct {
	TotalCircles     int    `json:"totalCircles"`
	ActiveMembers    int    `json:"activeMembers"`
	TotalVolume      uint64 `json:"totalVolume"`
	CompletedCircles int    `json:"completedCircles"`
}

// ComputeStats derives listing stats from the listed circles and the actual
// member count of every known circle. Circles without a member count fall
// back to their membersJoined counter.
func ComputeStats(circles []Circle, memberCounts map[string]int) Stats {
	ret := Stats{
		TotalCircles: len(circles),
	}
	for _, count := range memberCounts {
		ret.ActiveMembers += count
	}
	for _, c := range circles {
		members, ok := memberCounts[c.ID]
		if !ok || members == 0 {
			members = int(c.MembersJoined)
		}
		cycles := max(uint64(c.CurrentCycle), 1)
		ret.TotalVolume += c.ContributionAmount * uint64(members) * cycles // #nosec G115
		if c.Status == StatusCompleted {
			ret.CompletedCircles++
		}
	}
	return ret
}

// MemberCounts returns the membersJoined counter of each circle keyed by id
func MemberCounts(circles []Circle) map[string]int {
	ret := make(map[string]int, len(circles))
	for _, c := range circles {
		ret[c.ID] = int(c.MembersJoined)
	}
	return ret
}
