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

package mirror

import (
	"slices"

	"github.com/blinklabs-io/zkcircles/circle"
)

// Record is a mirrored contribution or payout
type Record struct {
	CircleID      string `json:"circleId"`
	MemberAddress string `json:"memberAddress"`
	Cycle         uint8  `json:"cycle"`
	Amount        uint64 `json:"amount"`
}

// State is everything the mirror keeps for one client
type State struct {
	Circles       []circle.Circle     `json:"circles"`
	Memberships   map[string][]string `json:"memberships"`
	Contributions []Record            `json:"contributions"`
	Payouts       []Record            `json:"payouts"`
}

// NewState returns an empty, well-formed state
func NewState() *State {
	s := &State{}
	s.normalize()
	return s
}

// normalize replaces missing collections with empty ones
func (s *State) normalize() {
	if s.Circles == nil {
		s.Circles = []circle.Circle{}
	}
	if s.Memberships == nil {
		s.Memberships = make(map[string][]string)
	}
	if s.Contributions == nil {
		s.Contributions = []Record{}
	}
	if s.Payouts == nil {
		s.Payouts = []Record{}
	}
}

func (s *State) circleIndex(circleID string) int {
	return slices.IndexFunc(s.Circles, func(c circle.Circle) bool {
		return c.ID == circleID
	})
}

// Circle returns the mirrored circle with the given id
func (s *State) Circle(circleID string) (circle.Circle, bool) {
	idx := s.circleIndex(circleID)
	if idx < 0 {
		return circle.Circle{}, false
	}
	return s.Circles[idx], true
}

// UpsertCircle replaces the mirrored circle with the same id or appends c
func (s *State) UpsertCircle(c circle.Circle) {
	if idx := s.circleIndex(c.ID); idx >= 0 {
		s.Circles[idx] = c
		return
	}
	s.Circles = append(s.Circles, c)
}

// RemoveCircle drops a circle with its membership list, contributions and
// payouts
func (s *State) RemoveCircle(circleID string) {
	if idx := s.circleIndex(circleID); idx >= 0 {
		s.Circles = slices.Delete(s.Circles, idx, idx+1)
	}
	delete(s.Memberships, circleID)
	ofCircle := func(r Record) bool { return r.CircleID == circleID }
	s.Contributions = slices.DeleteFunc(s.Contributions, ofCircle)
	s.Payouts = slices.DeleteFunc(s.Payouts, ofCircle)
}

// Members returns the mirrored member addresses of a circle in join order
func (s *State) Members(circleID string) []string {
	return s.Memberships[circleID]
}

// SetMembers replaces the membership list of a circle
func (s *State) SetMembers(circleID string, addresses []string) {
	s.Memberships[circleID] = slices.Clone(addresses)
}

// AddMember appends an address to a circle's membership list. It returns
// false when the address is already listed
func (s *State) AddMember(circleID string, address string) bool {
	if slices.Contains(s.Memberships[circleID], address) {
		return false
	}
	s.Memberships[circleID] = append(s.Memberships[circleID], address)
	return true
}

// RemoveMember drops an address from a circle's membership list
func (s *State) RemoveMember(circleID string, address string) {
	members := slices.DeleteFunc(
		slices.Clone(s.Memberships[circleID]),
		func(m string) bool { return m == address },
	)
	if len(members) == 0 {
		delete(s.Memberships, circleID)
		return
	}
	s.Memberships[circleID] = members
}

// IsMember reports whether address created or joined the circle
func (s *State) IsMember(circleID string, address string) bool {
	if slices.Contains(s.Memberships[circleID], address) {
		return true
	}
	c, ok := s.Circle(circleID)
	return ok && c.Creator == address
}

// CirclesFor returns the mirrored circles address created or joined
func (s *State) CirclesFor(address string) []circle.Circle {
	ret := []circle.Circle{}
	for _, c := range s.Circles {
		if s.IsMember(c.ID, address) {
			ret = append(ret, c)
		}
	}
	return ret
}

// HasContribution reports whether a contribution was mirrored for the
// member and cycle
func (s *State) HasContribution(circleID string, address string, cycle uint8) bool {
	return slices.ContainsFunc(s.Contributions, func(r Record) bool {
		return r.CircleID == circleID &&
			r.MemberAddress == address &&
			r.Cycle == cycle
	})
}

// AddContribution appends a contribution unless one exists for the same
// circle, member and cycle
func (s *State) AddContribution(r Record) bool {
	if s.HasContribution(r.CircleID, r.MemberAddress, r.Cycle) {
		return false
	}
	s.Contributions = append(s.Contributions, r)
	return true
}

// HasPayout reports whether a payout was mirrored for the cycle
func (s *State) HasPayout(circleID string, cycle uint8) bool {
	return slices.ContainsFunc(s.Payouts, func(r Record) bool {
		return r.CircleID == circleID && r.Cycle == cycle
	})
}

// AddPayout appends a payout unless one exists for the same circle and cycle
func (s *State) AddPayout(r Record) bool {
	if s.HasPayout(r.CircleID, r.Cycle) {
		return false
	}
	s.Payouts = append(s.Payouts, r)
	return true
}

// ContributedCycles returns the cycles a member contributed to, ascending
func (s *State) ContributedCycles(circleID string, address string) []int {
	var ret []int
	for _, r := range s.Contributions {
		if r.CircleID == circleID && r.MemberAddress == address {
			ret = append(ret, int(r.Cycle))
		}
	}
	slices.Sort(ret)
	return ret
}

// Contributed returns the total a member contributed to a circle
func (s *State) Contributed(circleID string, address string) uint64 {
	var ret uint64
	for _, r := range s.Contributions {
		if r.CircleID == circleID && r.MemberAddress == address {
			ret += r.Amount
		}
	}
	return ret
}

// ReceivedPayout reports whether a member was paid out in a circle
func (s *State) ReceivedPayout(circleID string, address string) bool {
	return slices.ContainsFunc(s.Payouts, func(r Record) bool {
		return r.CircleID == circleID && r.MemberAddress == address
	})
}
