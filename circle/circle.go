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

import (
	"fmt"
	"strings"
	"time"
)

// Seat limits of a circle
const (
	MinCircleMembers = 2
	MaxCircleMembers = 12
)

// Circle is the decrypted view of a savings circle shared by the gateway,
// the HTTP API and the local mirror
type Circle struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name,omitempty"`
	NameHash            string    `json:"nameHash,omitempty"`
	Creator             string    `json:"creator"`
	ContributionAmount  uint64    `json:"contributionAmount"`
	MaxMembers          uint8     `json:"maxMembers"`
	CycleDurationBlocks uint64    `json:"cycleDurationBlocks"`
	TotalCycles         uint8     `json:"totalCycles"`
	Status              Status    `json:"status"`
	CurrentCycle        uint8     `json:"currentCycle"`
	MembersJoined       uint8     `json:"membersJoined"`
	StartBlock          *uint64   `json:"startBlock,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`

	// Populated only for per-address listings
	TotalContributed  uint64 `json:"totalContributed,omitempty"`
	IsYourTurn        bool   `json:"isYourTurn,omitempty"`
	NeedsContribution bool   `json:"needsContribution,omitempty"`
}

// Member is a participant of a circle
type Member struct {
	Address           string `json:"address"`
	JoinOrder         uint8  `json:"joinOrder"`
	TotalContributed  uint64 `json:"totalContributed"`
	HasReceivedPayout bool   `json:"hasReceivedPayout"`
	Active            bool   `json:"active"`
	ContributedCycles []int  `json:"contributedCycles,omitempty"`
}

// Detail is a circle together with its members ordered by join order
type Detail struct {
	Circle  Circle   `json:"circle"`
	Members []Member `json:"members"`
}

// List is the result of a circle listing
type List struct {
	Circles []Circle `json:"circles"`
	Stats   Stats    `json:"stats"`
}

// NewCircle describes a circle that was created on-chain
type NewCircle struct {
	CircleID            string `json:"circleId"`
	Name                string `json:"name,omitempty"`
	NameHash            string `json:"nameHash,omitempty"`
	Creator             string `json:"creator"`
	ContributionAmount  uint64 `json:"contributionAmount"`
	MaxMembers          uint8  `json:"maxMembers"`
	CycleDurationBlocks uint64 `json:"cycleDurationBlocks"`
	Salt                string `json:"salt,omitempty"`
	TransactionID       string `json:"transactionId,omitempty"`
}

func (n NewCircle) Validate() error {
	switch {
	case strings.TrimSpace(n.CircleID) == "":
		return fmt.Errorf("%w: circle id required", ErrInvalidState)
	case strings.TrimSpace(n.Creator) == "":
		return fmt.Errorf("%w: creator required", ErrInvalidState)
	case n.MaxMembers < MinCircleMembers:
		return fmt.Errorf(
			"%w: a circle needs at least %d members",
			ErrInvalidState,
			MinCircleMembers,
		)
	case n.MaxMembers > MaxCircleMembers:
		return fmt.Errorf(
			"%w: a circle holds at most %d members",
			ErrInvalidState,
			MaxCircleMembers,
		)
	case n.ContributionAmount == 0:
		return fmt.Errorf("%w: contribution amount required", ErrInvalidState)
	}
	return nil
}

// Circle returns the initial state of the circle with the creator counted as
// the first member
func (n NewCircle) Circle(createdAt time.Time) Circle {
	return Circle{
		ID:                  n.CircleID,
		Name:                n.Name,
		NameHash:            n.NameHash,
		Creator:             n.Creator,
		ContributionAmount:  n.ContributionAmount,
		MaxMembers:          n.MaxMembers,
		CycleDurationBlocks: n.CycleDurationBlocks,
		TotalCycles:         n.MaxMembers,
		Status:              StatusForming,
		CurrentCycle:        0,
		MembersJoined:       1,
		CreatedAt:           createdAt,
	}
}

// NewMember describes a join that was accepted on-chain
type NewMember struct {
	MemberAddress string `json:"memberAddress"`
	TransactionID string `json:"transactionId,omitempty"`
	Salt          string `json:"salt,omitempty"`
}

func (n NewMember) Validate() error {
	if strings.TrimSpace(n.MemberAddress) == "" {
		return fmt.Errorf("%w: member address required", ErrInvalidState)
	}
	return nil
}

// Contribution is a member's payment into the pot for one cycle
type Contribution struct {
	CircleID      string `json:"circleId"`
	MemberAddress string `json:"memberAddress"`
	Cycle         uint8  `json:"cycle"`
	Amount        uint64 `json:"amount"`
	TransactionID string `json:"transactionId,omitempty"`
}

func (c Contribution) Validate() error {
	return validateRecord(c.CircleID, c.MemberAddress)
}

// Payout is the pot distribution to one member for one cycle
type Payout struct {
	CircleID      string `json:"circleId"`
	MemberAddress string `json:"memberAddress"`
	Cycle         uint8  `json:"cycle"`
	Amount        uint64 `json:"amount"`
	TransactionID string `json:"transactionId,omitempty"`
}

func (p Payout) Validate() error {
	return validateRecord(p.CircleID, p.MemberAddress)
}

func validateRecord(circleID string, address string) error {
	if strings.TrimSpace(circleID) == "" {
		return fmt.Errorf("%w: circle id required", ErrInvalidState)
	}
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: member address required", ErrInvalidState)
	}
	return nil
}

// IsFull reports whether every seat of the circle is taken
func (c *Circle) IsFull() bool {
	return c.MembersJoined >= c.MaxMembers
}

// Join takes the next seat of a forming circle and returns its join order.
// Filling the last seat activates the circle.
func (c *Circle) Join(now uint64) (uint8, error) {
	if c.Status != StatusForming {
		return 0, fmt.Errorf(
			"%w: circle %s is %s",
			ErrInvalidState,
			c.ID,
			c.Status,
		)
	}
	if c.IsFull() {
		return 0, fmt.Errorf("%w: circle %s is full", ErrInvalidState, c.ID)
	}
	c.MembersJoined++
	joinOrder := c.MembersJoined
	if c.IsFull() {
		c.Activate(now)
	}
	return joinOrder, nil
}

// Activate moves a forming circle into its first cycle. The start block is
// stamped only once.
func (c *Circle) Activate(startBlock uint64) {
	c.Status = StatusActive
	c.CurrentCycle = 1
	if c.StartBlock == nil {
		c.StartBlock = &startBlock
	}
}

// AdvanceCycle is applied after a payout. The circle completes once the
// final cycle has been paid out.
func (c *Circle) AdvanceCycle() {
	if int(c.CurrentCycle)+1 > int(c.TotalCycles) {
		c.Status = StatusCompleted
		return
	}
	c.CurrentCycle++
}

// Reconcile repairs drifted counters against the actual number of member
// rows. The member count never exceeds the seat count. It returns true when
// anything changed.
func (c *Circle) Reconcile(actualMembers int, now uint64) bool {
	changed := false
	if c.MaxMembers > 0 {
		actualMembers = min(actualMembers, int(c.MaxMembers))
	}
	if int(c.MembersJoined) != actualMembers {
		c.MembersJoined = uint8(actualMembers) // #nosec G115
		changed = true
	}
	if c.Status == StatusForming && actualMembers >= int(c.MaxMembers) {
		c.Activate(now)
		changed = true
	}
	if c.Status == StatusActive && c.CurrentCycle == 0 {
		c.CurrentCycle = 1
		changed = true
	}
	return changed
}

// CheckDissolve validates that requester may dissolve the circle
func (c *Circle) CheckDissolve(requester string) error {
	if strings.TrimSpace(requester) == "" {
		return fmt.Errorf("%w: creator address required", ErrInvalidState)
	}
	if c.Creator != requester {
		return fmt.Errorf(
			"%w: only the creator can dissolve this circle",
			ErrForbidden,
		)
	}
	if c.Status != StatusForming {
		return fmt.Errorf(
			"%w: can only dissolve circles that are still forming",
			ErrInvalidState,
		)
	}
	return nil
}

// NowMillis is the clock used to stamp the start of a circle
func NowMillis() uint64 {
	return uint64(time.Now().UnixMilli()) // #nosec G115
}
