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

package event

const (
	CircleCreatedEventType    EventType = "circle.created"
	MemberJoinedEventType     EventType = "circle.member_joined"
	CircleActivatedEventType  EventType = "circle.activated"
	ContributionEventType     EventType = "circle.contribution"
	PayoutEventType           EventType = "circle.payout"
	CircleCompletedEventType  EventType = "circle.completed"
	CircleDissolvedEventType  EventType = "circle.dissolved"
	CircleReconciledEventType EventType = "circle.reconciled"
)

// CircleEventTypes lists every circle lifecycle event
var CircleEventTypes = []EventType{
	CircleCreatedEventType,
	MemberJoinedEventType,
	CircleActivatedEventType,
	ContributionEventType,
	PayoutEventType,
	CircleCompletedEventType,
	CircleDissolvedEventType,
	CircleReconciledEventType,
}

// CircleEvent is the payload of every circle lifecycle event. Addresses are
// never included
type CircleEvent struct {
	CircleID      string
	Cycle         uint8
	JoinOrder     uint8
	MembersJoined uint8
	Amount        uint64
}
