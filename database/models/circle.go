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

package models

import "time"

// Circle is a stored savings circle. Name and Creator hold field-encrypted
// values.
type Circle struct {
	CreatedAt           time.Time `gorm:"index"`
	StartBlock          *uint64
	CircleID            string `gorm:"size:255;uniqueIndex;not null"`
	Name                string `gorm:"size:1024"`
	NameHash            string `gorm:"size:255"`
	Creator             string `gorm:"size:1024;not null"`
	Salt                string `gorm:"size:255"`
	TransactionID       string `gorm:"size:255"`
	ID                  uint   `gorm:"primarykey"`
	ContributionAmount  uint64
	CycleDurationBlocks uint64
	MaxMembers          uint8
	TotalCycles         uint8
	Status              uint8 `gorm:"index"`
	CurrentCycle        uint8
	MembersJoined       uint8
}

func (Circle) TableName() string {
	return "circle"
}
