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
)

// Status is the lifecycle state of a circle. The numeric values are shared
// with the on-chain program and the stored rows.
type Status uint8

const (
	StatusForming   Status = 0
	StatusActive    Status = 1
	StatusCompleted Status = 2
	// StatusCancelled can be represented but no operation produces it
	StatusCancelled Status = 3
)

var statusNames = map[Status]string{
	StatusForming:   "forming",
	StatusActive:    "active",
	StatusCompleted: "completed",
	StatusCancelled: "cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// ParseStatus returns the status matching the lower-case name used in query
// strings
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for status, statusName := range statusNames {
		if statusName == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, name)
}
