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

import "errors"

var (
	// ErrNotFound is returned when a circle or member does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the requester is not allowed to perform
	// the operation, such as dissolving a circle it did not create
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when an operation is not valid for the
	// current circle status or the request is missing required fields
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidFilter is returned for an unknown status filter
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrDuplicate is returned when a contribution or payout was already
	// recorded for the same cycle
	ErrDuplicate = errors.New("duplicate record")

	// ErrConflict is returned when a concurrent write changed the circle
	// between read and update
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnavailable is returned when the remote store cannot be reached
	ErrUnavailable = errors.New("upstream unavailable")
)

// IsValidation reports whether err is a caller error that must be surfaced
// instead of being absorbed by a fallback
func IsValidation(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrConflict)
}
