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
	"strconv"
	"strings"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Filter selects circles for a listing. A nil Status matches every circle.
type Filter struct {
	Status *Status
	Limit  int
}

// ParseFilter builds a filter from the query string values of a listing
// request. An empty status or "all" matches every circle.
func ParseFilter(status string, limit string) (Filter, error) {
	var ret Filter
	status = strings.TrimSpace(status)
	if status != "" && !strings.EqualFold(status, "all") {
		s, err := ParseStatus(status)
		if err != nil {
			return ret, err
		}
		ret.Status = &s
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return ret, fmt.Errorf("%w: invalid limit %q", ErrInvalidFilter, limit)
		}
		ret.Limit = n
	}
	return ret.Normalize(), nil
}

// Normalize clamps the limit into the accepted range
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Matches reports whether c passes the status filter
func (f Filter) Matches(c Circle) bool {
	return f.Status == nil || *f.Status == c.Status
}

// StatusParam returns the query string value for the status filter
func (f Filter) StatusParam() string {
	if f.Status == nil {
		return "all"
	}
	return f.Status.String()
}
