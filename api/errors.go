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

package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blinklabs-io/zkcircles/circle"
)

// Error codes carried next to the message so clients can tell apart
// errors that share a status code
const (
	CodeNotFound      = "not_found"
	CodeForbidden     = "forbidden"
	CodeInvalidState  = "invalid_state"
	CodeInvalidFilter = "invalid_filter"
	CodeDuplicate     = "duplicate"
	CodeConflict      = "conflict"
	CodeInternal      = "internal"
)

var errorClasses = []struct {
	err    error
	status int
	code   string
}{
	{circle.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{circle.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{circle.ErrInvalidState, http.StatusBadRequest, CodeInvalidState},
	{circle.ErrInvalidFilter, http.StatusBadRequest, CodeInvalidFilter},
	{circle.ErrDuplicate, http.StatusConflict, CodeDuplicate},
	{circle.ErrConflict, http.StatusConflict, CodeConflict},
}

// classify returns the status, code and user facing message for err.
// Unclassified errors get a 500 with the fallback message
func classify(err error, fallback string) (int, string, string) {
	for _, class := range errorClasses {
		if !errors.Is(err, class.err) {
			continue
		}
		if class.err == circle.ErrNotFound {
			return class.status, class.code, "Circle not found"
		}
		return class.status, class.code, errorMessage(err, class.err)
	}
	return http.StatusInternalServerError, CodeInternal, fallback
}

// errorMessage drops the sentinel prefix and capitalizes the remainder
func errorMessage(err error, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

// ErrorForResponse maps an error response back onto the circle error
// taxonomy
func ErrorForResponse(status int, body ErrorResponse) error {
	for _, class := range errorClasses {
		if body.Code == class.code {
			return errorWithMessage(class.err, body.Error)
		}
	}
	switch status {
	case http.StatusNotFound:
		return errorWithMessage(circle.ErrNotFound, body.Error)
	case http.StatusForbidden:
		return errorWithMessage(circle.ErrForbidden, body.Error)
	case http.StatusBadRequest:
		return errorWithMessage(circle.ErrInvalidState, body.Error)
	case http.StatusConflict:
		return errorWithMessage(circle.ErrDuplicate, body.Error)
	}
	return errorWithMessage(circle.ErrUnavailable, body.Error)
}

type responseError struct {
	sentinel error
	message  string
}

func (e *responseError) Error() string {
	if e.message == "" {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + ": " + e.message
}

func (e *responseError) Unwrap() error {
	return e.sentinel
}

func errorWithMessage(sentinel error, message string) error {
	return &responseError{
		sentinel: sentinel,
		message:  message,
	}
}
