// Copyright (C) 2025 groupwire.dev <team@groupwire.dev>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package apperr

import (
	"errors"
	"fmt"
)

// Error is the single error type crossing the storage/handler boundary.
// Meta carries whatever the client needs to resync without a second
// round-trip (current epoch, retry delay, limit that was hit).
type Error struct {
	Code    Code
	Message string
	Meta    map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// With attaches resync metadata and returns the same error.
func (e *Error) With(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any, 1)
	}
	e.Meta[key] = value
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// As extracts an *Error from any error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}

func NotMember() *Error     { return New(CodeNotMember, "not a member of this group") }
func Banned() *Error        { return New(CodeBanned, "banned from this group") }
func GroupClosed() *Error   { return New(CodeGroupClosed, "group is closed") }
func GroupFull() *Error     { return New(CodeGroupFull, "group is at capacity") }
func OwnerRequired() *Error { return New(CodeOwnerRequired, "group would be left without an owner") }
func LastAdmin() *Error     { return New(CodeLastAdmin, "group would be left without an admin") }
func Forbidden(msg string) *Error { return New(CodeForbidden, msg) }

// EpochStale carries the group's true current epoch so the client can
// rekey without refetching the group.
func EpochStale(current int64) *Error {
	return New(CodeEpochStale, "submitted epoch is not current").With("current_epoch", current)
}

func SenderKeyRequired(epoch int64) *Error {
	return New(CodeSenderKeyRequired, "no sender key distributed for the current epoch").
		With("current_epoch", epoch)
}

func DeviceRevoked() *Error { return New(CodeDeviceRevoked, "sending device has been revoked") }

func InvalidCursor() *Error {
	return New(CodeInvalidCursor, "cursor is malformed or expired; retry without a cursor")
}

// RateLimited carries the retry delay in seconds and the ceiling that
// was hit.
func RateLimited(retryAfter, limit int) *Error {
	return New(CodeRateLimited, "rate limit exceeded").
		With("retry_after", retryAfter).
		With("limit", limit)
}

func MaxUses() *Error { return New(CodeMaxUses, "invite has no remaining uses") }
func Gone() *Error    { return New(CodeGone, "invite has expired") }

func PayloadTooLarge(max int) *Error {
	return New(CodePayloadTooLarge, "ciphertext exceeds maximum size").With("max_bytes", max)
}

func InvalidArgument(msg string) *Error { return New(CodeInvalidArgument, msg) }
func NotFound(msg string) *Error        { return New(CodeNotFound, msg) }
func Unauthorized(msg string) *Error    { return New(CodeUnauthorized, msg) }

func Internal(cause error) *Error {
	return Wrap(CodeInternal, "internal error", cause)
}
