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

import "net/http"

// Code is the wire error code carried in the response body and the
// X-Error-Code header. Membership codes are client-correctable,
// consistency codes are retryable after a resync, capacity codes are
// retryable after the delay the response carries.
type Code string

const (
	CodeNotMember         Code = "NOT_MEMBER"
	CodeBanned            Code = "BANNED"
	CodeGroupClosed       Code = "GROUP_CLOSED"
	CodeGroupFull         Code = "GROUP_FULL"
	CodeOwnerRequired     Code = "OWNER_REQUIRED"
	CodeLastAdmin         Code = "LAST_ADMIN"
	CodeForbidden         Code = "FORBIDDEN"
	CodeEpochStale        Code = "EPOCH_STALE"
	CodeSenderKeyRequired Code = "SENDER_KEY_REQUIRED"
	CodeDeviceRevoked     Code = "DEVICE_REVOKED"
	CodeInvalidCursor     Code = "INVALID_CURSOR"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeMaxUses           Code = "MAX_USES"
	CodeGone              Code = "GONE"
	CodePayloadTooLarge   Code = "PAYLOAD_TOO_LARGE"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInternal          Code = "INTERNAL"
)

var httpStatus = map[Code]int{
	CodeNotMember:         http.StatusForbidden,
	CodeBanned:            http.StatusForbidden,
	CodeGroupClosed:       http.StatusForbidden,
	CodeGroupFull:         http.StatusConflict,
	CodeOwnerRequired:     http.StatusConflict,
	CodeLastAdmin:         http.StatusConflict,
	CodeForbidden:         http.StatusForbidden,
	CodeEpochStale:        http.StatusConflict,
	CodeSenderKeyRequired: http.StatusConflict,
	CodeDeviceRevoked:     http.StatusConflict,
	CodeInvalidCursor:     http.StatusBadRequest,
	CodeRateLimited:       http.StatusTooManyRequests,
	CodeMaxUses:           http.StatusConflict,
	CodeGone:              http.StatusGone,
	CodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
	CodeInvalidArgument:   http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeInternal:          http.StatusInternalServerError,
}

// HTTPStatus maps a code to its HTTP status. Unknown codes are treated
// as internal.
func (c Code) HTTPStatus() int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
