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

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, userID, issuer string, expiry time.Time) string {
	t.Helper()
	claims := &Claims{
		UserID:   userID,
		Username: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func protected(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		require.True(t, ok)
		w.Write([]byte(userID))
	})
}

func TestAuthAcceptsValidBearerToken(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, "groupwire")
	token := signToken(t, testSecret, "alice", "groupwire", time.Now().Add(time.Hour))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw(protected(t)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, "groupwire")
	token := signToken(t, testSecret, "alice", "groupwire", time.Now().Add(time.Hour))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/events?token="+token, nil)
	rec := httptest.NewRecorder()
	mw(protected(t)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, "groupwire")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	rec := httptest.NewRecorder()
	mw(protected(t)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, "groupwire")
	token := signToken(t, "other-secret", "alice", "groupwire", time.Now().Add(time.Hour))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw(protected(t)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, "groupwire")
	token := signToken(t, testSecret, "alice", "groupwire", time.Now().Add(-time.Minute))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw(protected(t)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongIssuer(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, "groupwire")
	token := signToken(t, testSecret, "alice", "someone-else", time.Now().Add(time.Hour))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw(protected(t)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenExpiryFromClaims(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	mw := NewAuthMiddleware(testSecret, "groupwire")
	token := signToken(t, testSecret, "alice", "groupwire", exp)

	var got time.Time
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TokenExpiry(r)
	})
	r := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	mw(inner).ServeHTTP(httptest.NewRecorder(), r)

	assert.True(t, exp.Equal(got))
}
