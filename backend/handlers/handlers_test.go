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

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
	redisstore "github.com/groupwire/groupwire/backend/storage/redis"
)

type capturingPublisher struct {
	events []*redisstore.Event
	ctxs   []context.Context
}

func (p *capturingPublisher) PublishGroup(ctx context.Context, _ uuid.UUID, event *redisstore.Event) {
	p.events = append(p.events, event)
	p.ctxs = append(p.ctxs, ctx)
}

type limiterFunc func(ctx context.Context, userID string, groupID uuid.UUID) error

func (f limiterFunc) AllowSend(ctx context.Context, userID string, groupID uuid.UUID) error {
	return f(ctx, userID, groupID)
}

func allowAll() SendLimiter {
	return limiterFunc(func(context.Context, string, uuid.UUID) error { return nil })
}

type fakeMessageStore struct {
	storage.MessageStore
	sendFn func(ctx context.Context, req *storage.SendMessageRequest) (*storage.SendMessageResult, error)
	listFn func(ctx context.Context, groupID uuid.UUID, requesterID string, cursor *storage.Cursor, limit int) ([]models.Message, *storage.Cursor, error)
}

func (f *fakeMessageStore) SendMessage(ctx context.Context, req *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
	return f.sendFn(ctx, req)
}

func (f *fakeMessageStore) ListMessages(ctx context.Context, groupID uuid.UUID, requesterID string, cursor *storage.Cursor, limit int) ([]models.Message, *storage.Cursor, error) {
	return f.listFn(ctx, groupID, requesterID, cursor, limit)
}

type fakeInviteStore struct {
	storage.InviteStore
	redeemFn func(ctx context.Context, code, userID string) (*storage.RedeemResult, error)
	createFn func(ctx context.Context, invite *models.Invite) error
}

func (f *fakeInviteStore) RedeemInvite(ctx context.Context, code, userID string) (*storage.RedeemResult, error) {
	return f.redeemFn(ctx, code, userID)
}

func (f *fakeInviteStore) CreateInvite(ctx context.Context, invite *models.Invite) error {
	return f.createFn(ctx, invite)
}

type fakeMembershipStore struct {
	storage.MembershipStore
	addFn func(ctx context.Context, groupID uuid.UUID, actorID string, userIDs []string) ([]string, int64, error)
}

func (f *fakeMembershipStore) AddMembers(ctx context.Context, groupID uuid.UUID, actorID string, userIDs []string) ([]string, int64, error) {
	return f.addFn(ctx, groupID, actorID, userIDs)
}

func authedRequest(t *testing.T, method, target, userID string, body any, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	r = r.WithContext(middleware.WithUserID(r.Context(), userID))
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	return r
}

func TestSendMessageAcceptedAndPublished(t *testing.T) {
	groupID := uuid.New()
	store := &fakeMessageStore{
		sendFn: func(_ context.Context, req *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
			return &storage.SendMessageResult{
				Message: &models.Message{
					ID:           uuid.New(),
					GroupID:      req.GroupID,
					SenderUserID: req.SenderUserID,
					Epoch:        req.Epoch,
					CreatedAt:    time.Now(),
				},
			}, nil
		},
	}
	pub := &capturingPublisher{}
	h := NewMessageHandler(store, allowAll(), pub, 64*1024)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/messages", "alice",
		map[string]any{
			"device_id":   uuid.New(),
			"ciphertext":  []byte("sealed"),
			"proto":       1,
			"group_epoch": 3,
		},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Send(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, pub.events, 1)
	assert.Equal(t, redisstore.EventMessage, pub.events[0].Type)

	var body struct {
		Duplicate bool `json:"duplicate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Duplicate)
}

func TestSendMessageIdempotentResend(t *testing.T) {
	groupID := uuid.New()
	original := &models.Message{ID: uuid.New(), GroupID: groupID, SenderUserID: "alice"}
	store := &fakeMessageStore{
		sendFn: func(context.Context, *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
			return &storage.SendMessageResult{Message: original, Duplicate: true}, nil
		},
	}
	pub := &capturingPublisher{}
	h := NewMessageHandler(store, allowAll(), pub, 64*1024)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/messages", "alice",
		map[string]any{
			"device_id":         uuid.New(),
			"ciphertext":        []byte("sealed"),
			"group_epoch":       3,
			"client_message_id": "c-1",
		},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Send(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.events, "duplicates must not republish")

	var body struct {
		Duplicate bool `json:"duplicate"`
		Message   struct {
			ID uuid.UUID `json:"id"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Duplicate)
	assert.Equal(t, original.ID, body.Message.ID)
}

func TestSendMessageStaleEpoch(t *testing.T) {
	groupID := uuid.New()
	store := &fakeMessageStore{
		sendFn: func(context.Context, *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
			return nil, apperr.EpochStale(5)
		},
	}
	h := NewMessageHandler(store, allowAll(), &capturingPublisher{}, 64*1024)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/messages", "alice",
		map[string]any{
			"device_id":   uuid.New(),
			"ciphertext":  []byte("sealed"),
			"group_epoch": 4,
		},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Send(rec, r)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EPOCH_STALE", rec.Header().Get("X-Error-Code"))
	assert.Equal(t, "5", rec.Header().Get("X-Current-Epoch"))
}

func TestSendMessageOversizedRejectedBeforeStore(t *testing.T) {
	groupID := uuid.New()
	store := &fakeMessageStore{
		sendFn: func(context.Context, *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
			t.Fatal("store must not be reached")
			return nil, nil
		},
	}
	h := NewMessageHandler(store, allowAll(), &capturingPublisher{}, 16)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/messages", "alice",
		map[string]any{
			"device_id":  uuid.New(),
			"ciphertext": bytes.Repeat([]byte{0x41}, 32),
		},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Send(rec, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", rec.Header().Get("X-Error-Code"))
}

func TestSendMessageRateLimited(t *testing.T) {
	groupID := uuid.New()
	store := &fakeMessageStore{
		sendFn: func(context.Context, *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
			t.Fatal("store must not be reached")
			return nil, nil
		},
	}
	limiter := limiterFunc(func(context.Context, string, uuid.UUID) error {
		return apperr.RateLimited(42, 30)
	})
	h := NewMessageHandler(store, limiter, &capturingPublisher{}, 64*1024)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/messages", "alice",
		map[string]any{
			"device_id":  uuid.New(),
			"ciphertext": []byte("sealed"),
		},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Send(rec, r)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("X-Retry-After"))
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
}

func TestRedeemInvitePublishesEpochChange(t *testing.T) {
	groupID := uuid.New()
	store := &fakeInviteStore{
		redeemFn: func(context.Context, string, string) (*storage.RedeemResult, error) {
			return &storage.RedeemResult{GroupID: groupID, Epoch: 6}, nil
		},
	}
	pub := &capturingPublisher{}
	h := NewInviteHandler(store, pub, 24*time.Hour)

	r := authedRequest(t, http.MethodPost, "/api/v1/invites/ABCDEF123456/redeem", "bob",
		nil, map[string]string{"code": "ABCDEF123456"})
	rec := httptest.NewRecorder()
	h.Redeem(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.events, 1)
	assert.Equal(t, redisstore.EventEpochChanged, pub.events[0].Type)
	assert.Equal(t, int64(6), pub.events[0].Epoch)
}

func TestRedeemInviteAlreadyMemberIsQuiet(t *testing.T) {
	groupID := uuid.New()
	store := &fakeInviteStore{
		redeemFn: func(context.Context, string, string) (*storage.RedeemResult, error) {
			return &storage.RedeemResult{GroupID: groupID, Epoch: 6, AlreadyMember: true}, nil
		},
	}
	pub := &capturingPublisher{}
	h := NewInviteHandler(store, pub, 24*time.Hour)

	r := authedRequest(t, http.MethodPost, "/api/v1/invites/ABCDEF123456/redeem", "bob",
		nil, map[string]string{"code": "ABCDEF123456"})
	rec := httptest.NewRecorder()
	h.Redeem(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.events, "idempotent redemption must not bump or publish")

	var body struct {
		AlreadyMember bool `json:"already_member"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.AlreadyMember)
}

func TestRedeemExpiredInviteGone(t *testing.T) {
	store := &fakeInviteStore{
		redeemFn: func(context.Context, string, string) (*storage.RedeemResult, error) {
			return nil, apperr.Gone()
		},
	}
	h := NewInviteHandler(store, &capturingPublisher{}, 24*time.Hour)

	r := authedRequest(t, http.MethodPost, "/api/v1/invites/DEADBEEF0000/redeem", "bob",
		nil, map[string]string{"code": "DEADBEEF0000"})
	rec := httptest.NewRecorder()
	h.Redeem(rec, r)

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "GONE", rec.Header().Get("X-Error-Code"))
}

func TestAddMembersGroupFull(t *testing.T) {
	groupID := uuid.New()
	store := &fakeMembershipStore{
		addFn: func(context.Context, uuid.UUID, string, []string) ([]string, int64, error) {
			return nil, 0, apperr.GroupFull()
		},
	}
	pub := &capturingPublisher{}
	h := NewMemberHandler(store, pub)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/members", "alice",
		map[string]any{"user_ids": []string{"zed"}},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Add(rec, r)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "GROUP_FULL", rec.Header().Get("X-Error-Code"))
	assert.Empty(t, pub.events)
}

func TestListMessagesZeroLimitFallsBackToDefault(t *testing.T) {
	groupID := uuid.New()
	var gotLimit int
	store := &fakeMessageStore{
		listFn: func(_ context.Context, _ uuid.UUID, _ string, _ *storage.Cursor, limit int) ([]models.Message, *storage.Cursor, error) {
			gotLimit = limit
			return []models.Message{{ID: uuid.New(), GroupID: groupID}}, nil, nil
		},
	}
	h := NewMessageHandler(store, allowAll(), &capturingPublisher{}, 64*1024)

	for _, raw := range []string{"0", "-3"} {
		r := authedRequest(t, http.MethodGet,
			"/api/v1/groups/"+groupID.String()+"/messages?limit="+raw, "alice",
			nil, map[string]string{"groupId": groupID.String()})
		rec := httptest.NewRecorder()
		h.List(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 50, gotLimit, "limit=%s must fall back to the default", raw)
	}
}

func TestCreateInviteRequestedExpiry(t *testing.T) {
	groupID := uuid.New()
	wantExpiry := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	var created *models.Invite
	store := &fakeInviteStore{
		createFn: func(_ context.Context, invite *models.Invite) error {
			created = invite
			return nil
		},
	}
	h := NewInviteHandler(store, &capturingPublisher{}, 24*time.Hour)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/invites", "alice",
		map[string]any{"type": "link", "expires_at": wantExpiry},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Create(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.True(t, created.ExpiresAt.Equal(wantExpiry), "got %v, want %v", created.ExpiresAt, wantExpiry)
}

func TestCreateInviteDefaultExpiry(t *testing.T) {
	groupID := uuid.New()
	var created *models.Invite
	store := &fakeInviteStore{
		createFn: func(_ context.Context, invite *models.Invite) error {
			created = invite
			return nil
		},
	}
	h := NewInviteHandler(store, &capturingPublisher{}, 24*time.Hour)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/invites", "alice",
		map[string]any{"type": "link"},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Create(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), created.ExpiresAt, time.Minute)
}

func TestSendMessagePublishOutlivesRequestContext(t *testing.T) {
	groupID := uuid.New()
	store := &fakeMessageStore{
		sendFn: func(_ context.Context, req *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
			return &storage.SendMessageResult{
				Message: &models.Message{ID: uuid.New(), GroupID: req.GroupID},
			}, nil
		},
	}
	pub := &capturingPublisher{}
	h := NewMessageHandler(store, allowAll(), pub, 64*1024)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/messages", "alice",
		map[string]any{
			"device_id":  uuid.New(),
			"ciphertext": []byte("sealed"),
		},
		map[string]string{"groupId": groupID.String()})

	// Client gone before the handler runs: the commit still fans out.
	ctx, cancel := context.WithCancel(r.Context())
	cancel()
	r = r.WithContext(ctx)

	rec := httptest.NewRecorder()
	h.Send(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, pub.ctxs, 1)
	assert.NoError(t, pub.ctxs[0].Err(), "publish context must not inherit cancellation")
}

func TestAddMembersNoopSkipsPublish(t *testing.T) {
	groupID := uuid.New()
	store := &fakeMembershipStore{
		addFn: func(context.Context, uuid.UUID, string, []string) ([]string, int64, error) {
			return nil, 4, nil // already members, epoch untouched
		},
	}
	pub := &capturingPublisher{}
	h := NewMemberHandler(store, pub)

	r := authedRequest(t, http.MethodPost, "/api/v1/groups/"+groupID.String()+"/members", "alice",
		map[string]any{"user_ids": []string{"bob"}},
		map[string]string{"groupId": groupID.String()})
	rec := httptest.NewRecorder()
	h.Add(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.events)
}
