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
	"context"

	"github.com/google/uuid"

	redisstore "github.com/groupwire/groupwire/backend/storage/redis"
)

// Publisher fans committed writes out to live streams. Publishing never
// fails a request; the relay degrades to polling instead.
type Publisher interface {
	PublishGroup(ctx context.Context, groupID uuid.UUID, event *redisstore.Event)
}

// SendLimiter gates message ingest.
type SendLimiter interface {
	AllowSend(ctx context.Context, userID string, groupID uuid.UUID) error
}
