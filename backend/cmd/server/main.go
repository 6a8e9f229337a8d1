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

package main

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/groupwire/groupwire/backend/config"
	"github.com/groupwire/groupwire/backend/handlers"
	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/relay"
	"github.com/groupwire/groupwire/backend/storage/postgres"
	redisstore "github.com/groupwire/groupwire/backend/storage/redis"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Log.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	store := postgres.NewStore(db, cfg.Groups.MaxParticipants)
	if err := store.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	limiter := redisstore.NewLimiter(rdb,
		cfg.Limits.MessagesPerUserPerMinute, time.Minute,
		cfg.Limits.GroupBurst, cfg.Limits.GroupBurstWindow)
	pubsub := redisstore.NewPubSub(rdb)
	hub := relay.NewHub(pubsub, store,
		cfg.SSE.HeartbeatInterval, cfg.SSE.MaxMissedHeartbeats, cfg.SSE.MaxStreamsPerUser)

	h := &handlers.Handlers{
		Groups:     handlers.NewGroupHandler(store),
		Members:    handlers.NewMemberHandler(store, pubsub),
		Invites:    handlers.NewInviteHandler(store, pubsub, cfg.Groups.InviteExpiry),
		Messages:   handlers.NewMessageHandler(store, limiter, pubsub, cfg.Groups.MaxCiphertextSize),
		SenderKeys: handlers.NewSenderKeyHandler(store, pubsub),
		Devices:    handlers.NewDeviceHandler(store),
		Presence:   handlers.NewPresenceHandler(store),
		Stream:     handlers.NewStreamHandler(hub, store),
	}

	r := mux.NewRouter()
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer))
	h.Register(api)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE streams are long-lived.
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
