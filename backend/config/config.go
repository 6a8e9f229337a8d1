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

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Redis    Redis
	JWT      JWT
	Groups   Groups
	Limits   Limits
	SSE      SSE
	Log      Log
}

type Server struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Database struct {
	URL string
}

type Redis struct {
	Addr string
}

type JWT struct {
	Secret string
	Issuer string
}

type Groups struct {
	MaxParticipants   int           `mapstructure:"max_participants"`
	InviteExpiry      time.Duration `mapstructure:"invite_expiry"`
	MaxCiphertextSize int           `mapstructure:"max_ciphertext_size"`
}

type Limits struct {
	MessagesPerUserPerMinute int           `mapstructure:"messages_per_user_per_minute"`
	GroupBurst               int           `mapstructure:"group_burst"`
	GroupBurstWindow         time.Duration `mapstructure:"group_burst_window"`
}

type SSE struct {
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	MaxMissedHeartbeats int           `mapstructure:"max_missed_heartbeats"`
	MaxStreamsPerUser   int           `mapstructure:"max_streams_per_user"`
}

type Log struct {
	Env string // dev enables console output
}

// Load reads an optional groupwire.yaml plus GROUPWIRE_* environment
// overrides, with defaults matching production.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8081")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.url", "postgres://localhost/groupwire?sslmode=disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "groupwire")
	v.SetDefault("groups.max_participants", 100)
	v.SetDefault("groups.invite_expiry", 24*time.Hour)
	v.SetDefault("groups.max_ciphertext_size", 64*1024)
	v.SetDefault("limits.messages_per_user_per_minute", 30)
	v.SetDefault("limits.group_burst", 10)
	v.SetDefault("limits.group_burst_window", 5*time.Second)
	v.SetDefault("sse.heartbeat_interval", 25*time.Second)
	v.SetDefault("sse.max_missed_heartbeats", 2)
	v.SetDefault("sse.max_streams_per_user", 3)
	v.SetDefault("log.env", "prod")

	v.SetEnvPrefix("GROUPWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigName("groupwire")
		v.SetConfigType("yaml")
		v.AddConfigPath(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.JWT.Secret == "" {
		return nil, errors.New("jwt secret is required (GROUPWIRE_JWT_SECRET)")
	}
	return &c, nil
}
