package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultJWTExpiresIn     = "24h"
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "tellerdesk"
	DefaultPGSSLMode        = "disable"
	DefaultRedisChannel     = "tellerdesk:events"
	DefaultEditWindow       = "15m"
	DefaultTypingTTL        = "6s"
	DefaultPresenceStale    = "2m"
	DefaultIdleArchiveAfter = "720h"
	DefaultSocketSendBuffer = 64
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Chat     ChatConfig     `toml:"chat"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type AdminConfig struct {
	Email       string `toml:"email"`
	Password    string `toml:"password"`
	DisplayName string `toml:"display_name"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// ExpiresIn parses the configured token lifetime, falling back to the default.
func (c AuthConfig) ExpiresIn() time.Duration {
	return parseDurationOr(c.JWTExpiresIn, DefaultJWTExpiresIn)
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the connection string understood by pgx.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig enables the cross-node event bridge when Addr is set.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type ChatConfig struct {
	EditWindow       string `toml:"edit_window"`
	TypingTTL        string `toml:"typing_ttl"`
	PresenceStale    string `toml:"presence_stale_after"`
	IdleArchiveAfter string `toml:"idle_archive_after"`
	SocketSendBuffer int    `toml:"socket_send_buffer"`
}

// EditWindowDuration returns the edit window; zero means edits are never locked.
func (c ChatConfig) EditWindowDuration() time.Duration {
	return parseDurationOr(c.EditWindow, DefaultEditWindow)
}

func (c ChatConfig) TypingTTLDuration() time.Duration {
	return parseDurationOr(c.TypingTTL, DefaultTypingTTL)
}

func (c ChatConfig) PresenceStaleDuration() time.Duration {
	return parseDurationOr(c.PresenceStale, DefaultPresenceStale)
}

func (c ChatConfig) IdleArchiveDuration() time.Duration {
	return parseDurationOr(c.IdleArchiveAfter, DefaultIdleArchiveAfter)
}

func parseDurationOr(raw, fallback string) time.Duration {
	if raw == "" {
		raw = fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Email:       "admin@example.com",
			Password:    "change-your-password-here",
			DisplayName: "Administrator",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Channel: DefaultRedisChannel,
		},
		Chat: ChatConfig{
			EditWindow:       DefaultEditWindow,
			TypingTTL:        DefaultTypingTTL,
			PresenceStale:    DefaultPresenceStale,
			IdleArchiveAfter: DefaultIdleArchiveAfter,
			SocketSendBuffer: DefaultSocketSendBuffer,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = DefaultRedisChannel
	}
	if cfg.Chat.SocketSendBuffer <= 0 {
		cfg.Chat.SocketSendBuffer = DefaultSocketSendBuffer
	}

	return cfg, nil
}
