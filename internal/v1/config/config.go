// Package config loads and validates the TOML configuration for Auster.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root, immutable configuration handle loaded from the TOML
// document named on the CLI (spec.md §6).
type Config struct {
	Mqtt    Mqtt    `toml:"mqtt"`
	Db      Db      `toml:"db"`
	Runtime Runtime `toml:"runtime"`
	HTTP    HTTP    `toml:"http"`
}

// Mqtt holds the broker connection credentials.
type Mqtt struct {
	Host     string `toml:"host"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// Db holds the document-store connection credentials and collection names.
type Db struct {
	Host            string `toml:"host"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	Database        string `toml:"database"`
	UsersCollection string `toml:"users_collection"`
	RoomsCollection string `toml:"rooms_collection"`
}

// Runtime holds the HTTP bind address and the broker topic prefix every
// room topic is built from.
type Runtime struct {
	ServerAddress     string `toml:"server_address"`
	RoomChannelPrefix string `toml:"room_channel_prefix"`
}

// HTTP holds ambient HTTP-surface concerns: the in-memory rate limit
// applied to room creation.
type HTTP struct {
	RateLimitRooms string `toml:"rate_limit_rooms"`
}

// Load reads and validates the TOML document at path, collecting every
// validation failure into one error instead of failing on the first.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if errs := validate(&cfg); len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Runtime.RoomChannelPrefix == "" {
		cfg.Runtime.RoomChannelPrefix = "rooms"
	}
	if cfg.HTTP.RateLimitRooms == "" {
		cfg.HTTP.RateLimitRooms = "60-M"
	}
}

func validate(cfg *Config) []string {
	var errs []string

	if cfg.Mqtt.Host == "" {
		errs = append(errs, "mqtt.host is required")
	}
	if cfg.Db.Host == "" {
		errs = append(errs, "db.host is required")
	}
	if cfg.Db.Database == "" {
		errs = append(errs, "db.database is required")
	}
	if cfg.Db.UsersCollection == "" {
		errs = append(errs, "db.users_collection is required")
	}
	if cfg.Db.RoomsCollection == "" {
		errs = append(errs, "db.rooms_collection is required")
	}
	if cfg.Runtime.ServerAddress == "" {
		errs = append(errs, "runtime.server_address is required")
	} else if !isValidHostPort(cfg.Runtime.ServerAddress) {
		errs = append(errs, fmt.Sprintf("runtime.server_address must be in format 'host:port' (got '%s')", cfg.Runtime.ServerAddress))
	}

	return errs
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

// RedactSecret redacts a secret by showing only the first 8 characters, for
// safe logging of the loaded config.
func RedactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
