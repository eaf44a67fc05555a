package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// RoomPolicy selects how unknown rooms are handled on first use.
type RoomPolicy string

const (
	// RoomPolicyLazy creates a room record on first join.
	RoomPolicyLazy RoomPolicy = "lazy"
	// RoomPolicyStrict rejects joins and messages for unknown rooms.
	RoomPolicyStrict RoomPolicy = "strict"
)

// ServerConfig holds settings for the coordinator server runtime.
type ServerConfig struct {
	ListenAddr     string        `env:"CHATWAVE_LISTEN_ADDR" envDefault:":9000"`
	HTTPAddr       string        `env:"CHATWAVE_HTTP_ADDR" envDefault:":9080"`
	ReadTimeout    time.Duration `env:"CHATWAVE_READ_TIMEOUT" envDefault:"90s"`
	WriteTimeout   time.Duration `env:"CHATWAVE_WRITE_TIMEOUT" envDefault:"15s"`
	MaxFrameBytes  int           `env:"CHATWAVE_MAX_FRAME_BYTES" envDefault:"1048576"`
	MaxConnections int           `env:"CHATWAVE_MAX_CONNECTIONS" envDefault:"4096"`
	RoomPolicy     RoomPolicy    `env:"CHATWAVE_ROOM_POLICY" envDefault:"lazy"`
	AllowGuests    bool          `env:"CHATWAVE_ALLOW_GUESTS" envDefault:"true"`
	HistoryLimit   int           `env:"CHATWAVE_HISTORY_LIMIT" envDefault:"100"`
	RedisAddr      string        `env:"CHATWAVE_REDIS_ADDR"`
	AdminUser      string        `env:"CHATWAVE_ADMIN_USER"`
	AdminPassword  string        `env:"CHATWAVE_ADMIN_PASSWORD"`

	Database DatabaseConfig
	JWT      JWTConfig
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerAddr string `env:"CHATWAVE_SERVER_ADDR" envDefault:"localhost:9000"`
	Username   string `env:"CHATWAVE_USERNAME"`
	Room       string `env:"CHATWAVE_ROOM" envDefault:"general"`
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Path string `env:"CHATWAVE_DB_PATH" envDefault:"chatwave.db"`
}

// JWTConfig defines token issuance parameters.
type JWTConfig struct {
	Secret     string        `env:"CHATWAVE_JWT_SECRET" envDefault:"replace-me"`
	Issuer     string        `env:"CHATWAVE_JWT_ISSUER" envDefault:"chatwave"`
	Expiration time.Duration `env:"CHATWAVE_JWT_EXPIRATION" envDefault:"24h"`
}

// LoadServerConfig builds the server configuration from environment
// variables with defaults.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.RoomPolicy {
	case RoomPolicyLazy, RoomPolicyStrict:
	default:
		return cfg, fmt.Errorf("invalid room policy %q", cfg.RoomPolicy)
	}
	return cfg, nil
}

// LoadClientConfig builds the client configuration from environment
// variables.
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
