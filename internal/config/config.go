package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// WebSocket connection lifecycle. IdleTimeout is how long a peer may go
	// without answering a ping before the connection is reaped; it bounds the
	// transport heartbeat, not application traffic.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	SendBufferSize   int           `mapstructure:"send_buffer_size" yaml:"send_buffer_size"`
	MaxMessageBytes  int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`

	// RateLimitPerMinute caps inbound commands per connection. Zero disables it.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// JoinRequiresSubscription gates live channel joins on a durable
	// subscription. Off by default: any authenticated connection may observe
	// any channel, matching the behavior history reads already allow.
	JoinRequiresSubscription bool `mapstructure:"join_requires_subscription" yaml:"join_requires_subscription"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                     ":8080",
		ReadHeaderTimeout:        5 * time.Second,
		ShutdownTimeout:          5 * time.Second,
		DatabasePath:             "chatterbox.db",
		LogLevel:                 "info",
		JWTSecret:                "",
		JWTIssuer:                "chatterbox",
		JWTAudience:              "chatterbox-clients",
		JWTTTL:                   24 * time.Hour,
		HandshakeTimeout:         5 * time.Second,
		IdleTimeout:              60 * time.Second,
		PingInterval:             30 * time.Second,
		SendBufferSize:           64,
		MaxMessageBytes:          1 << 16,
		RateLimitPerMinute:       0,
		JoinRequiresSubscription: false,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
}
