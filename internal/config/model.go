// Package config loads the bridge configuration from defaults, an optional
// YAML file and IRCBRIDGE_ environment variables, in that order.
package config

import (
	"time"

	"github.com/omochice/toy-irc-bridge/internal/mappings"
)

type Config struct {
	Settings `yaml:",inline"`

	// Rooms come from the file only.
	Rooms []mappings.Room `yaml:"rooms"`
}

// Settings are the keys that environment variables can override.
type Settings struct {
	Listen              string        `yaml:"listen" env:"LISTEN"`
	AdminListen         string        `yaml:"admin_listen" env:"ADMIN_LISTEN"`
	BridgeNick          string        `yaml:"bridge_nick" env:"BRIDGE_NICK"`
	ServerName          string        `yaml:"server_name" env:"SERVER_NAME"`
	QueueSize           int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	RegistrationTimeout time.Duration `yaml:"registration_timeout" env:"REGISTRATION_TIMEOUT"`
	ShutdownGrace       time.Duration `yaml:"shutdown_grace" env:"SHUTDOWN_GRACE"`

	Log     Log     `yaml:"log" envPrefix:"LOG_"`
	Backend Backend `yaml:"backend" envPrefix:"BACKEND_"`
}

type Log struct {
	Level string `yaml:"level" env:"LEVEL"`
	File  string `yaml:"file" env:"FILE"`
}

type Backend struct {
	// URL of the backend WebSocket. Empty selects the in-process loopback.
	URL            string        `yaml:"url" env:"URL"`
	User           string        `yaml:"user" env:"USER"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY"`
	RatePerSecond  float64       `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst          int           `yaml:"burst" env:"BURST"`
	EchoTTL        time.Duration `yaml:"echo_ttl" env:"ECHO_TTL"`
}
