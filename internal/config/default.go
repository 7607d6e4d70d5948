package config

import "time"

func Default() *Config {
	return &Config{Settings: Settings{
		Listen:              ":6667",
		AdminListen:         "127.0.0.1:9090",
		BridgeNick:          "bridge",
		ServerName:          "irc.bridge.local",
		QueueSize:           64,
		RegistrationTimeout: 30 * time.Second,
		ShutdownGrace:       2 * time.Second,
		Log: Log{
			Level: "info",
		},
		Backend: Backend{
			User:           "ircbridge",
			ReconnectDelay: 5 * time.Second,
			RatePerSecond:  10,
			Burst:          20,
			EchoTTL:        5 * time.Minute,
		},
	}}
}
