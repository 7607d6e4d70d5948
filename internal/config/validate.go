package config

import (
	"errors"
	"fmt"
	"strings"
)

var logLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {}, "fatal": {},
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Listen == "" {
		errs = append(errs, errors.New("listen must not be empty"))
	}
	if cfg.BridgeNick == "" || strings.ContainsAny(cfg.BridgeNick, " !@:") {
		errs = append(errs, fmt.Errorf("bridge_nick %q is not a valid nickname", cfg.BridgeNick))
	}
	if cfg.ServerName == "" || strings.Contains(cfg.ServerName, " ") {
		errs = append(errs, fmt.Errorf("server_name %q is not a valid server name", cfg.ServerName))
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", cfg.QueueSize))
	}
	if cfg.RegistrationTimeout < 0 {
		errs = append(errs, errors.New("registration_timeout must not be negative"))
	}
	if cfg.ShutdownGrace <= 0 {
		errs = append(errs, errors.New("shutdown_grace must be positive"))
	}
	if _, ok := logLevels[strings.ToLower(cfg.Log.Level)]; !ok {
		errs = append(errs, fmt.Errorf("log.level %q is unknown", cfg.Log.Level))
	}
	if cfg.Backend.URL != "" && !strings.HasPrefix(cfg.Backend.URL, "ws://") && !strings.HasPrefix(cfg.Backend.URL, "wss://") {
		errs = append(errs, fmt.Errorf("backend.url %q must be a ws:// or wss:// URL", cfg.Backend.URL))
	}
	if cfg.Backend.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("backend.reconnect_delay must be positive"))
	}
	if cfg.Backend.RatePerSecond < 0 || cfg.Backend.Burst < 0 {
		errs = append(errs, errors.New("backend rate limits must not be negative"))
	}

	seen := make(map[string]string, len(cfg.Rooms))
	for i, room := range cfg.Rooms {
		if room.ID == "" || room.Name == "" {
			errs = append(errs, fmt.Errorf("rooms[%d]: id and name are required", i))
			continue
		}
		key := strings.ToLower(room.Name)
		if id, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("rooms[%d]: name %s already used by %s", i, room.Name, id))
		}
		seen[key] = room.ID
	}

	return errors.Join(errs...)
}
