package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// setting binds a dotted config key and its environment variable to a
// field of Config. field returns a *string, *int or *bool into cfg.
type setting struct {
	key    string
	env    string
	secret bool
	field  func(cfg *Config) any
}

var settings = []setting{
	{key: "server.port", env: "CHATCAL_SERVER_PORT",
		field: func(c *Config) any { return &c.Server.Port }},
	{key: "server.token", env: "CHATCAL_SERVER_TOKEN", secret: true,
		field: func(c *Config) any { return &c.Server.Token }},
	{key: "storage.data_dir", env: "CHATCAL_STORAGE_DATA_DIR",
		field: func(c *Config) any { return &c.Storage.DataDir }},
	{key: "provider.api_key", env: "CHATCAL_API_KEY", secret: true,
		field: func(c *Config) any { return &c.Provider.APIKey }},
	{key: "provider.base_url", env: "CHATCAL_PROVIDER_BASE_URL",
		field: func(c *Config) any { return &c.Provider.BaseURL }},
	{key: "provider.chat_model", env: "CHATCAL_PROVIDER_CHAT_MODEL",
		field: func(c *Config) any { return &c.Provider.ChatModel }},
	{key: "provider.transcribe_model", env: "CHATCAL_PROVIDER_TRANSCRIBE_MODEL",
		field: func(c *Config) any { return &c.Provider.TranscribeModel }},
	{key: "log.level", env: "CHATCAL_LOG_LEVEL",
		field: func(c *Config) any { return &c.Log.Level }},
	{key: "client.server_url", env: "CHATCAL_SERVER_URL",
		field: func(c *Config) any { return &c.Client.ServerURL }},
	{key: "extract.strict", env: "CHATCAL_EXTRACT_STRICT",
		field: func(c *Config) any { return &c.Extract.Strict }},
	{key: "agenda.schedule", env: "CHATCAL_AGENDA_SCHEDULE",
		field: func(c *Config) any { return &c.Agenda.Schedule }},
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// parse converts text from an env var, a CLI argument or a string file
// value into the field's type.
func (s setting) parse(raw string) (any, error) {
	switch s.field(&Config{}).(type) {
	case *int:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	case *bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid bool value for %s: %w", s.key, err)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func (s setting) set(cfg *Config, v any) {
	switch p := s.field(cfg).(type) {
	case *string:
		*p = v.(string)
	case *int:
		*p = v.(int)
	case *bool:
		*p = v.(bool)
	}
}

func (s setting) get(cfg Config) any {
	switch p := s.field(&cfg).(type) {
	case *string:
		return *p
	case *int:
		return *p
	case *bool:
		return *p
	}
	return nil
}

func (s setting) isInt() bool {
	_, ok := s.field(&Config{}).(*int)
	return ok
}

// applyBackend copies file values over cfg. Secrets are never read from
// the file. A bad integer fails the load; a bad bool keeps the default.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range settings {
		if s.secret {
			continue
		}

		if s.isInt() {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.set(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("ignoring config value, using default", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.set(cfg, v)
	}
	return nil
}

// applyEnvOverrides applies every non-empty CHATCAL_* variable. Unparsable
// values are logged and skipped.
func applyEnvOverrides(cfg *Config) {
	for _, s := range settings {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("ignoring environment override", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.set(cfg, v)
	}
}
