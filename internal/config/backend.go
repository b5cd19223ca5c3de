package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigBackend abstracts where non-secret settings are persisted.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "chatcal")
}

// configFilePath prefers an existing config.yaml and falls back to
// config.json.
func configFilePath() string {
	dir := configDir()
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "config.json")
}

// codec turns the flat settings map into file bytes and back.
type codec struct {
	decode func([]byte, any) error
	encode func(any) ([]byte, error)
}

var (
	jsonCodec = codec{
		decode: json.Unmarshal,
		encode: func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
	}
	yamlCodec = codec{decode: yaml.Unmarshal, encode: yaml.Marshal}
)

func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec
	default:
		return jsonCodec
	}
}

// fileBackend keeps settings as a flat map of dotted keys, written back to
// disk on every change.
type fileBackend struct {
	path     string
	codec    codec
	settings map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, codec: codecFor(path), settings: map[string]any{}}
	if err := b.read(); err != nil {
		slog.Warn("ignoring config file, using defaults", "path", path, "error", err)
	}
	return b
}

func (b *fileBackend) read() error {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	parsed := map[string]any{}
	if err := b.codec.decode(raw, &parsed); err != nil {
		return err
	}
	if parsed != nil {
		b.settings = parsed
	}
	return nil
}

func (b *fileBackend) write() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := b.codec.encode(b.settings)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", b.path, err)
	}
	return os.WriteFile(b.path, raw, 0o600)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.settings[key]
	if !ok {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

// GetInt accepts YAML ints, JSON numbers with no fraction, and numeric
// strings.
func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.settings[key]
	if !ok {
		return 0, false, nil
	}
	var (
		n   int
		err error
	)
	switch val := v.(type) {
	case int:
		n = val
	case float64:
		if val != math.Trunc(val) || val < math.MinInt || val > math.MaxInt {
			err = fmt.Errorf("%s: %v is not an integer", key, val)
		}
		n = int(val)
	case string:
		n, err = strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			err = fmt.Errorf("%s: %w", key, err)
		}
	default:
		err = fmt.Errorf("%s: unexpected %T value", key, v)
	}
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func (b *fileBackend) SetString(key, val string) error {
	b.settings[key] = val
	return b.write()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.settings[key] = val
	return b.write()
}

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.settings[key]; !ok {
		return nil
	}
	delete(b.settings, key)
	return b.write()
}
