package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mockSecrets is a test double for the secret store.
type mockSecrets struct {
	value string
	err   error
}

func (m mockSecrets) Get(name string) (string, error) {
	return m.value, m.err
}

var noSecrets = mockSecrets{err: errors.New("not found")}

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHATCAL_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearKeyEnv(t)
	path := writeTempConfig(t, "config.json", `{}`)

	cfg, err := loadWith(newFileBackend(path), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Provider.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("Provider.BaseURL = %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.ChatModel != "gpt-4o-mini" {
		t.Errorf("Provider.ChatModel = %q", cfg.Provider.ChatModel)
	}
	if cfg.Provider.TranscribeModel != "whisper-1" {
		t.Errorf("Provider.TranscribeModel = %q", cfg.Provider.TranscribeModel)
	}
	if !cfg.Extract.Strict {
		t.Error("Extract.Strict should default to true")
	}
	if cfg.Agenda.Schedule != "0 7 * * *" {
		t.Errorf("Agenda.Schedule = %q", cfg.Agenda.Schedule)
	}
	if cfg.Client.ServerURL != "http://127.0.0.1:4000" {
		t.Errorf("Client.ServerURL = %q", cfg.Client.ServerURL)
	}
}

// TestMissingAPIKey verifies a missing key does not fail the load.
func TestMissingAPIKey(t *testing.T) {
	clearKeyEnv(t)
	path := writeTempConfig(t, "config.json", `{}`)

	cfg, err := loadWith(newFileBackend(path), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.Provider.APIKey)
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{"provider.api_key": "file-key"}`)

	t.Setenv("CHATCAL_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, _ := loadWith(newFileBackend(path), mockSecrets{value: "stored-key"})
	if cfg.Provider.APIKey != "stored-key" {
		t.Errorf("APIKey = %q, want secrets file value (config file is ignored for secrets)", cfg.Provider.APIKey)
	}

	t.Setenv("OPENAI_API_KEY", "openai-key")
	cfg, _ = loadWith(newFileBackend(path), mockSecrets{value: "stored-key"})
	if cfg.Provider.APIKey != "openai-key" {
		t.Errorf("APIKey = %q, want OPENAI_API_KEY", cfg.Provider.APIKey)
	}

	t.Setenv("CHATCAL_API_KEY", "chatcal-key")
	cfg, _ = loadWith(newFileBackend(path), mockSecrets{value: "stored-key"})
	if cfg.Provider.APIKey != "chatcal-key" {
		t.Errorf("APIKey = %q, want CHATCAL_API_KEY", cfg.Provider.APIKey)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearKeyEnv(t)
	path := writeTempConfig(t, "config.json", `{"server.port": 5000, "extract.strict": true}`)

	t.Setenv("CHATCAL_SERVER_PORT", "6000")
	t.Setenv("CHATCAL_EXTRACT_STRICT", "false")
	t.Setenv("CHATCAL_SERVER_TOKEN", "tok")

	cfg, err := loadWith(newFileBackend(path), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Extract.Strict {
		t.Error("Extract.Strict should be overridden to false")
	}
	if cfg.Server.Token != "tok" {
		t.Errorf("Server.Token = %q", cfg.Server.Token)
	}
}

func TestJSONParsing(t *testing.T) {
	clearKeyEnv(t)
	path := writeTempConfig(t, "config.json", `{
  "server.port": 5000,
  "storage.data_dir": "/tmp/chatcal-test",
  "provider.base_url": "http://localhost:8080/v1",
  "provider.chat_model": "gpt-test",
  "log.level": "debug",
  "extract.strict": false,
  "agenda.schedule": "30 6 * * 1-5"
}`)

	cfg, err := loadWith(newFileBackend(path), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/chatcal-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Provider.BaseURL != "http://localhost:8080/v1" || cfg.Provider.ChatModel != "gpt-test" {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Extract.Strict {
		t.Error("Extract.Strict = true, want false")
	}
	if cfg.Agenda.Schedule != "30 6 * * 1-5" {
		t.Errorf("Agenda.Schedule = %q", cfg.Agenda.Schedule)
	}
}

func TestYAMLParsing(t *testing.T) {
	clearKeyEnv(t)
	path := writeTempConfig(t, "config.yaml", `
server.port: 5001
storage.data_dir: /tmp/chatcal-yaml
provider.transcribe_model: whisper-large
extract.strict: false
`)

	cfg, err := loadWith(newFileBackend(path), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5001 {
		t.Errorf("Server.Port = %d, want 5001", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/chatcal-yaml" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Provider.TranscribeModel != "whisper-large" {
		t.Errorf("Provider.TranscribeModel = %q", cfg.Provider.TranscribeModel)
	}
	if cfg.Extract.Strict {
		t.Error("Extract.Strict = true, want false")
	}
}

func TestInvalidInt(t *testing.T) {
	clearKeyEnv(t)
	path := writeTempConfig(t, "config.json", `{"server.port": "not-a-port"}`)

	if _, err := loadWith(newFileBackend(path), noSecrets); err == nil {
		t.Fatal("expected error for invalid integer")
	}
}

func TestSetKey(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			clearKeyEnv(t)
			path := filepath.Join(t.TempDir(), "sub", name)

			if err := setKey(newFileBackend(path), "server.port", "7000"); err != nil {
				t.Fatalf("setKey: %v", err)
			}
			if err := setKey(newFileBackend(path), "extract.strict", "false"); err != nil {
				t.Fatalf("setKey: %v", err)
			}

			cfg, err := loadWith(newFileBackend(path), noSecrets)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if cfg.Server.Port != 7000 || cfg.Extract.Strict {
				t.Errorf("after set: port %d strict %v", cfg.Server.Port, cfg.Extract.Strict)
			}
		})
	}
}

func TestUnsetKey(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := setKey(newFileBackend(path), "provider.chat_model", "gpt-test"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := unsetKey(newFileBackend(path), "provider.chat_model"); err != nil {
		t.Fatalf("unsetKey: %v", err)
	}

	cfg, err := loadWith(newFileBackend(path), noSecrets)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.ChatModel != "gpt-4o-mini" {
		t.Errorf("ChatModel = %q, want default after unset", cfg.Provider.ChatModel)
	}
	if err := unsetKey(newFileBackend(path), "provider.api_key"); err == nil {
		t.Error("unsetting a secret should fail")
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.json"))

	if err := setKey(b, "provider.api_key", "x"); err == nil || !strings.Contains(err.Error(), "CHATCAL_API_KEY") {
		t.Errorf("secret key: err = %v", err)
	}
	if err := setKey(b, "no.such.key", "x"); err == nil {
		t.Error("unknown key should fail")
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("non-integer port should fail")
	}
	if err := setKey(b, "extract.strict", "maybe"); err == nil {
		t.Error("non-bool strict should fail")
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Provider.APIKey = "sk-secret"
	cfg.Server.Token = "tok"

	for _, ki := range ShowAll(cfg) {
		if ki.Key == "provider.api_key" || ki.Key == "server.token" {
			t.Errorf("secret %s listed", ki.Key)
		}
		if ki.Value == "sk-secret" || ki.Value == "tok" {
			t.Errorf("secret value leaked under %s", ki.Key)
		}
	}
	for _, k := range ValidKeys() {
		if k == "provider.api_key" {
			t.Error("ValidKeys includes a secret")
		}
	}
}

func TestFileSecrets(t *testing.T) {
	s := fileSecrets{path: filepath.Join(t.TempDir(), "secrets.json")}
	if _, err := s.Get(apiKeySecret); err == nil {
		t.Error("expected error for missing secrets file")
	}
	if err := s.Set(apiKeySecret, "sk-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Get(apiKeySecret); err != nil || v != "sk-1" {
		t.Errorf("Get = %q, %v", v, err)
	}
	info, err := os.Stat(s.path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %v, want 0600", perm)
	}
}
