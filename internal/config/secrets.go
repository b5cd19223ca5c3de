package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const apiKeySecret = "provider_api_key"

func secretsFilePath() string {
	return filepath.Join(configDir(), "secrets.json")
}

// fileSecrets keeps secrets in a 0600 JSON file next to the config file.
type fileSecrets struct {
	path string
}

func (s fileSecrets) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (s fileSecrets) Get(name string) (string, error) {
	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	val, ok := secrets[name]
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return val, nil
}

func (s fileSecrets) Set(name, value string) error {
	secrets, err := s.read()
	if err != nil || secrets == nil {
		secrets = make(map[string]string)
	}
	secrets[name] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

// SetAPIKey stores the provider API key in the secrets file.
func SetAPIKey(key string) error {
	return fileSecrets{path: secretsFilePath()}.Set(apiKeySecret, key)
}
