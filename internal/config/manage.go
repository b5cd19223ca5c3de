package config

import "fmt"

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every non-secret key with its effective value.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range settings {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.get(cfg))})
	}
	return result
}

// SetKey validates value for key and writes it to the config file.
func SetKey(key, value string) error {
	return setKey(newFileBackend(configFilePath()), key, value)
}

func setKey(b ConfigBackend, key, value string) error {
	s, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, ValidKeys())
	}
	if s.secret {
		if key == "provider.api_key" {
			return fmt.Errorf("%s is a secret: use \"chatcal config set-api-key\" or %s", key, s.env)
		}
		return fmt.Errorf("%s is a secret: set it with %s", key, s.env)
	}

	v, err := s.parse(value)
	if err != nil {
		return err
	}
	if i, ok := v.(int); ok {
		return b.SetInt(key, i)
	}
	return b.SetString(key, fmt.Sprint(v))
}

// UnsetKey removes key from the config file so its default applies again.
func UnsetKey(key string) error {
	return unsetKey(newFileBackend(configFilePath()), key)
}

func unsetKey(b ConfigBackend, key string) error {
	s, ok := lookupSetting(key)
	if !ok || s.secret {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, ValidKeys())
	}
	return b.Delete(key)
}

// ValidKeys returns the names accepted by SetKey.
func ValidKeys() []string {
	var keys []string
	for _, s := range settings {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// Path returns the config file that Load reads and SetKey writes.
func Path() string {
	return configFilePath()
}
