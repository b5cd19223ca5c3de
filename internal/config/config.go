package config

import "os"

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Provider ProviderConfig
	Log      LogConfig
	Client   ClientConfig
	Extract  ExtractConfig
	Agenda   AgendaConfig
}

type ServerConfig struct {
	Port int
	// Token guards the event API when non-empty.
	Token string
}

type StorageConfig struct {
	DataDir string
}

type ProviderConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	TranscribeModel string
}

type LogConfig struct {
	Level string
}

type ClientConfig struct {
	ServerURL string
}

type ExtractConfig struct {
	Strict bool
}

type AgendaConfig struct {
	Schedule string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Provider: ProviderConfig{
			BaseURL:         "https://api.openai.com/v1",
			ChatModel:       "gpt-4o-mini",
			TranscribeModel: "whisper-1",
		},
		Log: LogConfig{
			Level: "info",
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:4000",
		},
		Extract: ExtractConfig{
			Strict: true,
		},
		Agenda: AgendaConfig{
			Schedule: "0 7 * * *",
		},
	}
}

// Load reads configuration from the config file, then environment
// variables, then the secrets file.
//
// The config file is $XDG_CONFIG_HOME/chatcal/config.yaml when present,
// otherwise config.json in the same directory. Environment variables
// (CHATCAL_*) override file values. The provider API key is never read from
// the config file: it comes from CHATCAL_API_KEY, then OPENAI_API_KEY, then
// the secrets file. A missing key is not an error; the server reports it
// per request.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(name string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Provider.APIKey == "" {
		if key, err := secrets.Get(apiKeySecret); err == nil && key != "" {
			cfg.Provider.APIKey = key
		}
	}

	return cfg, nil
}
