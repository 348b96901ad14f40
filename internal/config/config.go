// Package config handles loading and validating gateway configuration.
//
// Two different things live here on purpose. Static configuration (ports,
// timeouts, per-backend credentials and base URLs) is resolved once at
// startup from config.yaml plus environment overrides — it never changes
// for the life of the process. The mutable per-tier routing table lives in
// RuntimeConfig (runtime.go) instead: it is read and written continuously
// while the server is running and is persisted to its own JSON file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the static, process-lifetime configuration for the gateway.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Anthropic     AnthropicConfig     `koanf:"anthropic"`
	GLM           TieredAPIConfig     `koanf:"glm"`
	GeminiBridge  SubprocessConfig    `koanf:"gemini_bridge"`
	CopilotBridge LocalConfig         `koanf:"copilot_bridge"`
	OpenRouter    TieredConfig        `koanf:"openrouter"`
	Custom        TieredConfig        `koanf:"custom"`
	RuntimeFile   string              `koanf:"runtime_file"`
	Favorites     FavoritesFileConfig `koanf:"favorites"`
	Usage         UsageFileConfig     `koanf:"usage"`
	Credentials   CredentialsConfig   `koanf:"credentials"`
}

// ServerConfig holds HTTP server and proxy-wide settings.
type ServerConfig struct {
	Port           int           `koanf:"port"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ProxyAPIKey    string        `koanf:"proxy_api_key"`
	LogFile        string        `koanf:"log_file"`
}

// AnthropicConfig holds the native Anthropic backend's settings. There is
// no api_key here: authentication for this backend comes from the OAuth
// credential manager, not a static key.
type AnthropicConfig struct {
	BaseURL     string `koanf:"base_url"`
	HaikuModel  string `koanf:"haiku_model"`
	SonnetModel string `koanf:"sonnet_model"`
	OpusModel   string `koanf:"opus_model"`
}

// TieredAPIConfig is for backends that need a distinct api_key + base_url
// per tier (GLM/Z.AI routes Haiku, Sonnet and Opus to potentially
// different deployments).
type TieredAPIConfig struct {
	Haiku  TierEndpoint `koanf:"haiku"`
	Sonnet TierEndpoint `koanf:"sonnet"`
	Opus   TierEndpoint `koanf:"opus"`
}

// TierEndpoint is one tier's api_key + base_url + model for a TieredAPIConfig backend.
type TierEndpoint struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// TieredConfig is for backends with one shared api_key + base_url but a
// model name per tier (OpenRouter, the generic custom backend).
type TieredConfig struct {
	APIKey      string `koanf:"api_key"`
	BaseURL     string `koanf:"base_url"`
	SkipV1      bool   `koanf:"skip_v1"`
	HaikuModel  string `koanf:"haiku_model"`
	SonnetModel string `koanf:"sonnet_model"`
	OpusModel   string `koanf:"opus_model"`
}

// SubprocessConfig is for backends the supervisor spawns locally
// (gemini_bridge).
type SubprocessConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Port        int    `koanf:"port"`
	HaikuModel  string `koanf:"haiku_model"`
	SonnetModel string `koanf:"sonnet_model"`
	OpusModel   string `koanf:"opus_model"`
}

// LocalConfig is for backends that proxy to an already-running local
// helper process we don't manage (copilot_bridge).
type LocalConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BaseURL     string `koanf:"base_url"`
	HaikuModel  string `koanf:"haiku_model"`
	SonnetModel string `koanf:"sonnet_model"`
	OpusModel   string `koanf:"opus_model"`
}

// FavoritesFileConfig points at the favorites snapshot store.
type FavoritesFileConfig struct {
	Path string `koanf:"path"`
}

// UsageFileConfig points at the usage tracker's persistence file.
type UsageFileConfig struct {
	Path string `koanf:"path"`
}

// CredentialsConfig points at the externally-owned OAuth credentials file.
type CredentialsConfig struct {
	Path string `koanf:"path"`
}

// envPrefix is the prefix koanf looks for when layering environment
// variables over the YAML file, e.g. CLAUDE_GATEWAY_SERVER_PORT.
const envPrefix = "CLAUDE_GATEWAY_"

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, applies defaults, and returns a fully populated Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	k := koanf.New(".")

	// The config file is optional — the gateway can run on env vars and
	// defaults alone. Only a malformed file is an error.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandEnvRefs(&cfg)

	return &cfg, nil
}

// defaultConfig mirrors the fallback values the original Python proxy
// hard-codes in core/config.py, translated to this gateway's vocabulary
// (antigravity -> gemini_bridge, copilot -> copilot_bridge).
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:           8082,
			ReadTimeout:    300 * time.Second,
			WriteTimeout:   300 * time.Second,
			RequestTimeout: 300 * time.Second,
		},
		Anthropic: AnthropicConfig{
			BaseURL:     "https://api.anthropic.com",
			HaikuModel:  "claude-3-5-haiku-20241022",
			SonnetModel: "claude-sonnet-4-5-20250929",
			OpusModel:   "claude-opus-4-20250514",
		},
		GLM: TieredAPIConfig{
			Haiku:  TierEndpoint{Model: "glm-4.7"},
			Sonnet: TierEndpoint{Model: "glm-4.7"},
			Opus:   TierEndpoint{Model: "glm-4.7"},
		},
		GeminiBridge: SubprocessConfig{
			Port:        8081,
			HaikuModel:  "gemini-3-flash",
			SonnetModel: "gemini-3-pro-high",
			OpusModel:   "gemini-3-pro-high",
		},
		CopilotBridge: LocalConfig{
			BaseURL:     "http://localhost:4141",
			HaikuModel:  "claude-haiku-4.5",
			SonnetModel: "claude-sonnet-4.5",
			OpusModel:   "claude-opus-4.5",
		},
		OpenRouter: TieredConfig{
			BaseURL:     "https://openrouter.ai/api",
			HaikuModel:  "anthropic/claude-haiku-4.5",
			SonnetModel: "anthropic/claude-sonnet-4.5",
			OpusModel:   "anthropic/claude-opus-4.5",
		},
		Custom: TieredConfig{
			HaikuModel:  "claude-haiku-4.5",
			SonnetModel: "claude-sonnet-4.5",
			OpusModel:   "claude-opus-4.5",
		},
		RuntimeFile: "config.json",
		Favorites:   FavoritesFileConfig{Path: "favorites.json"},
		Usage:       UsageFileConfig{Path: "token_usage.json"},
		Credentials: CredentialsConfig{Path: defaultCredentialsPath()},
	}
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude/.credentials.json"
	}
	return home + "/.claude/.credentials.json"
}

// expandEnvRefs resolves ${VAR_NAME} placeholders in fields that commonly
// carry secrets, the same convention the teacher's config loader uses for
// provider API keys.
func expandEnvRefs(cfg *Config) {
	expand := func(s string) string {
		if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
			return os.Getenv(s[2 : len(s)-1])
		}
		return s
	}
	cfg.GLM.Haiku.APIKey = expand(cfg.GLM.Haiku.APIKey)
	cfg.GLM.Sonnet.APIKey = expand(cfg.GLM.Sonnet.APIKey)
	cfg.GLM.Opus.APIKey = expand(cfg.GLM.Opus.APIKey)
	cfg.OpenRouter.APIKey = expand(cfg.OpenRouter.APIKey)
	cfg.Custom.APIKey = expand(cfg.Custom.APIKey)
	cfg.Server.ProxyAPIKey = expand(cfg.Server.ProxyAPIKey)
}
