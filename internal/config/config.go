package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General      GeneralConfig      `toml:"general"`
	Web          WebConfig          `toml:"web"`
	Capabilities CapabilitiesConfig `toml:"capabilities"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	SandboxDir   string `toml:"sandbox_dir"`
	DatabasePath string `toml:"database_path"`
	JWTSecret    string `toml:"jwt_secret"`
}

// WebConfig holds HTTP server settings
type WebConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// CapabilitiesConfig holds credentials for the external capabilities.
// Plan decomposition is mandatory; an empty key for any other capability
// simply disables its stage.
type CapabilitiesConfig struct {
	GeminiAPIKey      string `toml:"gemini_api_key"`
	FreepikAPIKey     string `toml:"freepik_api_key"`
	YutoriAPIKey      string `toml:"yutori_api_key"`
	FabricateAPIKey   string `toml:"fabricate_api_key"`
	TinyFishAPIKey    string `toml:"tinyfish_api_key"`
	WebhookURL        string `toml:"webhook_url"`
	StyleReferenceURL string `toml:"style_reference_url"`
	ScoutDigestCron   string `toml:"scout_digest_cron"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			SandboxDir:   filepath.Join(home, ".ngenesis", "agents"),
			DatabasePath: filepath.Join(home, ".ngenesis", "ngenesis.db"),
			JWTSecret:    "ngenesis-secret-key-change-in-production",
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Capabilities: CapabilitiesConfig{
			ScoutDigestCron: "*/5 * * * *",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
// Environment variables override capability credentials so deployments
// can keep secrets out of the config file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.SandboxDir = ExpandPath(cfg.General.SandboxDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"GEMINI_API_KEY", &c.Capabilities.GeminiAPIKey},
		{"FREEPIK_API_KEY", &c.Capabilities.FreepikAPIKey},
		{"YUTORI_API_KEY", &c.Capabilities.YutoriAPIKey},
		{"FABRICATE_API_KEY", &c.Capabilities.FabricateAPIKey},
		{"TINYFISH_API_KEY", &c.Capabilities.TinyFishAPIKey},
		{"WEBHOOK_URL", &c.Capabilities.WebhookURL},
		{"STYLE_REFERENCE_URL", &c.Capabilities.StyleReferenceURL},
		{"JWT_SECRET", &c.General.JWTSecret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ngenesis", "config.toml")
}
