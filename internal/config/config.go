// Package config handles configuration loading for nanogenius.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"

	"github.com/diogo/nanogenius/internal/models"
)

// Storage backends
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`              // "dark", "light", "dracula", "notty"
	EnableEmoji      bool   `json:"enable_emoji"`       // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"`  // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap"`         // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links"` // Render links inline in tables
}

// StorageConfig selects where the session collection is persisted
type StorageConfig struct {
	Backend string `json:"backend"`       // "file", "sqlite" or "memory"
	Dir     string `json:"dir,omitempty"` // defaults to the config directory
}

// SpeechConfig configures the external speech-to-text command.
// The command must record one utterance and print the transcript on stdout.
type SpeechConfig struct {
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
	Language string   `json:"language"`
}

// APIConfig selects the Gemini endpoint. Backend is "gemini" (default) or
// "vertex"; BaseURL and Version point the client at a proxy or gateway.
type APIConfig struct {
	Backend string `json:"backend,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Version string `json:"version,omitempty"`
}

// ServerConfig configures `nanogenius serve`
type ServerConfig struct {
	Listen string `json:"listen"`
}

// Config represents the user configuration
type Config struct {
	// APIKey is normally supplied through the environment rather than the file.
	APIKey      string         `json:"api_key,omitempty"`
	TextModel   string         `json:"text_model"`
	ImageModel  string         `json:"image_model"`
	LogLevel    string         `json:"log_level"`
	TUITheme    string         `json:"tui_theme,omitempty"`
	DownloadDir string         `json:"download_dir,omitempty"` // Directory for saving images
	API         APIConfig      `json:"api,omitempty"`
	Storage     StorageConfig  `json:"storage"`
	Speech      SpeechConfig   `json:"speech"`
	Server      ServerConfig   `json:"server"`
	Markdown    MarkdownConfig `json:"markdown,omitempty"`
}

// envOverrides mirrors the settings that may come from the environment.
// Each key is read as NANOGENIUS_<NAME>, falling back to the bare name.
type envOverrides struct {
	APIKey        string `envconfig:"API_KEY"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	TextModel     string `envconfig:"TEXT_MODEL"`
	ImageModel    string `envconfig:"IMAGE_MODEL"`
	APIBackend    string `envconfig:"API_BACKEND"`
	BaseURL       string `envconfig:"BASE_URL"`
	Storage       string `envconfig:"STORAGE"`
	StorageDir    string `envconfig:"STORAGE_DIR"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	SpeechCommand string `envconfig:"SPEECH_COMMAND"`
	Listen        string `envconfig:"LISTEN"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	configDir, _ := GetConfigDir()
	return Config{
		TextModel:   models.ModelTextDefault,
		ImageModel:  models.ModelImageDefault,
		LogLevel:    "info",
		TUITheme:    "tokyonight",
		DownloadDir: filepath.Join(configDir, "images"),
		Storage: StorageConfig{
			Backend: StorageFile,
		},
		Speech: SpeechConfig{
			Language: "en-US",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8080",
		},
		Markdown: DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path.
// NANOGENIUS_HOME overrides the default ~/.nanogenius.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("NANOGENIUS_HOME"); dir != "" {
		return filepath.Abs(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".nanogenius"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory may hold an API key and chat history
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the path to the log file used in TUI mode
func GetLogPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "nanogenius.log"), nil
}

// StorageDir returns the directory the storage backend writes to
func StorageDir(cfg Config) (string, error) {
	if cfg.Storage.Dir != "" {
		return cfg.Storage.Dir, nil
	}
	return GetConfigDir()
}

// GetDownloadDir returns the download directory from config, creating it if necessary
func GetDownloadDir(cfg Config) (string, error) {
	dir := cfg.DownloadDir
	if dir == "" {
		configDir, err := GetConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(configDir, "images")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	return dir, nil
}

// LoadConfig loads the configuration from disk and applies environment overrides
func LoadConfig() (Config, error) {
	cfg, err := loadFile()
	if envErr := ApplyEnv(&cfg); envErr != nil && err == nil {
		err = envErr
	}
	return cfg, err
}

func loadFile() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if config doesn't exist
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("nanogenius", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	switch {
	case env.APIKey != "":
		cfg.APIKey = env.APIKey
	case env.GeminiAPIKey != "":
		cfg.APIKey = env.GeminiAPIKey
	}

	setIfNotEmpty(&cfg.TextModel, env.TextModel)
	setIfNotEmpty(&cfg.ImageModel, env.ImageModel)
	setIfNotEmpty(&cfg.API.Backend, env.APIBackend)
	setIfNotEmpty(&cfg.API.BaseURL, env.BaseURL)
	setIfNotEmpty(&cfg.Storage.Backend, env.Storage)
	setIfNotEmpty(&cfg.Storage.Dir, env.StorageDir)
	setIfNotEmpty(&cfg.LogLevel, env.LogLevel)
	setIfNotEmpty(&cfg.Speech.Command, env.SpeechCommand)
	setIfNotEmpty(&cfg.Server.Listen, env.Listen)

	return nil
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// SaveConfig saves the configuration to disk. The API key is never written.
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	cfg.APIKey = ""
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// AvailableStorageBackends returns the accepted storage backend names
func AvailableStorageBackends() []string {
	return []string{StorageFile, StorageSQLite, StorageMemory}
}
