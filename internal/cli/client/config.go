package client

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig is stored in config.yaml under the user config directory.
type GlobalConfig struct {
	APIURL     string `yaml:"api_url,omitempty" json:"api_url,omitempty"`
	SessionID  string `yaml:"session_id,omitempty" json:"session_id,omitempty"`
	UserLabel  string `yaml:"user_label,omitempty" json:"user_label,omitempty"`
	AdminToken string `yaml:"admin_token,omitempty" json:"-"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "licitai"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.yaml file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads and parses the global config file
// Returns nil config (not error) if file doesn't exist
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the config file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete config file: %w", err)
	}

	return nil
}

// SettingSource represents where a setting came from
type SettingSource string

const (
	SourceFlag         SettingSource = "flag"
	SourceEnv          SettingSource = "env"
	SourceGlobalConfig SettingSource = "global_config"
	SourceDefault      SettingSource = "default"
)

// resolve walks the cascade flag -> env -> global config -> default.
func resolve(flagValue, envName string, fromConfig func(*GlobalConfig) string, fallback string) (string, SettingSource, error) {
	if flagValue != "" {
		return flagValue, SourceFlag, nil
	}
	if v := os.Getenv(envName); v != "" {
		return v, SourceEnv, nil
	}
	config, err := LoadGlobalConfig()
	if err != nil {
		return "", SourceDefault, err
	}
	if config != nil {
		if v := fromConfig(config); v != "" {
			return v, SourceGlobalConfig, nil
		}
	}
	return fallback, SourceDefault, nil
}
