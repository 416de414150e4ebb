// config.go: settings for the RespireAI web frontend. Defines the settings
// struct and the functions to load and persist it.
package conf

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // path to log file
	Rotation RotationType // rotation type
	MaxSize  int64        // max size in bytes for RotationSize
}

// RotationType defines the type of log rotation
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// WebServerSettings contains settings for the web server
type WebServerSettings struct {
	Debug   bool      // true to enable debug mode
	Host    string    // host to listen on
	Port    string    // port to listen on
	AutoTLS bool      // true to enable AutoTLS via Let's Encrypt
	TLSHost string    // hostname for the AutoTLS certificate
	Log     LogConfig // web server log settings
}

// InferenceSettings describes the remote prediction service
type InferenceSettings struct {
	BaseURL string        // base URL of the inference API
	Timeout time.Duration // per-request timeout, zero means client default
}

// SessionSettings controls the cookie-backed session store
type SessionSettings struct {
	Secret string // secret for signing session cookies
	MaxAge int    // session duration in seconds, zero means session cookie
	Secure bool   // true to require HTTPS for session cookies
}

// ReportSettings controls exported report documents
type ReportSettings struct {
	ClinicName string // organisation name printed in report headers
}

// Settings contains all configuration options for the application
type Settings struct {
	Debug bool // true to enable debug output

	Main struct {
		Name string // name shown in page titles and logs
	}

	WebServer WebServerSettings
	Inference InferenceSettings
	Session   SessionSettings
	Report    ReportSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// Settings instance and stores it as the current settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a default config file to the first default
// config path and reads it back in.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	// If the session secret is not set, generate a random one so cookie
	// signatures survive restarts.
	if viper.GetString("session.secret") == "" {
		viper.Set("session.secret", GenerateRandomSecret())
	}

	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error unmarshaling default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// ValidateSettings performs basic sanity checks on loaded settings.
func ValidateSettings(settings *Settings) error {
	if settings.Inference.BaseURL == "" {
		return fmt.Errorf("inference.baseurl must not be empty")
	}
	if settings.WebServer.Port == "" {
		return fmt.Errorf("webserver.port must not be empty")
	}
	if settings.Session.MaxAge < 0 {
		return fmt.Errorf("session.maxage must not be negative")
	}
	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SetTestSettings installs a settings instance directly, bypassing viper.
// Intended for tests.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	once.Do(func() {})
	settingsInstance = settings
}

// SaveYAMLConfig writes the settings to the YAML configuration file.
// The write goes through a temporary file so it is atomic.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// suitable for signing session cookies. The output is 43 characters long,
// providing 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// rand.Read never fails on supported platforms
		log.Fatalf("Error generating random secret: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
