package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Reader  ReaderConfig  `yaml:"reader" mapstructure:"reader"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
	State   StateConfig   `yaml:"state" mapstructure:"state"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ReaderConfig represents the reader backend API configuration
type ReaderConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	UserID  string        `yaml:"user_id" mapstructure:"user_id"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig represents stats cache tuning
type CacheConfig struct {
	MaxEntries  int           `yaml:"max_entries" mapstructure:"max_entries"`
	ShortTTL    time.Duration `yaml:"short_ttl" mapstructure:"short_ttl"`
	DefaultTTL  time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	ProgressTTL time.Duration `yaml:"progress_ttl" mapstructure:"progress_ttl"`
}

// RefreshConfig represents the periodic silent refresh schedule
type RefreshConfig struct {
	Enabled *bool  `yaml:"enabled" mapstructure:"enabled"`
	Spec    string `yaml:"spec" mapstructure:"spec"`
}

// StateConfig represents local state persistence configuration
type StateConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // Empty = in-memory only
}

// LogConfig represents logging configuration with rotation support
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`               // Log file path (empty = console only)
	Level      string `yaml:"level" mapstructure:"level"`             // Log level (debug, info, warn, error)
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // Max size in MB before rotation
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // Max age in days to keep files
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // Max number of old files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // Compress old log files
}

// DeepCopy returns a deep copy of the configuration
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}

	copyCfg := &Config{}
	if err := copier.CopyWithOption(copyCfg, c, copier.Option{DeepCopy: true}); err != nil {
		// Copying between identical struct types cannot fail; fall back to
		// a shallow copy rather than returning nil.
		shallow := *c
		return &shallow
	}
	return copyCfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Reader.BaseURL == "" {
		return fmt.Errorf("reader base_url cannot be empty")
	}

	if c.Reader.Timeout < 0 {
		return fmt.Errorf("reader timeout must be non-negative")
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be greater than 0")
	}

	if c.Cache.ShortTTL <= 0 || c.Cache.DefaultTTL <= 0 || c.Cache.ProgressTTL <= 0 {
		return fmt.Errorf("cache TTLs must be greater than 0")
	}

	if c.Refresh.Enabled != nil && *c.Refresh.Enabled && c.Refresh.Spec == "" {
		return fmt.Errorf("refresh spec cannot be empty when refresh is enabled")
	}

	if c.Log.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		isValid := false
		for _, level := range validLevels {
			if c.Log.Level == level {
				isValid = true
				break
			}
		}
		if !isValid {
			return fmt.Errorf("log.level must be one of: debug, info, warn, error")
		}
	}

	if c.Log.MaxSize < 0 {
		return fmt.Errorf("log.max_size must be non-negative")
	}

	if c.Log.MaxAge < 0 {
		return fmt.Errorf("log.max_age must be non-negative")
	}

	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}

// ChangeCallback represents a function called when configuration changes
type ChangeCallback func(oldConfig, newConfig *Config)

// Manager manages configuration state and persistence
type Manager struct {
	current    *Config
	configFile string
	mutex      sync.RWMutex
	callbacks  []ChangeCallback
}

// NewManager creates a new configuration manager
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// UpdateConfig updates the current configuration (thread-safe)
func (m *Manager) UpdateConfig(config *Config) error {
	m.mutex.Lock()
	// Take a deep copy of the old config so callbacks get an immutable snapshot
	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	// Notify callbacks after releasing the lock
	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// OnConfigChange registers a callback to be called when configuration changes
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ReloadConfig reloads configuration from file and notifies change
// callbacks. A file that fails to parse or validate leaves the current
// configuration untouched.
func (m *Manager) ReloadConfig() error {
	m.mutex.Lock()

	viper.SetConfigFile(m.configFile)

	if err := viper.ReadInConfig(); err != nil {
		m.mutex.Unlock()
		return fmt.Errorf("error reading config file %s: %w", m.configFile, err)
	}

	config := DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		m.mutex.Unlock()
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		m.mutex.Unlock()
		return fmt.Errorf("config validation failed: %w", err)
	}

	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	// Notify callbacks after releasing the lock
	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// SaveConfig saves the current configuration to file
func (m *Manager) SaveConfig() error {
	m.mutex.RLock()
	config := m.current
	m.mutex.RUnlock()

	if config == nil {
		return fmt.Errorf("no configuration to save")
	}

	return SaveToFile(config, m.configFile)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	refreshEnabled := true

	return &Config{
		Reader: ReaderConfig{
			BaseURL: "http://localhost:3000/api",
			APIKey:  "",
			UserID:  "",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries:  1024,
			ShortTTL:    15 * time.Second,
			DefaultTTL:  30 * time.Second,
			ProgressTTL: 25 * time.Second,
		},
		Refresh: RefreshConfig{
			Enabled: &refreshEnabled,
			Spec:    "@every 5m",
		},
		State: StateConfig{
			Path: "statskit.db",
		},
		Log: LogConfig{
			File:       "",     // Empty = console only
			Level:      "info", // Default log level
			MaxSize:    100,    // 100MB max size
			MaxAge:     30,     // Keep for 30 days
			MaxBackups: 10,     // Keep 10 old files
			Compress:   true,   // Compress old files
		},
	}
}

// SaveToFile saves a configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from file and merges with defaults
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if configFile != "" {
			// If a specific config file was provided but couldn't be read, return error
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		// No config file found - return helpful error
		return nil, fmt.Errorf("no configuration file found. Please create config.yaml or use --config flag")
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// GetConfigFilePath returns the configuration file path used by viper
func GetConfigFilePath() string {
	return viper.ConfigFileUsed()
}
