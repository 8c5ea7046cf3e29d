package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	enabled := true

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "empty base url - error",
			mutate:      func(c *Config) { c.Reader.BaseURL = "" },
			wantErr:     true,
			errContains: "base_url cannot be empty",
		},
		{
			name:        "zero cache entries - error",
			mutate:      func(c *Config) { c.Cache.MaxEntries = 0 },
			wantErr:     true,
			errContains: "max_entries must be greater than 0",
		},
		{
			name:        "zero ttl - error",
			mutate:      func(c *Config) { c.Cache.ShortTTL = 0 },
			wantErr:     true,
			errContains: "TTLs must be greater than 0",
		},
		{
			name: "enabled refresh without spec - error",
			mutate: func(c *Config) {
				c.Refresh.Enabled = &enabled
				c.Refresh.Spec = ""
			},
			wantErr:     true,
			errContains: "spec cannot be empty",
		},
		{
			name:        "bad log level - error",
			mutate:      func(c *Config) { c.Log.Level = "verbose" },
			wantErr:     true,
			errContains: "log.level must be one of",
		},
		{
			name:        "negative rotation size - error",
			mutate:      func(c *Config) { c.Log.MaxSize = -1 },
			wantErr:     true,
			errContains: "max_size must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeepCopyIsIndependent(t *testing.T) {
	original := DefaultConfig()
	cp := original.DeepCopy()

	cp.Reader.BaseURL = "http://other:9000"
	*cp.Refresh.Enabled = false

	assert.Equal(t, "http://localhost:3000/api", original.Reader.BaseURL)
	assert.True(t, *original.Refresh.Enabled, "pointer fields must be copied, not shared")
}

func TestManagerNotifiesCallbacks(t *testing.T) {
	mgr := NewManager(DefaultConfig(), "")

	var gotOld, gotNew *Config
	mgr.OnConfigChange(func(oldCfg, newCfg *Config) {
		gotOld = oldCfg
		gotNew = newCfg
	})

	updated := DefaultConfig()
	updated.Reader.BaseURL = "http://changed:3000"
	require.NoError(t, mgr.UpdateConfig(updated))

	require.NotNil(t, gotOld)
	require.NotNil(t, gotNew)
	assert.Equal(t, "http://localhost:3000/api", gotOld.Reader.BaseURL)
	assert.Equal(t, "http://changed:3000", gotNew.Reader.BaseURL)
	assert.Same(t, updated, mgr.GetConfig())
}

func TestManagerReloadNotifiesCallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	initial := DefaultConfig()
	require.NoError(t, SaveToFile(initial, path))
	mgr := NewManager(initial, path)

	var gotNew *Config
	mgr.OnConfigChange(func(oldCfg, newCfg *Config) {
		gotNew = newCfg
	})

	changed := DefaultConfig()
	changed.Cache.ShortTTL = 5 * time.Second
	require.NoError(t, SaveToFile(changed, path))

	require.NoError(t, mgr.ReloadConfig())
	require.NotNil(t, gotNew)
	assert.Equal(t, 5*time.Second, gotNew.Cache.ShortTTL)
	assert.Equal(t, 5*time.Second, mgr.GetConfig().Cache.ShortTTL)
}

func TestManagerReloadKeepsConfigOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	broken := DefaultConfig()
	broken.Cache.MaxEntries = 0
	require.NoError(t, SaveToFile(broken, path))

	current := DefaultConfig()
	mgr := NewManager(current, path)

	var fired bool
	mgr.OnConfigChange(func(oldCfg, newCfg *Config) { fired = true })

	assert.Error(t, mgr.ReloadConfig())
	assert.False(t, fired)
	assert.Same(t, current, mgr.GetConfig())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Reader.BaseURL = "http://reader:3000/api"
	cfg.Reader.APIKey = "secret"
	cfg.State.Path = filepath.Join(dir, "state.db")
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://reader:3000/api", loaded.Reader.BaseURL)
	assert.Equal(t, "secret", loaded.Reader.APIKey)
	assert.Equal(t, cfg.State.Path, loaded.State.Path)
}

func TestLoadConfigMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reader:\n  base_url: http://reader:3000\n"), 0644))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://reader:3000", loaded.Reader.BaseURL)
	assert.Equal(t, 1024, loaded.Cache.MaxEntries, "unset keys keep defaults")
	assert.Equal(t, "@every 5m", loaded.Refresh.Spec)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
