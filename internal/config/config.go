package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags are the raw root-command flags before merging with the config
// file and defaults.
type GlobalFlags struct {
	ConfigPath string
	Timeout    string
	Retries    int
	RPCURL     string
	BlockTag   string
	RouterURL  string
	NoCache    bool
}

// Settings is the merged runtime configuration. Precedence: flags over file
// over defaults.
type Settings struct {
	Timeout       time.Duration
	Retries       int
	RPCURL        string
	BlockTag      string
	RouterBaseURL string
	CacheEnabled  bool
	CachePath     string
	CacheLockPath string
	CacheTTL      time.Duration
	RPCByChainID  map[int64]string
}

type fileConfig struct {
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Router  struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"router"`
	RPC map[int64]string `yaml:"rpc"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		TTL      string `yaml:"ttl"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
}

const (
	defaultTimeout  = 20 * time.Second
	defaultRetries  = 1
	defaultCacheTTL = 24 * time.Hour
)

// Load merges flags, an optional YAML file and defaults into Settings.
func Load(flags GlobalFlags) (Settings, error) {
	settings := Settings{
		Timeout:      defaultTimeout,
		Retries:      defaultRetries,
		CacheEnabled: true,
		CacheTTL:     defaultCacheTTL,
		RPCByChainID: map[int64]string{},
	}

	if home, err := os.UserHomeDir(); err == nil {
		settings.CachePath = filepath.Join(home, ".comet-kit", "cache.db")
		settings.CacheLockPath = filepath.Join(home, ".comet-kit", "cache.lock")
	} else {
		settings.CacheEnabled = false
	}

	path := strings.TrimSpace(flags.ConfigPath)
	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".comet-kit", "config.yaml")
		}
	}
	if path != "" {
		file, err := readFileConfig(path)
		if err != nil {
			if explicit || !os.IsNotExist(err) {
				return Settings{}, err
			}
		} else {
			if err := applyFileConfig(&settings, file); err != nil {
				return Settings{}, err
			}
		}
	}

	if strings.TrimSpace(flags.Timeout) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(flags.Timeout))
		if err != nil || d <= 0 {
			return Settings{}, fmt.Errorf("invalid --timeout value %q", flags.Timeout)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if strings.TrimSpace(flags.RPCURL) != "" {
		settings.RPCURL = strings.TrimSpace(flags.RPCURL)
	}
	if strings.TrimSpace(flags.BlockTag) != "" {
		settings.BlockTag = strings.TrimSpace(flags.BlockTag)
	}
	if strings.TrimSpace(flags.RouterURL) != "" {
		settings.RouterBaseURL = strings.TrimSpace(flags.RouterURL)
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}

	return settings, nil
}

func readFileConfig(path string) (fileConfig, error) {
	var file fileConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return file, fmt.Errorf("parse config %s: %w", path, err)
	}
	return file, nil
}

func applyFileConfig(settings *Settings, file fileConfig) error {
	if strings.TrimSpace(file.Timeout) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(file.Timeout))
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid timeout in config: %q", file.Timeout)
		}
		settings.Timeout = d
	}
	if file.Retries != nil {
		if *file.Retries < 0 {
			return fmt.Errorf("retries must be >= 0")
		}
		settings.Retries = *file.Retries
	}
	if strings.TrimSpace(file.Router.BaseURL) != "" {
		settings.RouterBaseURL = strings.TrimSpace(file.Router.BaseURL)
	}
	for chainID, url := range file.RPC {
		if strings.TrimSpace(url) != "" {
			settings.RPCByChainID[chainID] = strings.TrimSpace(url)
		}
	}
	if file.Cache.Enabled != nil {
		settings.CacheEnabled = *file.Cache.Enabled
	}
	if strings.TrimSpace(file.Cache.TTL) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(file.Cache.TTL))
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid cache ttl in config: %q", file.Cache.TTL)
		}
		settings.CacheTTL = d
	}
	if strings.TrimSpace(file.Cache.Path) != "" {
		settings.CachePath = strings.TrimSpace(file.Cache.Path)
	}
	if strings.TrimSpace(file.Cache.LockPath) != "" {
		settings.CacheLockPath = strings.TrimSpace(file.Cache.LockPath)
	}
	return nil
}

// ResolveRPC picks the RPC URL for a chain: the --rpc-url flag wins, then the
// config file map, then nothing (the registry default applies downstream).
func (s Settings) ResolveRPC(chainID int64) string {
	if s.RPCURL != "" {
		return s.RPCURL
	}
	return s.RPCByChainID[chainID]
}
