// Package config loads the tool configuration from YAML with
// environment overrides. Settings merge over built-in defaults; a
// missing file is not an error.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	"gopkg.in/yaml.v3"

	"sigil/keytool/pkg/packet"
)

type Config struct {
	HomeDir        string   `yaml:"homeDir"`
	DefaultSigners []string `yaml:"defaultSigners"`
	HashAlgorithm  string   `yaml:"hashAlgorithm"`
	DefaultPrefs   []string `yaml:"defaultPrefs"`
	Keyservers     []string `yaml:"keyservers"`
	MetricsAddress string   `yaml:"metricsAddress"`
	LogLevel       string   `yaml:"logLevel"`
	Unlock         Unlock   `yaml:"unlock"`
}

// Unlock tunes the passphrase envelope and its attempt limiting.
type Unlock struct {
	KDFTime           uint32  `yaml:"kdfTime"`
	KDFMemoryKB       uint32  `yaml:"kdfMemoryKB"`
	KDFThreads        uint8   `yaml:"kdfThreads"`
	AttemptsPerMinute float64 `yaml:"attemptsPerMinute"`
	AttemptBurst      int     `yaml:"attemptBurst"`
}

func Default() Config {
	return Config{
		HashAlgorithm: "sha256",
		DefaultPrefs:  []string{"S2", "H8", "Z1"},
		LogLevel:      "info",
		Unlock: Unlock{
			KDFTime:           2,
			KDFMemoryKB:       64 * 1024,
			KDFThreads:        1,
			AttemptsPerMinute: 6,
			AttemptBurst:      3,
		},
	}
}

// Load reads the first usable config file: the explicit path when
// given, else $SIGIL_CONFIG, else config.yaml in the sigil home
// directory, else configs/sigil.yaml relative to the working
// directory. An explicit path that cannot be read or parsed is an
// error; fallback candidates are skipped silently.
func Load(configPath string) (Config, error) {
	cfg := Default()
	// Env is applied before the candidate scan so SIGIL_HOME decides
	// where config.yaml is looked up, and again after the merge so
	// the environment wins over the file.
	ApplyEnvOverrides(&cfg)
	if err := resolveHome(&cfg); err != nil {
		return cfg, err
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		Merge(&cfg, parsed)
	} else {
		candidates := make([]string, 0, 3)
		if env := strings.TrimSpace(os.Getenv("SIGIL_CONFIG")); env != "" {
			candidates = append(candidates, env)
		}
		candidates = append(candidates,
			filepath.Join(cfg.HomeDir, "config.yaml"),
			filepath.Join("configs", "sigil.yaml"),
		)
		for _, path := range candidates {
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var parsed Config
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				continue
			}
			Merge(&cfg, parsed)
			break
		}
	}

	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func resolveHome(cfg *Config) error {
	if cfg.HomeDir != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.HomeDir = filepath.Join(home, ".sigil")
	return nil
}

func Merge(dst *Config, src Config) {
	if src.HomeDir != "" {
		dst.HomeDir = src.HomeDir
	}
	if src.DefaultSigners != nil {
		dst.DefaultSigners = src.DefaultSigners
	}
	if src.HashAlgorithm != "" {
		dst.HashAlgorithm = src.HashAlgorithm
	}
	if src.DefaultPrefs != nil {
		dst.DefaultPrefs = src.DefaultPrefs
	}
	if src.Keyservers != nil {
		dst.Keyservers = src.Keyservers
	}
	if src.MetricsAddress != "" {
		dst.MetricsAddress = src.MetricsAddress
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Unlock.KDFTime != 0 {
		dst.Unlock.KDFTime = src.Unlock.KDFTime
	}
	if src.Unlock.KDFMemoryKB != 0 {
		dst.Unlock.KDFMemoryKB = src.Unlock.KDFMemoryKB
	}
	if src.Unlock.KDFThreads != 0 {
		dst.Unlock.KDFThreads = src.Unlock.KDFThreads
	}
	if src.Unlock.AttemptsPerMinute != 0 {
		dst.Unlock.AttemptsPerMinute = src.Unlock.AttemptsPerMinute
	}
	if src.Unlock.AttemptBurst != 0 {
		dst.Unlock.AttemptBurst = src.Unlock.AttemptBurst
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if home := strings.TrimSpace(os.Getenv("SIGIL_HOME")); home != "" {
		cfg.HomeDir = home
	}
	if level := strings.TrimSpace(os.Getenv("SIGIL_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if addr := strings.TrimSpace(os.Getenv("SIGIL_METRICS_ADDR")); addr != "" {
		cfg.MetricsAddress = addr
	}
	if hash := strings.TrimSpace(os.Getenv("SIGIL_HASH")); hash != "" {
		cfg.HashAlgorithm = hash
	}
}

func (c Config) Validate() error {
	switch c.HashAlgorithm {
	case "sha256", "sha512", "sha3-256":
	default:
		return fmt.Errorf("unknown hash algorithm %q", c.HashAlgorithm)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if _, err := c.Preferences(); err != nil {
		return err
	}
	for _, addr := range c.Keyservers {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("keyserver %q: %w", addr, err)
		}
	}
	return nil
}

// Preferences parses the configured default preference list.
func (c Config) Preferences() ([]packet.Preference, error) {
	out := make([]packet.Preference, 0, len(c.DefaultPrefs))
	for _, s := range c.DefaultPrefs {
		p, err := packet.ParsePreference(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// RingDir is where the key rings live.
func (c Config) RingDir() string { return c.HomeDir }

// TrustPath is the owner-trust store file.
func (c Config) TrustPath() string { return filepath.Join(c.HomeDir, "trustdb.json") }

func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
