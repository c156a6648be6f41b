package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty in the config file.
const (
	DefaultPython         = "python3"
	DefaultSystemProfiler = "system_profiler"
	DefaultProbeTimeout   = 5 * time.Second
	DefaultProbeRate      = 2.0
	DefaultProbeBurst     = 4
)

// Config holds gpuprobe configuration loaded from ~/.gpuprobe/config.yaml.
type Config struct {
	APIAddr        string   `yaml:"api_addr"`
	Python         string   `yaml:"python"`
	SystemProfiler string   `yaml:"system_profiler"`
	ProbeTimeout   Duration `yaml:"probe_timeout"`
	ProbeRate      *float64 `yaml:"probe_rate"`
	ProbeBurst     int      `yaml:"probe_burst"`
	AuditLog       string   `yaml:"audit_log"`
}

// Duration wraps time.Duration for YAML unmarshaling from strings like "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// Home returns the gpuprobe home directory (~/.gpuprobe).
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gpuprobe"), nil
}

// DefaultPath returns the default config file path: ~/.gpuprobe/config.yaml.
func DefaultPath() string {
	dir, err := Home()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path. If the file does not exist,
// it returns the default Config and no error. An empty or all-comment file
// also returns the default Config with no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ProbeRate != nil && *c.ProbeRate < 0 {
		return fmt.Errorf("probe_rate must not be negative")
	}
	if c.ProbeBurst < 0 {
		return fmt.Errorf("probe_burst must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Python == "" {
		c.Python = DefaultPython
	}
	if c.SystemProfiler == "" {
		c.SystemProfiler = DefaultSystemProfiler
	}
	if c.ProbeTimeout.Duration == 0 {
		c.ProbeTimeout.Duration = DefaultProbeTimeout
	}
	if c.ProbeRate == nil {
		rate := DefaultProbeRate
		c.ProbeRate = &rate
	}
	if c.ProbeBurst == 0 {
		c.ProbeBurst = DefaultProbeBurst
	}
	c.Python = expandHome(c.Python)
	c.SystemProfiler = expandHome(c.SystemProfiler)
	c.AuditLog = expandHome(c.AuditLog)
}

// Rate returns the API probe rate in probes per second; 0 means unlimited.
func (c *Config) Rate() float64 {
	if c.ProbeRate == nil {
		return DefaultProbeRate
	}
	return *c.ProbeRate
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
