package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

var (
	defaultBaseAttrs = []string{"conflictingName", "fileId", "index", "name", "parentId", "type"}
	defaultFullAttrs = []string{
		"atime", "conflictingName", "ctime", "fileId", "hardlinkCount", "index", "mtime", "name",
		"owner", "parentId", "posixPermissions", "recallRootId", "size", "type",
	}
)

func (c *Config) SetDefaults() {
	c.Listen = ":8080"
	c.LogLevel = LogLevelInfo
	c.RedisURL = "redis://localhost:6379/0"
	c.RedisCheck = 2 * time.Second
	c.DumpFileName = "registry.yml"

	c.Fetch.BaseAttrs = append([]string(nil), defaultBaseAttrs...)
	c.Fetch.FullAttrs = append([]string(nil), defaultFullAttrs...)

	c.Poller.Interval = 10 * time.Second
	c.Poller.ArchiveFastInterval = 2 * time.Second
	c.Poller.ArchiveSlowInterval = 10 * time.Second
	c.Poller.Timeout = 30 * time.Second

	c.Recall.Interval = 2 * time.Second
	c.Recall.Timeout = 10 * time.Second

	c.Backend.WorkDir = "/data"
	c.Backend.ArchivesDir = ".archives"
	c.Backend.RecallDir = ".recall"
	c.Backend.DescFile = "archive.md"
	c.Backend.ListLimit = 1000

	c.Sweep.Workers = 4
	c.Sweep.OnStart = true
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %s", c.LogLevel)
	}

	if c.Poller.Interval < 0 || c.Poller.ArchiveFastInterval < 0 || c.Poller.ArchiveSlowInterval < 0 {
		return fmt.Errorf("poller intervals must not be negative")
	}

	if c.RedisCheck <= 0 {
		return fmt.Errorf("redis check interval must be positive")
	}

	if c.Recall.Interval <= 0 {
		return fmt.Errorf("recall interval must be positive")
	}

	if c.Backend.WorkDir == "" {
		return fmt.Errorf("backend work_dir must be set")
	}

	return nil
}

// Load reads defaults, then the yaml file (a missing file is fine), then the
// .env file and BROWSERSYNC_* environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot unmarshal config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LISTEN":        &c.Listen,
		"LOG_LEVEL":     &c.LogLevel,
		"REDIS_URL":     &c.RedisURL,
		"DUMP_FILENAME": &c.DumpFileName,
		"WORK_DIR":      &c.Backend.WorkDir,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL":   &c.Poller.Interval,
		"RECALL_INTERVAL": &c.Recall.Interval,
		"REDIS_CHECK":     &c.RedisCheck,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}

		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("cannot parse %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "FULL_ATTRS_GRIS"); ok {
		c.Fetch.FullAttrsGRIs = splitList(v)
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
