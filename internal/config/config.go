package config

import (
	"time"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvPrefix = "BROWSERSYNC_"
)

type FetchConfig struct {
	BaseAttrs []string `yaml:"base_attrs"`
	FullAttrs []string `yaml:"full_attrs"`
	// GRIs that always get FullAttrs regardless of registered requirements.
	FullAttrsGRIs []string `yaml:"full_attrs_gris"`
}

type PollerConfig struct {
	Interval            time.Duration `yaml:"interval"`
	ArchiveFastInterval time.Duration `yaml:"archive_fast_interval"`
	ArchiveSlowInterval time.Duration `yaml:"archive_slow_interval"`
	Timeout             time.Duration `yaml:"timeout"`
}

type RecallConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type BackendConfig struct {
	WorkDir     string   `yaml:"work_dir"`
	ArchivesDir string   `yaml:"archives_dir"`
	RecallDir   string   `yaml:"recall_dir"`
	DescFile    string   `yaml:"desc_filename"`
	SkipFiles   []string `yaml:"skip_files"`
	ListLimit   int      `yaml:"list_limit"`
}

// SweepConfig controls removal of stored records no consumer depends on.
type SweepConfig struct {
	Workers int  `yaml:"workers"`
	OnStart bool `yaml:"on_start"`
}

type Config struct {
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
	RedisURL     string        `yaml:"redis_url"`
	RedisCheck   time.Duration `yaml:"redis_check_interval"`
	DumpFileName string        `yaml:"dump_filename"`
	Fetch        FetchConfig   `yaml:"fetch"`
	Poller       PollerConfig  `yaml:"poller"`
	Recall       RecallConfig  `yaml:"recall"`
	Backend      BackendConfig `yaml:"backend"`
	Sweep        SweepConfig   `yaml:"sweep"`
}
