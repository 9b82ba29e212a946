// Package config loads archiver settings from config.toml, ARCHIVER_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	FileName  = "config"
	FileType  = "toml"
	EnvPrefix = "ARCHIVER"
	AppDir    = "creator-archiver"

	DefaultQuality = 127
)

// QualityCodes are the stream quality codes the download tool accepts, best
// first.
var QualityCodes = []int{127, 126, 125, 120, 116, 112, 100, 80, 74, 64, 32, 16}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"uid":          "basic.uid",
	"output-dir":   "basic.output_dir",
	"quality":      "basic.video_quality",
	"max-attempts": "download.max_attempts",
	"state-dir":    "store.dir",
	"log-level":    "logging.level",
	"log-file":     "logging.file",
	"metrics-file": "metrics.textfile",
}

//nolint:govet // fieldalignment: grouped by config section
type Config struct {
	Basic    BasicConfig    `mapstructure:"basic"`
	Download DownloadConfig `mapstructure:"download"`
	API      APIConfig      `mapstructure:"api"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// BasicConfig is the [basic] section: which account to archive, where, and
// the session credentials.
type BasicConfig struct {
	UID          string `mapstructure:"uid"`
	OutputDir    string `mapstructure:"output_dir"`
	VideoQuality int    `mapstructure:"video_quality"`
	SessData     string `mapstructure:"sessdata"`
	BiliJCT      string `mapstructure:"bili_jct"`
	Buvid3       string `mapstructure:"buvid3"`
}

type DownloadConfig struct {
	Binary           string        `mapstructure:"binary"`
	Sentinel         string        `mapstructure:"sentinel"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	TimeoutBase      time.Duration `mapstructure:"timeout_base"`
	TimeoutPerSecond time.Duration `mapstructure:"timeout_per_second"`
	TimeoutCap       time.Duration `mapstructure:"timeout_cap"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	DownloadInterval time.Duration `mapstructure:"download_interval"`
}

type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	PageSize        int           `mapstructure:"page_size"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// StoreConfig.Dir overrides the per-account state directory, which is
// otherwise <output_dir>/<account name>.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Options selects the config file and the flags layered over it.
type Options struct {
	// Path is an explicit config file. When empty, config.toml is searched
	// in the working directory and the user config directory.
	Path  string
	Flags *pflag.FlagSet
}

// Load resolves settings with precedence flags > env > file > defaults.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(opts.Path) != "" {
		v.SetConfigFile(opts.Path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType(FileType)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, AppDir))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Basic.UID = strings.TrimSpace(cfg.Basic.UID)
	cfg.Basic.OutputDir = ExpandHome(cfg.Basic.OutputDir)
	cfg.Store.Dir = ExpandHome(cfg.Store.Dir)
	cfg.Logging.File = ExpandHome(cfg.Logging.File)
	cfg.Metrics.Textfile = ExpandHome(cfg.Metrics.Textfile)

	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic.uid", "")
	v.SetDefault("basic.output_dir", "~/Downloads")
	v.SetDefault("basic.video_quality", DefaultQuality)
	v.SetDefault("basic.sessdata", "")
	v.SetDefault("basic.bili_jct", "")
	v.SetDefault("basic.buvid3", "")

	v.SetDefault("download.binary", "yutto")
	v.SetDefault("download.sentinel", "合并完成")
	v.SetDefault("download.max_attempts", 5)
	v.SetDefault("download.timeout_base", 5*time.Second)
	v.SetDefault("download.timeout_per_second", 2*time.Second)
	v.SetDefault("download.timeout_cap", 600*time.Second)
	v.SetDefault("download.poll_interval", 100*time.Millisecond)
	v.SetDefault("download.download_interval", 2*time.Second)

	v.SetDefault("api.base_url", "https://api.bilibili.com")
	v.SetDefault("api.request_interval", time.Second)
	v.SetDefault("api.page_size", 30)
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("store.dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.textfile", "")
}

// Validate rejects settings a run cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Basic.UID == "" {
		errs = append(errs, errors.New("basic.uid is required"))
	} else if strings.Trim(c.Basic.UID, "0123456789") != "" {
		errs = append(errs, fmt.Errorf("basic.uid must be numeric, got %q", c.Basic.UID))
	}
	if strings.TrimSpace(c.Basic.OutputDir) == "" {
		errs = append(errs, errors.New("basic.output_dir is required"))
	}
	if !slices.Contains(QualityCodes, c.Basic.VideoQuality) {
		errs = append(errs, fmt.Errorf("basic.video_quality %d is not one of %v", c.Basic.VideoQuality, QualityCodes))
	}
	if c.Download.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("download.max_attempts must be > 0, got %d", c.Download.MaxAttempts))
	}
	if c.Download.TimeoutBase < 0 || c.Download.TimeoutPerSecond < 0 {
		errs = append(errs, errors.New("download timeouts must not be negative"))
	}
	if c.Download.TimeoutCap < 0 {
		errs = append(errs, fmt.Errorf("download.timeout_cap must not be negative (0 disables the cap), got %s", c.Download.TimeoutCap))
	}
	if c.API.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("api.page_size must be > 0, got %d", c.API.PageSize))
	}
	return errors.Join(errs...)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
