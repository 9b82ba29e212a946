package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the working directory, home and user config dir at a fresh
// temp dir so no real config.toml leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleConfig = `
[basic]
uid = 12345
output_dir = "/srv/archive"
video_quality = 80
SESSDATA = "file-sess"
bili_jct = "jct"

[download]
max_attempts = 3
timeout_cap = "10m"

[logging]
level = "debug"
`

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, "", cfg.Basic.UID)
	assert.Equal(t, filepath.Join(home, "Downloads"), cfg.Basic.OutputDir)
	assert.Equal(t, DefaultQuality, cfg.Basic.VideoQuality)
	assert.Equal(t, "yutto", cfg.Download.Binary)
	assert.Equal(t, "合并完成", cfg.Download.Sentinel)
	assert.Equal(t, 5, cfg.Download.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Download.TimeoutBase)
	assert.Equal(t, 2*time.Second, cfg.Download.TimeoutPerSecond)
	assert.Equal(t, 600*time.Second, cfg.Download.TimeoutCap)
	assert.Equal(t, "https://api.bilibili.com", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.PageSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_SearchesWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, sampleConfig)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.toml"), cfg.File)
	assert.Equal(t, "12345", cfg.Basic.UID)
}

func TestLoad_FileValues(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, sampleConfig)

	cfg, err := Load(Options{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "12345", cfg.Basic.UID)
	assert.Equal(t, "/srv/archive", cfg.Basic.OutputDir)
	assert.Equal(t, 80, cfg.Basic.VideoQuality)
	assert.Equal(t, "file-sess", cfg.Basic.SessData)
	assert.Equal(t, "jct", cfg.Basic.BiliJCT)
	assert.Equal(t, 3, cfg.Download.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Download.TimeoutCap)
	assert.Equal(t, 5*time.Second, cfg.Download.TimeoutBase, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, sampleConfig)
	t.Setenv("ARCHIVER_BASIC_SESSDATA", "env-sess")
	t.Setenv("ARCHIVER_BASIC_UID", "777")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("uid", "", "")
	flags.Int("quality", 0, "")
	flags.String("output-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--uid", "999"}))

	cfg, err := Load(Options{Path: path, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "999", cfg.Basic.UID, "flag beats env and file")
	assert.Equal(t, "env-sess", cfg.Basic.SessData, "env beats file")
	assert.Equal(t, 80, cfg.Basic.VideoQuality, "unset flag does not override file")
	assert.Equal(t, "/srv/archive", cfg.Basic.OutputDir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(Options{Path: filepath.Join(dir, "nope.toml")})
	require.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "[basic\nuid = ")

	_, err := Load(Options{Path: path})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Basic:    BasicConfig{UID: "12345", OutputDir: "/out", VideoQuality: 127},
			Download: DownloadConfig{MaxAttempts: 5, TimeoutCap: time.Minute},
			API:      APIConfig{PageSize: 30},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing uid", mutate: func(c *Config) { c.Basic.UID = "" }, wantErr: "basic.uid is required"},
		{name: "non numeric uid", mutate: func(c *Config) { c.Basic.UID = "abc" }, wantErr: "must be numeric"},
		{name: "unknown quality", mutate: func(c *Config) { c.Basic.VideoQuality = 81 }, wantErr: "video_quality 81"},
		{name: "zero attempts", mutate: func(c *Config) { c.Download.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "zero cap disables the bound", mutate: func(c *Config) { c.Download.TimeoutCap = 0 }},
		{name: "negative cap", mutate: func(c *Config) { c.Download.TimeoutCap = -time.Second }, wantErr: "timeout_cap"},
		{name: "zero page size", mutate: func(c *Config) { c.API.PageSize = 0 }, wantErr: "page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	assert.Equal(t, "/home/tester", ExpandHome("~"))
	assert.Equal(t, "/home/tester/Videos", ExpandHome("~/Videos"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

func TestWriteTemplate_LoadsWithDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	created, err := WriteTemplate(path)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err := Load(Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 127, cfg.Basic.VideoQuality)
	assert.Equal(t, 10*time.Minute, cfg.Download.TimeoutCap)
	assert.Equal(t, filepath.Join(dir, "Downloads"), cfg.Basic.OutputDir)

	require.NoError(t, os.WriteFile(path, []byte("[basic]\nuid = 1\n"), 0o600))
	created, err = WriteTemplate(path)
	require.NoError(t, err)
	assert.False(t, created)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[basic]\nuid = 1\n", string(data))
}
