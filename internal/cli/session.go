package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"creator-archiver/internal/config"
	"creator-archiver/internal/discovery"
	"creator-archiver/internal/logger"
	"creator-archiver/internal/upstream"
)

type commonFlags struct {
	configPath *string
	jsonOut    *bool
}

// newCommandFlags registers the flags shared by every account command. Flags
// named in config.FlagKeys override the matching config keys when set.
func newCommandFlags(name string) (*pflag.FlagSet, *commonFlags) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	c := &commonFlags{}
	c.configPath = fs.String("config", "", "config file (default: ./config.toml, then the user config dir)")
	fs.String("uid", "", "account id to archive (overrides basic.uid)")
	fs.String("output-dir", "", "root output directory (overrides basic.output_dir)")
	fs.String("state-dir", "", "state directory (default: <output-dir>/<account name>)")
	fs.String("log-level", "", "log level: debug|info|warn|error")
	fs.String("log-file", "", "also write JSON logs to this file")
	c.jsonOut = fs.Bool("json", false, "print JSON output")
	return fs, c
}

// session is the configured environment of one account command.
type session struct {
	cfg         *config.Config
	logger      *zap.Logger
	api         *upstream.Client
	stateDir    string
	accountName string
}

// openSession loads config and builds the logger and API client. With quiet
// set the logger stays off the terminal.
func openSession(ctx context.Context, fs *pflag.FlagSet, configPath string, quiet bool) (*session, error) {
	cfg, err := config.Load(config.Options{Path: strings.TrimSpace(configPath), Flags: fs})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	newLogger := logger.New
	if quiet {
		newLogger = logger.NewQuiet
	}
	log, err := newLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	api := upstream.NewClient(upstream.Config{
		BaseURL: cfg.API.BaseURL,
		Credential: upstream.Credential{
			SessData: cfg.Basic.SessData,
			BiliJCT:  cfg.Basic.BiliJCT,
			Buvid3:   cfg.Basic.Buvid3,
		},
		PageSize:        cfg.API.PageSize,
		RequestInterval: cfg.API.RequestInterval,
		Timeout:         cfg.API.Timeout,
		Logger:          log,
	})

	s := &session{cfg: cfg, logger: log, api: api}
	if dir := strings.TrimSpace(cfg.Store.Dir); dir != "" {
		s.stateDir = dir
		s.accountName = cfg.Basic.UID
		return s, nil
	}

	dir, name, err := discovery.AccountDir(ctx, api, cfg.Basic.OutputDir, cfg.Basic.UID, log)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("%w (set store.dir or --state-dir to choose the directory explicitly)", err)
	}
	s.stateDir = dir
	s.accountName = name
	log.Debug("session ready",
		zap.String("config", cfg.File),
		zap.String("state_dir", dir),
		zap.String("account", name),
	)
	return s, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}
