package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"creator-archiver/internal/archive"
	"creator-archiver/internal/discovery"
	"creator-archiver/internal/metrics"
	"creator-archiver/internal/yutto"
)

var errRunAborted = errors.New("run aborted; pending videos will be retried by the next run")

func runArchive(ctx context.Context, args []string) error {
	fs, common := newCommandFlags("run")
	fs.Int("quality", 0, "video quality code: 127|126|125|120|116|112|100|80|74|64|32|16")
	fs.Int("max-attempts", 0, "download attempts per video (overrides download.max_attempts)")
	fs.String("metrics-file", "", "write prometheus textfile metrics here after the run")
	refresh := fs.Bool("refresh", false, "re-list the account even when pending videos remain")
	tui := fs.Bool("tui", false, "show the interactive progress view")
	verifyFiles := fs.Bool("verify-files", false, "reset downloaded videos whose files are all missing")
	maxItems := fs.Int("max-items", 0, "max videos to attempt this invocation (0 = no limit)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *maxItems < 0 {
		return errors.New("--max-items must be >= 0")
	}
	if *tui && *common.jsonOut {
		return errors.New("--tui and --json cannot be combined")
	}

	s, err := openSession(ctx, fs, *common.configPath, *tui)
	if err != nil {
		return err
	}
	defer s.close()
	cfg := s.cfg

	if _, err := yutto.CheckDependency(cfg.Download.Binary); err != nil {
		return err
	}

	downloader := yutto.NewClient(yutto.Config{
		Binary:           cfg.Download.Binary,
		Sentinel:         cfg.Download.Sentinel,
		PollInterval:     cfg.Download.PollInterval,
		DownloadInterval: cfg.Download.DownloadInterval,
		Logger:           s.logger,
	})
	opts := archive.RunOptions{
		AccountID:   cfg.Basic.UID,
		AccountName: s.accountName,
		StateDir:    s.stateDir,
		Quality:     strconv.Itoa(cfg.Basic.VideoQuality),
		SessData:    cfg.Basic.SessData,
		Catalog:     s.api,
		Refresh:     *refresh,
		VerifyFiles: *verifyFiles,
		MaxItems:    *maxItems,
		Resolver:    discovery.NewResolver(s.api),
		Retrier: &archive.Retrier{
			Invoker:          downloader,
			MaxAttempts:      cfg.Download.MaxAttempts,
			TimeoutBase:      cfg.Download.TimeoutBase,
			TimeoutPerSecond: cfg.Download.TimeoutPerSecond,
			TimeoutCap:       cfg.Download.TimeoutCap,
		},
		Logger: s.logger,
	}

	recorder := metrics.NewRecorder()
	var res archive.RunResult
	if *tui {
		res, err = runWithTUI(ctx, opts, recorder)
	} else {
		obs := archive.MultiObserver{recorder}
		if !*common.jsonOut {
			fmt.Printf("archiving account %s into %s\n", s.accountName, s.stateDir)
			obs = append(obs, archive.NewConsoleObserver(os.Stdout, stdoutIsTTY()))
		}
		opts.Observer = obs
		res, err = archive.Run(ctx, opts)
	}

	if path := strings.TrimSpace(cfg.Metrics.Textfile); path != "" {
		if werr := recorder.WriteTextfile(path); werr != nil {
			s.logger.Warn("write metrics textfile", zap.String("path", path), zap.Error(werr))
		}
	}
	if err != nil {
		return err
	}

	if *common.jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printRunSummary(res, s.stateDir)
	}

	if res.Aborted {
		return errRunAborted
	}
	if res.Exhausted > 0 {
		return fmt.Errorf("%d video(s) failed after %d attempts", res.Exhausted, cfg.Download.MaxAttempts)
	}
	return nil
}

func printRunSummary(res archive.RunResult, stateDir string) {
	fmt.Println("run summary")
	fmt.Printf("run_id: %s\n", res.RunID)
	fmt.Printf("state_file: %s\n", res.StateFile)
	fmt.Printf("processed_now: %d\n", res.Processed)
	fmt.Printf("completed_now: %d\n", res.Completed)
	fmt.Printf("exhausted_now: %d\n", res.Exhausted)
	fmt.Printf("skipped_now: %d\n", res.Skipped)
	fmt.Printf("attempts: %d\n", res.Attempts)
	if res.Reset > 0 {
		fmt.Printf("reset_missing_files: %d\n", res.Reset)
	}
	fmt.Printf("downloaded_progress: %d/%d\n", res.Total-res.Pending, res.Total)
	fmt.Printf("pending: %d\n", res.Pending)
	if res.Pending > 0 && !res.Aborted {
		fmt.Printf("next: rerun `creator-archiver run` to continue (state in %s)\n", stateDir)
	}
}
