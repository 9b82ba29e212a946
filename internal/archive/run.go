package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"creator-archiver/internal/discovery"
	"creator-archiver/internal/model"
	"creator-archiver/internal/runstore"
	"creator-archiver/internal/yutto"
)

// Resolver refreshes an item's metadata before it is downloaded.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (discovery.Metadata, error)
}

type RunOptions struct {
	AccountID   string
	AccountName string
	// StateDir holds the state file, the error log and run.json. Downloads
	// land in OutputDir, which defaults to StateDir.
	StateDir  string
	OutputDir string
	Quality   string
	SessData  string

	// Catalog, when set, seeds or extends the store before downloading.
	Catalog     discovery.Lister
	Refresh     bool
	VerifyFiles bool
	MaxItems    int

	Resolver Resolver
	Retrier  *Retrier
	Observer Observer
	Logger   *zap.Logger
}

type RunResult struct {
	RunID     string
	StateFile string
	Total     int
	Processed int
	Completed int
	Exhausted int
	Skipped   int
	Attempts  int
	Pending   int
	Reset     int
	Aborted   bool
}

// Run processes every pending entry of the store in order, one at a time.
// Cancelling ctx stops the run after persisting the in-flight item as
// pending; the result then has Aborted set and the error is nil. Store write
// failures end the run with an error matching runstore.ErrStoreIO.
func Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	if err := validateRunOptions(opts); err != nil {
		return RunResult{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	retrier := *opts.Retrier
	retrier.Observer = obs
	if retrier.Logger == nil {
		retrier.Logger = logger
	}

	stateDir := strings.TrimSpace(opts.StateDir)
	outputDir := strings.TrimSpace(opts.OutputDir)
	if outputDir == "" {
		outputDir = stateDir
	}
	if err := runstore.Mkdir(stateDir); err != nil {
		return RunResult{}, fmt.Errorf("%w: %w", runstore.ErrStoreIO, err)
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	lock, err := runstore.AcquireStoreLock(stateDir, runID)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	statePath := filepath.Join(stateDir, runstore.StateFileName)
	errorLogPath := filepath.Join(stateDir, runstore.ErrorLogFileName)
	res := RunResult{RunID: runID, StateFile: statePath}
	logger = logger.With(zap.String("run_id", runID), zap.String("account_id", opts.AccountID))

	var entries []model.VideoEntry
	finish := func(runErr error) (RunResult, error) {
		res.Total = len(entries)
		_, res.Pending = model.CountDownloaded(entries)
		summary := runstore.RunSummary{
			RunID:       runID,
			AccountID:   opts.AccountID,
			AccountName: opts.AccountName,
			StartedAt:   startedAt.Format(time.RFC3339),
			FinishedAt:  time.Now().UTC().Format(time.RFC3339),
			StateFile:   statePath,
			ErrorLog:    errorLogPath,
			Total:       res.Total,
			Downloaded:  res.Total - res.Pending,
			Pending:     res.Pending,
			Processed:   res.Processed,
			Completed:   res.Completed,
			Exhausted:   res.Exhausted,
			Skipped:     res.Skipped,
			Attempts:    res.Attempts,
			Aborted:     res.Aborted,
		}
		if runErr != nil {
			summary.Error = runErr.Error()
		}
		if err := runstore.SaveRunSummary(stateDir, summary); err != nil {
			logger.Error("save run summary", zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
		if runErr == nil {
			obs.Observe(RunCompleted{Result: res})
		}
		logger.Info("run finished",
			zap.Int("processed", res.Processed),
			zap.Int("completed", res.Completed),
			zap.Int("exhausted", res.Exhausted),
			zap.Int("skipped", res.Skipped),
			zap.Bool("aborted", res.Aborted),
			zap.Error(runErr),
		)
		return res, runErr
	}

	entries, err = loadCatalog(ctx, opts, statePath, logger, obs)
	if err != nil {
		if ctx.Err() != nil {
			res.Aborted = true
			return finish(nil)
		}
		return finish(err)
	}
	if opts.VerifyFiles {
		reset := discovery.VerifyFiles(entries)
		if len(reset) > 0 {
			logger.Warn("downloaded entries lost their files", zap.Strings("video_ids", reset))
			if err := runstore.SaveEntries(statePath, entries); err != nil {
				return finish(err)
			}
		}
		res.Reset = len(reset)
	}

	total := len(entries)
	for i := range entries {
		if ctx.Err() != nil {
			res.Aborted = true
			break
		}
		if entries[i].Downloaded {
			continue
		}
		if opts.MaxItems > 0 && res.Processed >= opts.MaxItems {
			logger.Info("item limit reached", zap.Int("max_items", opts.MaxItems))
			break
		}
		res.Processed++
		index := i + 1
		entry := &entries[i]
		videoID := entry.ID
		if videoID == "" {
			videoID = model.VideoIDFromURL(entry.URL)
		}
		obs.Observe(FetchStarted{Index: index, Total: total, VideoID: videoID, URL: entry.URL})

		md, err := opts.Resolver.Resolve(ctx, videoID)
		if err != nil {
			if ctx.Err() != nil {
				res.Aborted = true
				break
			}
			reason := "metadata_error"
			if errors.Is(err, discovery.ErrNotFound) {
				reason = "not_found"
			}
			res.Skipped++
			obs.Observe(ItemSkipped{Index: index, Total: total, VideoID: videoID, Reason: reason, Err: err})
			logger.Warn("skipping video", zap.String("video_id", videoID), zap.String("reason", reason), zap.Error(err))
			continue
		}

		md.Apply(entry)
		entry.Downloaded = false
		entry.FilePaths = nil
		if err := runstore.SaveEntries(statePath, entries); err != nil {
			return finish(err)
		}

		url := entry.URL
		if strings.TrimSpace(url) == "" {
			url = model.VideoURL(videoID)
		}
		outcome := retrier.Run(ctx, Job{
			Index:           index,
			Total:           total,
			VideoID:         videoID,
			Title:           entry.Title,
			DurationSeconds: md.DurationSeconds,
			Request: yutto.Request{
				URL:       url,
				OutputDir: outputDir,
				Quality:   opts.Quality,
				SessData:  opts.SessData,
				PartCount: md.PartCount,
				Title:     entry.Title,
			},
		})
		res.Attempts += outcome.Attempts

		switch outcome.State {
		case model.AttemptSucceeded:
			entry.Downloaded = true
			entry.FilePaths = absPaths(outcome.FilePaths)
			if err := runstore.SaveEntries(statePath, entries); err != nil {
				return finish(err)
			}
			res.Completed++
		case model.AttemptExhausted:
			if err := runstore.SaveEntries(statePath, entries); err != nil {
				return finish(err)
			}
			if err := runstore.AppendErrorLog(errorLogPath, runstore.ExhaustedLine(url, retrier.maxAttempts())); err != nil {
				return finish(err)
			}
			res.Exhausted++
		default:
			if err := runstore.SaveEntries(statePath, entries); err != nil {
				return finish(err)
			}
			res.Aborted = true
		}
		obs.Observe(ItemCompleted{
			Index:     index,
			Total:     total,
			VideoID:   videoID,
			Title:     entry.Title,
			Outcome:   outcome.State,
			Attempts:  outcome.Attempts,
			FilePaths: entry.FilePaths,
		})
		if res.Aborted {
			break
		}
	}

	return finish(nil)
}

func validateRunOptions(opts RunOptions) error {
	if strings.TrimSpace(opts.StateDir) == "" {
		return fmt.Errorf("state directory is required")
	}
	if opts.Resolver == nil {
		return fmt.Errorf("metadata resolver is required")
	}
	if opts.Retrier == nil || opts.Retrier.Invoker == nil {
		return fmt.Errorf("download invoker is required")
	}
	return nil
}

func loadCatalog(ctx context.Context, opts RunOptions, statePath string, logger *zap.Logger, obs Observer) ([]model.VideoEntry, error) {
	if opts.Catalog == nil {
		entries, err := runstore.LoadEntries(statePath)
		if err != nil {
			return nil, err
		}
		_, pending := model.CountDownloaded(entries)
		obs.Observe(CatalogSynced{AccountID: opts.AccountID, Total: len(entries), Pending: pending})
		return entries, nil
	}

	synced, err := discovery.SyncCatalog(ctx, discovery.SyncOptions{
		AccountID: opts.AccountID,
		StatePath: statePath,
		Lister:    opts.Catalog,
		Refresh:   opts.Refresh,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	_, pending := model.CountDownloaded(synced.Entries)
	obs.Observe(CatalogSynced{
		AccountID:  opts.AccountID,
		Total:      len(synced.Entries),
		Pending:    pending,
		Added:      synced.Added,
		Enumerated: synced.Enumerated,
	})
	return synced.Entries, nil
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			out = append(out, abs)
			continue
		}
		out = append(out, p)
	}
	return out
}
