package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"creator-archiver/internal/model"
	"creator-archiver/internal/runstore"
	"creator-archiver/internal/upstream"
)

// Lister pages through an account's uploads.
type Lister interface {
	ListVideos(ctx context.Context, accountID string, page int) ([]upstream.ListedVideo, error)
}

// Enumerate walks listing pages from 1 until an empty page. A failed page
// stops paging; the entries collected so far are returned with the error.
// Ids repeated across pages are kept once, at their first position.
func Enumerate(ctx context.Context, lister Lister, accountID string) ([]model.VideoEntry, error) {
	entries := make([]model.VideoEntry, 0)
	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		videos, err := lister.ListVideos(ctx, accountID, page)
		if err != nil {
			return entries, fmt.Errorf("fetch listing page %d: %w", page, err)
		}
		if len(videos) == 0 {
			return entries, nil
		}
		for _, v := range videos {
			id := strings.TrimSpace(v.ID)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			e := model.NewPendingEntry(id, v.Title)
			if secs, err := ParseDisplayDuration(v.Length); err == nil {
				e.Duration = FormatDuration(secs)
			}
			entries = append(entries, e)
		}
	}
}

// Reconcile appends fetched entries whose key is not already present.
// Existing entries are returned untouched and in their stored order.
func Reconcile(existing, fetched []model.VideoEntry) ([]model.VideoEntry, int) {
	known := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		if k := e.Key(); k != "" {
			known[k] = struct{}{}
		}
		if u := strings.TrimSpace(e.URL); u != "" {
			known[u] = struct{}{}
		}
	}

	merged := make([]model.VideoEntry, 0, len(existing)+len(fetched))
	merged = append(merged, existing...)
	added := 0
	for _, e := range fetched {
		k := e.Key()
		if k == "" {
			continue
		}
		if _, ok := known[k]; ok {
			continue
		}
		if u := strings.TrimSpace(e.URL); u != "" {
			if _, ok := known[u]; ok {
				continue
			}
			known[u] = struct{}{}
		}
		known[k] = struct{}{}
		e.Downloaded = false
		e.FilePaths = nil
		merged = append(merged, e)
		added++
	}
	return merged, added
}

type SyncOptions struct {
	AccountID string
	StatePath string
	Lister    Lister
	// Refresh re-enumerates even when pending entries remain.
	Refresh bool
	Logger  *zap.Logger
}

type SyncResult struct {
	Entries    []model.VideoEntry
	Enumerated bool
	Fetched    int
	Added      int
	Saved      bool
	// FetchErr is a listing failure that was tolerated because earlier pages
	// or the existing store still gave a usable catalog.
	FetchErr error
}

// SyncCatalog seeds or extends the state store from the account listing.
// A missing store is created from a full enumeration. An existing store is
// re-enumerated only when every entry is downloaded or Refresh is set, and is
// rewritten only when new entries were appended.
func SyncCatalog(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Lister == nil {
		return SyncResult{}, fmt.Errorf("catalog lister is required")
	}
	path := strings.TrimSpace(opts.StatePath)
	if path == "" {
		return SyncResult{}, fmt.Errorf("state path is required")
	}

	_, statErr := os.Stat(path)
	storeExists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return SyncResult{}, fmt.Errorf("%w: stat state file %s: %w", runstore.ErrStoreIO, path, statErr)
	}

	existing, err := runstore.LoadEntries(path)
	if err != nil {
		return SyncResult{}, err
	}

	if storeExists && !opts.Refresh && !model.AllDownloaded(existing) {
		logger.Debug("catalog kept from store", zap.Int("entries", len(existing)))
		return SyncResult{Entries: existing}, nil
	}

	fetched, fetchErr := Enumerate(ctx, opts.Lister, opts.AccountID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return SyncResult{Entries: existing}, ctxErr
	}
	res := SyncResult{Enumerated: true, Fetched: len(fetched), FetchErr: fetchErr}
	if fetchErr != nil {
		logger.Warn("catalog listing incomplete",
			zap.String("account_id", opts.AccountID),
			zap.Int("collected", len(fetched)),
			zap.Error(fetchErr),
		)
		if !storeExists && len(fetched) == 0 {
			return res, fmt.Errorf("enumerate account %s: %w", opts.AccountID, fetchErr)
		}
	}

	merged, added := Reconcile(existing, fetched)
	res.Entries = merged
	res.Added = added
	if added > 0 || !storeExists {
		if err := runstore.SaveEntries(path, merged); err != nil {
			return res, err
		}
		res.Saved = true
	}
	logger.Info("catalog synced",
		zap.Int("fetched", res.Fetched),
		zap.Int("added", added),
		zap.Int("total", len(merged)),
	)
	return res, nil
}

// VerifyFiles resets downloaded entries whose recorded files are all gone.
// It returns the ids that were reset; the caller persists the change.
func VerifyFiles(entries []model.VideoEntry) []string {
	reset := make([]string, 0)
	for i := range entries {
		e := &entries[i]
		if !e.Downloaded {
			continue
		}
		if anyFileExists(e.FilePaths) {
			continue
		}
		e.Downloaded = false
		e.FilePaths = nil
		reset = append(reset, e.Key())
	}
	return reset
}

func anyFileExists(paths []string) bool {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
