package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"creator-archiver/internal/model"
	"creator-archiver/internal/runstore"
	"creator-archiver/internal/upstream"
)

// ErrNotFound marks a video that upstream no longer serves. It matches
// upstream.ErrNotFound as well.
var ErrNotFound = fmt.Errorf("video unavailable: %w", upstream.ErrNotFound)

type InfoSource interface {
	VideoInfo(ctx context.Context, videoID string) (upstream.VideoInfo, error)
}

type Metadata struct {
	Title           string
	DurationSeconds int
	PartCount       int
	Raw             string
}

// Apply copies the refreshed title, duration and raw snapshot onto e.
func (m Metadata) Apply(e *model.VideoEntry) {
	if t := strings.TrimSpace(m.Title); t != "" {
		e.Title = t
	}
	e.Duration = FormatDuration(m.DurationSeconds)
	if m.Raw != "" {
		e.RawInfo = m.Raw
	}
}

type Resolver struct {
	source InfoSource
}

func NewResolver(source InfoSource) *Resolver {
	return &Resolver{source: source}
}

func (r *Resolver) Resolve(ctx context.Context, videoID string) (Metadata, error) {
	info, err := r.source.VideoInfo(ctx, videoID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, videoID)
		}
		return Metadata{}, fmt.Errorf("resolve %s: %w", videoID, err)
	}

	duration := info.Duration
	if duration <= 0 {
		for _, p := range info.Pages {
			duration += p.Duration
		}
	}
	parts := len(info.Pages)
	if parts < 1 {
		parts = 1
	}
	return Metadata{
		Title:           strings.TrimSpace(info.Title),
		DurationSeconds: duration,
		PartCount:       parts,
		Raw:             string(info.Raw),
	}, nil
}

type AccountNamer interface {
	AccountName(ctx context.Context, accountID string) (string, error)
}

// accountIndexFile maps account ids to the directory names they were
// archived under, so a failed name lookup does not start a second tree.
const accountIndexFile = ".archiver-accounts.json"

// ErrAccountUnresolved is returned when the account name cannot be looked up
// and no directory was recorded for the account before.
var ErrAccountUnresolved = errors.New("account directory unresolved")

// AccountDir returns <root>/<account name> and records the choice under
// root. When the lookup fails it reuses the recorded directory, then an
// existing <root>/<account id> directory; otherwise it fails.
func AccountDir(ctx context.Context, namer AccountNamer, root, accountID string, logger *zap.Logger) (string, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := strings.TrimSpace(accountID)
	indexPath := filepath.Join(root, accountIndexFile)
	index := map[string]string{}
	if err := runstore.ReadJSON(indexPath, &index); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("account index unreadable", zap.String("path", indexPath), zap.Error(err))
		index = map[string]string{}
	}

	var lookupErr error
	if namer != nil {
		name, err := namer.AccountName(ctx, id)
		if err == nil {
			dirName := model.SanitizeFileName(name, id)
			if index[id] != dirName {
				index[id] = dirName
				if err := runstore.WriteJSON(indexPath, index); err != nil {
					logger.Warn("record account directory failed", zap.String("path", indexPath), zap.Error(err))
				}
			}
			return filepath.Join(root, dirName), name, nil
		}
		lookupErr = err
	} else {
		lookupErr = errors.New("no account name source")
	}

	if dirName := index[id]; dirName != "" {
		logger.Warn("account name lookup failed; reusing recorded directory",
			zap.String("uid", id), zap.String("dir", dirName), zap.Error(lookupErr))
		return filepath.Join(root, dirName), dirName, nil
	}
	fallback := filepath.Join(root, model.SanitizeFileName(id, "account"))
	if info, err := os.Stat(fallback); err == nil && info.IsDir() {
		logger.Warn("account name lookup failed; reusing account id directory",
			zap.String("uid", id), zap.String("dir", fallback), zap.Error(lookupErr))
		return fallback, id, nil
	}
	return "", "", fmt.Errorf("%w: %s: %w", ErrAccountUnresolved, id, lookupErr)
}
