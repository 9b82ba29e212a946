package runstore

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"creator-archiver/internal/model"
)

const (
	StateFileName = "video_urls.csv"

	downloadedTrue  = "True"
	downloadedFalse = "False"
)

var entryHeader = []string{"url", "title", "duration", "downloaded", "file_path", "info"}

// LoadEntries reads the state file. A missing file is an empty store.
func LoadEntries(path string) ([]model.VideoEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.VideoEntry{}, nil
		}
		return nil, fmt.Errorf("open state file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []model.VideoEntry{}, nil
		}
		return nil, fmt.Errorf("read state header %s: %w", path, err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}

	entries := make([]model.VideoEntry, 0)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read state row %d in %s: %w", line, path, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		url := field("url")
		entries = append(entries, model.VideoEntry{
			ID:         model.VideoIDFromURL(url),
			URL:        url,
			Title:      field("title"),
			Duration:   field("duration"),
			Downloaded: strings.EqualFold(strings.TrimSpace(field("downloaded")), downloadedTrue),
			FilePaths:  decodeFilePaths(field("file_path")),
			RawInfo:    field("info"),
		})
	}
	return entries, nil
}

// SaveEntries rewrites the whole state file atomically. Every error wraps
// ErrStoreIO.
func SaveEntries(path string, entries []model.VideoEntry) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(entryHeader); err != nil {
		return fmt.Errorf("%w: encode state header: %w", ErrStoreIO, err)
	}
	for _, e := range entries {
		url := e.URL
		if strings.TrimSpace(url) == "" {
			url = model.VideoURL(e.ID)
		}
		downloaded := downloadedFalse
		if e.Downloaded {
			downloaded = downloadedTrue
		}
		paths, err := encodeFilePaths(e.FilePaths)
		if err != nil {
			return fmt.Errorf("%w: encode file paths for %s: %w", ErrStoreIO, url, err)
		}
		if err := w.Write([]string{url, e.Title, e.Duration, downloaded, paths, e.RawInfo}); err != nil {
			return fmt.Errorf("%w: encode state row for %s: %w", ErrStoreIO, url, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush state rows: %w", ErrStoreIO, err)
	}
	return WriteBytes(path, buf.Bytes())
}

func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "" {
			continue
		}
		cols[name] = i
	}
	if _, ok := cols["url"]; !ok {
		return nil, fmt.Errorf("missing %q column in header %v", "url", header)
	}
	return cols, nil
}

func encodeFilePaths(paths []string) (string, error) {
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "", nil
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeFilePaths accepts the JSON list written by SaveEntries and, for
// hand-edited stores, a bare single path.
func decodeFilePaths(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var paths []string
		if err := json.Unmarshal([]byte(s), &paths); err == nil {
			return paths
		}
	}
	return []string{raw}
}
