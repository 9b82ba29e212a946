package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"creator-archiver/internal/model"
	"creator-archiver/internal/upstream"
)

type fakeInfoSource struct {
	info upstream.VideoInfo
	err  error
}

func (f fakeInfoSource) VideoInfo(context.Context, string) (upstream.VideoInfo, error) {
	return f.info, f.err
}

func TestResolver_MapsInfo(t *testing.T) {
	src := fakeInfoSource{info: upstream.VideoInfo{
		Title: " Title ",
		Pages: []upstream.VideoPage{{Page: 1, Duration: 30}, {Page: 2, Duration: 31}},
		Raw:   json.RawMessage(`{"title":"Title"}`),
	}}

	md, err := NewResolver(src).Resolve(context.Background(), "BV1aa")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if md.Title != "Title" || md.DurationSeconds != 61 || md.PartCount != 2 {
		t.Fatalf("unexpected metadata %+v", md)
	}

	e := model.NewPendingEntry("BV1aa", "old")
	md.Apply(&e)
	if e.Title != "Title" || e.Duration != "1m1s" || e.RawInfo != `{"title":"Title"}` {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestResolver_NotFound(t *testing.T) {
	src := fakeInfoSource{err: upstream.ErrNotFound}
	_, err := NewResolver(src).Resolve(context.Background(), "BV1gone")
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, upstream.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolver_OtherErrorsAreNotNotFound(t *testing.T) {
	src := fakeInfoSource{err: errors.New("timeout")}
	_, err := NewResolver(src).Resolve(context.Background(), "BV1aa")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected plain error, got %v", err)
	}
}

type fakeNamer struct {
	name string
	err  error
}

func (f fakeNamer) AccountName(context.Context, string) (string, error) {
	return f.name, f.err
}

func TestAccountDir_RecordsResolvedName(t *testing.T) {
	root := t.TempDir()
	dir, name, err := AccountDir(context.Background(), fakeNamer{name: "A/B"}, root, "42", nil)
	if err != nil || name != "A/B" || dir != filepath.Join(root, "A_B") {
		t.Fatalf("unexpected dir=%q name=%q err=%v", dir, name, err)
	}

	// A later lookup failure keeps using the recorded directory.
	dir, _, err = AccountDir(context.Background(), fakeNamer{err: errors.New("down")}, root, "42", nil)
	if err != nil || dir != filepath.Join(root, "A_B") {
		t.Fatalf("expected recorded dir, got dir=%q err=%v", dir, err)
	}
}

func TestAccountDir_LookupFailure(t *testing.T) {
	root := t.TempDir()
	_, _, err := AccountDir(context.Background(), fakeNamer{err: errors.New("down")}, root, "42", nil)
	if !errors.Is(err, ErrAccountUnresolved) {
		t.Fatalf("expected ErrAccountUnresolved, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "42")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no directory to be created, stat err=%v", statErr)
	}

	if err := os.Mkdir(filepath.Join(root, "42"), 0o755); err != nil {
		t.Fatal(err)
	}
	dir, name, err := AccountDir(context.Background(), fakeNamer{err: errors.New("down")}, root, "42", nil)
	if err != nil || name != "42" || dir != filepath.Join(root, "42") {
		t.Fatalf("expected existing id dir, got dir=%q name=%q err=%v", dir, name, err)
	}
}
