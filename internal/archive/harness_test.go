package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"creator-archiver/internal/discovery"
	"creator-archiver/internal/model"
	"creator-archiver/internal/runstore"
	"creator-archiver/internal/yutto"
)

func TestHarnessRunWithFakeTool(t *testing.T) {
	tmp := t.TempDir()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}

	// Succeeds for BV1ok, fails for everything else.
	script := `#!/usr/bin/env bash
set -euo pipefail
dir=""
url=""
while [ $# -gt 0 ]; do
  case "$1" in
    -d) dir="$2"; shift 2 ;;
    --sessdata|-q|--download-interval|--episodes) shift 2 ;;
    --*) shift ;;
    *) url="$1"; shift ;;
  esac
done
case "$url" in
  */BV1ok)
    printf ' 1.00 MiB/ 1.00 MiB 1.00 MiB/s\n'
    echo "data" > "$dir/Good Video.mp4"
    ;;
  *)
    echo "HTTP 412" >&2
    exit 1
    ;;
esac
`
	if err := os.WriteFile(filepath.Join(fakeBin, "yutto"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))

	stateDir := filepath.Join(tmp, "out", "Someone")
	if err := runstore.Mkdir(stateDir); err != nil {
		t.Fatal(err)
	}
	statePath := filepath.Join(stateDir, runstore.StateFileName)
	if err := runstore.SaveEntries(statePath, []model.VideoEntry{
		model.NewPendingEntry("BV1ok", ""),
		model.NewPendingEntry("BV1bad", ""),
	}); err != nil {
		t.Fatal(err)
	}

	resolver := fakeResolver{meta: map[string]discovery.Metadata{
		"BV1ok":  {Title: "Good Video", DurationSeconds: 1, PartCount: 1},
		"BV1bad": {Title: "Bad Video", DurationSeconds: 1, PartCount: 1},
	}}
	client := yutto.NewClient(yutto.Config{PollInterval: 10 * time.Millisecond})
	rec := &recorder{}

	res, err := Run(context.Background(), RunOptions{
		AccountID: "42",
		StateDir:  stateDir,
		Quality:   "80",
		Resolver:  resolver,
		Retrier:   &Retrier{Invoker: client, MaxAttempts: 2},
		Observer:  rec,
	})
	if err != nil {
		t.Fatalf("run failed unexpectedly: %v", err)
	}
	if res.Completed != 1 || res.Exhausted != 1 || res.Attempts != 3 {
		t.Fatalf("unexpected result %+v", res)
	}

	entries, err := runstore.LoadEntries(statePath)
	if err != nil {
		t.Fatal(err)
	}
	if !entries[0].Downloaded || len(entries[0].FilePaths) != 1 || filepath.Base(entries[0].FilePaths[0]) != "Good Video.mp4" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Downloaded || entries[1].Title != "Bad Video" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	if n := rec.count(func(e Event) bool { f, ok := e.(AttemptFailed); return ok && f.Kind == FailureProcess }); n != 2 {
		t.Fatalf("expected 2 process failures, got %d", n)
	}
}
