package yutto

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"creator-archiver/internal/model"
)

const (
	DefaultBinary           = "yutto"
	DefaultSentinel         = "合并完成"
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultDownloadInterval = 2 * time.Second
	defaultWaitDelay        = 2 * time.Second
	maxKeptOutput           = 8192
)

type Config struct {
	Binary   string
	Sentinel string
	// PollInterval throttles progress callbacks.
	PollInterval time.Duration
	// DownloadInterval is passed to the tool as its minimum delay between
	// upstream requests.
	DownloadInterval time.Duration
	// WaitDelay bounds how long Invoke waits for output pipes after the
	// process is gone.
	WaitDelay time.Duration
	Logger    *zap.Logger
}

type Client struct {
	binary           string
	sentinel         string
	pollInterval     time.Duration
	downloadInterval time.Duration
	waitDelay        time.Duration
	logger           *zap.Logger
}

func NewClient(cfg Config) *Client {
	c := &Client{
		binary:           strings.TrimSpace(cfg.Binary),
		sentinel:         cfg.Sentinel,
		pollInterval:     cfg.PollInterval,
		downloadInterval: cfg.DownloadInterval,
		waitDelay:        cfg.WaitDelay,
		logger:           cfg.Logger,
	}
	if c.binary == "" {
		c.binary = DefaultBinary
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.downloadInterval < 0 {
		c.downloadInterval = 0
	}
	if c.waitDelay <= 0 {
		c.waitDelay = defaultWaitDelay
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

type Request struct {
	URL       string
	OutputDir string
	Quality   string
	SessData  string
	PartCount int
	// Title is used to find existing output when the tool skips a file that
	// is already on disk.
	Title    string
	Timeout  time.Duration
	Progress func(Sample)
}

type Result struct {
	FilePaths []string
	Command   []string
}

// CheckDependency returns the resolved path of the download tool.
func CheckDependency(binary string) (string, error) {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("missing dependency: %s is not installed or not on PATH", binary)
	}
	return path, nil
}

// Args builds the tool's argument list for req.
func (c *Client) Args(req Request) []string {
	args := make([]string, 0, 14)
	if s := strings.TrimSpace(req.SessData); s != "" {
		args = append(args, "--sessdata", s)
	}
	args = append(args, "-d", req.OutputDir)
	if q := strings.TrimSpace(req.Quality); q != "" {
		args = append(args, "-q", q)
	}
	args = append(args, "--save-cover")
	if c.downloadInterval > 0 {
		secs := int(c.downloadInterval.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = append(args, "--download-interval", strconv.Itoa(secs))
	}
	if req.PartCount > 1 {
		args = append(args, "--batch", "--episodes", "1~-1")
	}
	return append(args, req.URL)
}

// Invoke runs one download attempt. The tool is killed when req.Timeout
// elapses (*TimeoutError) or ctx is cancelled (ErrAborted).
func (c *Client) Invoke(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Result{}, fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return Result{}, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory %s: %w", req.OutputDir, err)
	}

	before, err := snapshotMedia(req.OutputDir)
	if err != nil {
		return Result{}, err
	}

	args := c.Args(req)
	res := Result{Command: append([]string{c.binary}, args...)}

	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if req.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	tracker := &outputTracker{sentinel: c.sentinel}
	stdout := &lineWriter{onLine: tracker.line}
	stderr := &lineWriter{onLine: tracker.line}
	cmd := exec.CommandContext(attemptCtx, c.binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = c.waitDelay

	c.logger.Debug("starting download tool",
		zap.String("url", req.URL),
		zap.Strings("args", args),
		zap.Duration("timeout", req.Timeout),
	)

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		err := cmd.Run()
		stdout.flush()
		stderr.flush()
		return err
	})
	if req.Progress != nil {
		g.Go(func() error {
			c.pollProgress(done, tracker, req.Progress)
			return nil
		})
	}
	runErr := g.Wait()

	if ctx.Err() != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrAborted, req.URL, ctx.Err())
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return res, &TimeoutError{Timeout: req.Timeout}
	}
	if runErr != nil && !errors.Is(runErr, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return res, &ProcessError{ExitCode: exitErr.ExitCode(), Output: tracker.output()}
		}
		return res, fmt.Errorf("run %s: %w", c.binary, runErr)
	}

	if req.PartCount > 1 && c.sentinel != "" && !tracker.sawSentinel() {
		return res, ErrMissingSentinel
	}

	after, err := snapshotMedia(req.OutputDir)
	if err != nil {
		return res, err
	}
	paths := changedFiles(before, after)
	if len(paths) == 0 {
		paths = filesMatchingTitle(req.OutputDir, after, req.Title)
	}
	if len(paths) == 0 {
		return res, ErrNoOutput
	}
	res.FilePaths = paths
	return res, nil
}

func (c *Client) pollProgress(done <-chan struct{}, tracker *outputTracker, fn func(Sample)) {
	t := time.NewTicker(c.pollInterval)
	defer t.Stop()
	publish := func() {
		if s, ok := tracker.takeSample(); ok {
			fn(s)
		}
	}
	for {
		select {
		case <-done:
			publish()
			return
		case <-t.C:
			publish()
		}
	}
}

// outputTracker is shared by the stdout and stderr writers.
type outputTracker struct {
	sentinel string

	mu     sync.Mutex
	seen   bool
	sample Sample
	fresh  bool
	tail   strings.Builder
}

func (t *outputTracker) line(line string) {
	l := strings.TrimSpace(line)
	if l == "" {
		return
	}
	s, isProgress := ParseProgressLine(l)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sentinel != "" && strings.Contains(l, t.sentinel) {
		t.seen = true
	}
	if isProgress {
		t.sample = s
		t.fresh = true
		return
	}
	appendTail(&t.tail, l)
}

func (t *outputTracker) takeSample() (Sample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.fresh {
		return Sample{}, false
	}
	t.fresh = false
	return t.sample, true
}

func (t *outputTracker) sawSentinel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen
}

func (t *outputTracker) output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tail.String()
}

// appendTail keeps the most recent output, dropping the oldest half when
// the buffer is full.
func appendTail(b *strings.Builder, line string) {
	if b.Len()+len(line)+1 > maxKeptOutput {
		kept := b.String()
		kept = kept[len(kept)/2:]
		if i := strings.IndexByte(kept, '\n'); i >= 0 {
			kept = kept[i+1:]
		}
		b.Reset()
		b.WriteString(kept)
	}
	if len(line) > maxKeptOutput/2 {
		line = line[:maxKeptOutput/2]
	}
	b.WriteString(line)
	b.WriteByte('\n')
}

// lineWriter splits a byte stream on '\n' or '\r'.
type lineWriter struct {
	mu     sync.Mutex
	buf    []byte
	onLine func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' || b == '\r' {
			w.emit()
			continue
		}
		w.buf = append(w.buf, b)
		if len(w.buf) >= 1<<20 {
			w.emit()
		}
	}
	return len(p), nil
}

func (w *lineWriter) emit() {
	if len(w.buf) == 0 {
		return
	}
	line := string(w.buf)
	w.buf = w.buf[:0]
	w.onLine(line)
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit()
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

func snapshotMedia(root string) (map[string]fileStamp, error) {
	files := make(map[string]fileStamp)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !model.IsMediaFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		files[path] = fileStamp{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scan output directory %s: %w", root, err)
	}
	return files, nil
}

func changedFiles(before, after map[string]fileStamp) []string {
	out := make([]string, 0)
	for path, st := range after {
		prev, ok := before[path]
		if !ok || !prev.modTime.Equal(st.modTime) || prev.size != st.size {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// filesMatchingTitle finds media already on disk for title. Batch downloads
// land under a <title>/ directory, so every element of the path relative to
// root is checked, not only the file name.
func filesMatchingTitle(root string, files map[string]fileStamp, title string) []string {
	needle := model.SanitizeFileName(title, "")
	if needle == "" {
		return nil
	}
	out := make([]string, 0)
	for path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
			if strings.Contains(elem, needle) {
				out = append(out, path)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
