package archive

import (
	"context"
	"fmt"
	"sync"

	"creator-archiver/internal/discovery"
	"creator-archiver/internal/upstream"
	"creator-archiver/internal/yutto"
)

type fakeInvoker struct {
	mu    sync.Mutex
	calls []yutto.Request
	fn    func(ctx context.Context, call int, req yutto.Request) (yutto.Result, error)
}

func (f *fakeInvoker) Invoke(ctx context.Context, req yutto.Request) (yutto.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(ctx, n, req)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeResolver struct {
	meta map[string]discovery.Metadata
	errs map[string]error
}

func (f fakeResolver) Resolve(_ context.Context, id string) (discovery.Metadata, error) {
	if err, ok := f.errs[id]; ok {
		return discovery.Metadata{}, err
	}
	if md, ok := f.meta[id]; ok {
		return md, nil
	}
	return discovery.Metadata{Title: "title " + id, DurationSeconds: 61, PartCount: 1, Raw: fmt.Sprintf(`{"bvid":%q}`, id)}, nil
}

type staticLister struct {
	ids []string
}

func (s staticLister) ListVideos(_ context.Context, _ string, page int) ([]upstream.ListedVideo, error) {
	if page > 1 {
		return nil, nil
	}
	out := make([]upstream.ListedVideo, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, upstream.ListedVideo{ID: id, Title: "listed " + id})
	}
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(match func(Event) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if match(e) {
			n++
		}
	}
	return n
}
