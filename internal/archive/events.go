package archive

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"creator-archiver/internal/model"
	"creator-archiver/internal/yutto"
)

// Event is one of the orchestrator's progress notifications. The set of
// implementations is closed.
type Event interface {
	fmt.Stringer
	event()
}

type CatalogSynced struct {
	AccountID  string
	Total      int
	Pending    int
	Added      int
	Enumerated bool
}

type FetchStarted struct {
	Index   int
	Total   int
	VideoID string
	URL     string
}

type AttemptStarted struct {
	Index       int
	Total       int
	VideoID     string
	Title       string
	Duration    string
	Attempt     int
	MaxAttempts int
	Timeout     time.Duration
}

type TransferProgress struct {
	Index   int
	Total   int
	VideoID string
	Attempt int
	Sample  yutto.Sample
}

type AttemptFailed struct {
	VideoID     string
	Attempt     int
	MaxAttempts int
	Kind        FailureKind
	Err         error
	WillRetry   bool
}

type ItemSkipped struct {
	Index   int
	Total   int
	VideoID string
	Reason  string
	Err     error
}

type ItemCompleted struct {
	Index     int
	Total     int
	VideoID   string
	Title     string
	Outcome   model.AttemptState
	Attempts  int
	FilePaths []string
}

type RunCompleted struct {
	Result RunResult
}

func (CatalogSynced) event()    {}
func (FetchStarted) event()     {}
func (AttemptStarted) event()   {}
func (TransferProgress) event() {}
func (AttemptFailed) event()    {}
func (ItemSkipped) event()      {}
func (ItemCompleted) event()    {}
func (RunCompleted) event()     {}

func (e CatalogSynced) String() string {
	src := "store"
	if e.Enumerated {
		src = "listing"
	}
	return fmt.Sprintf("catalog ready from %s: %d videos, %d pending, %d new", src, e.Total, e.Pending, e.Added)
}

func (e FetchStarted) String() string {
	return fmt.Sprintf("[%d/%d] resolve %s", e.Index, e.Total, e.VideoID)
}

func (e AttemptStarted) String() string {
	return fmt.Sprintf("[%d/%d] attempt %d/%d %s %q (%s, timeout %s)",
		e.Index, e.Total, e.Attempt, e.MaxAttempts, e.VideoID, e.Title, e.Duration, e.Timeout)
}

func (e TransferProgress) String() string {
	s := e.Sample
	line := fmt.Sprintf("[%d/%d] %s  %s / %s", e.Index, e.Total, e.VideoID, humanBytes(s.DoneBytes), humanBytes(s.TotalBytes))
	if s.TotalBytes > 0 {
		line += fmt.Sprintf("  %5.1f%%", s.Fraction()*100)
	}
	if s.BytesPerSec > 0 {
		line += "  " + humanBytes(int64(s.BytesPerSec)) + "/s"
	}
	return line
}

func (e AttemptFailed) String() string {
	next := "giving up"
	if e.WillRetry {
		next = "retrying"
	}
	msg := fmt.Sprintf("attempt %d/%d for %s failed (%s), %s", e.Attempt, e.MaxAttempts, e.VideoID, e.Kind, next)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ItemSkipped) String() string {
	msg := fmt.Sprintf("[%d/%d] skip %s (%s)", e.Index, e.Total, e.VideoID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ItemCompleted) String() string {
	switch e.Outcome {
	case model.AttemptSucceeded:
		return fmt.Sprintf("[%d/%d] done %s %q -> %s", e.Index, e.Total, e.VideoID, e.Title, strings.Join(e.FilePaths, ", "))
	case model.AttemptExhausted:
		return fmt.Sprintf("[%d/%d] fail %s after %d attempts", e.Index, e.Total, e.VideoID, e.Attempts)
	default:
		return fmt.Sprintf("[%d/%d] %s %s", e.Index, e.Total, e.Outcome, e.VideoID)
	}
}

func (e RunCompleted) String() string {
	r := e.Result
	state := "finished"
	if r.Aborted {
		state = "aborted"
	}
	return fmt.Sprintf("run %s: processed=%d completed=%d exhausted=%d skipped=%d attempts=%d pending=%d",
		state, r.Processed, r.Completed, r.Exhausted, r.Skipped, r.Attempts, r.Pending)
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// ChannelObserver forwards events to a buffered channel for a consumer on
// another goroutine. TransferProgress samples are dropped when the buffer is
// full; other events wait for room.
type ChannelObserver struct {
	ch      chan Event
	dropped atomic.Int64
	once    sync.Once
}

func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelObserver{ch: make(chan Event, buffer)}
}

func (c *ChannelObserver) Observe(e Event) {
	if _, ok := e.(TransferProgress); ok {
		select {
		case c.ch <- e:
		default:
			c.dropped.Add(1)
		}
		return
	}
	c.ch <- e
}

func (c *ChannelObserver) Events() <-chan Event { return c.ch }

// Dropped reports how many progress samples were discarded.
func (c *ChannelObserver) Dropped() int64 { return c.dropped.Load() }

// Close ends the event stream. Observe must not be called afterwards.
func (c *ChannelObserver) Close() {
	c.once.Do(func() { close(c.ch) })
}
