package archive

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ConsoleObserver prints events as lines. With live set, transfer progress
// is redrawn in place on a single terminal line, at most once per
// refresh interval.
type ConsoleObserver struct {
	w       io.Writer
	live    bool
	refresh time.Duration

	mu       sync.Mutex
	lastDraw time.Time
	drawn    bool
}

func NewConsoleObserver(w io.Writer, live bool) *ConsoleObserver {
	return &ConsoleObserver{w: w, live: live, refresh: 700 * time.Millisecond}
}

func (c *ConsoleObserver) Observe(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := e.(TransferProgress); ok {
		if !c.live {
			return
		}
		now := time.Now()
		if c.drawn && now.Sub(c.lastDraw) < c.refresh && p.Sample.Fraction() < 1 {
			return
		}
		fmt.Fprintf(c.w, "\r\033[2K%s", p.String())
		c.lastDraw = now
		c.drawn = true
		return
	}

	if c.drawn {
		fmt.Fprint(c.w, "\r\033[2K")
		c.drawn = false
	}
	fmt.Fprintln(c.w, e.String())
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
