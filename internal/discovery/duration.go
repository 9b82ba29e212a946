package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatDuration renders seconds as e.g. "1h2m3s". Larger units appear only
// when non-zero or when a unit above them is present; seconds always appear.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / 86400
	hours := seconds % 86400 / 3600
	minutes := seconds % 3600 / 60
	secs := seconds % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 || hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	fmt.Fprintf(&b, "%ds", secs)
	return b.String()
}

// ParseDisplayDuration accepts the FormatDuration form ("1h0m5s") and the
// clock form used by listings ("61:05", "1:01:05").
func ParseDisplayDuration(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}

	total := 0
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'd' || r == 'h' || r == 'm' || r == 's':
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
			}
			total += n * unitSeconds[r]
			num = ""
		default:
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q: missing unit", raw)
	}
	return total, nil
}

var unitSeconds = map[rune]int{'d': 86400, 'h': 3600, 'm': 60, 's': 1}

func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock duration %q", s)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid clock duration %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}
