package yutto

import (
	"regexp"
	"strconv"
	"strings"
)

// Sample is one transfer telemetry reading.
type Sample struct {
	DoneBytes   int64
	TotalBytes  int64
	BytesPerSec float64
}

// Fraction is DoneBytes/TotalBytes clamped to [0,1]; 0 when unknown.
func (s Sample) Fraction() float64 {
	if s.TotalBytes <= 0 {
		return 0
	}
	f := float64(s.DoneBytes) / float64(s.TotalBytes)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Matches "12.3 MiB/ 45.6 MiB 1.2 MiB⚡/s" and plainer "10MB/20MB 1MB/s".
var reTransfer = regexp.MustCompile(
	`([0-9]+(?:\.[0-9]+)?)\s*((?:[KMGT]i?)?B)\s*/\s*([0-9]+(?:\.[0-9]+)?)\s*((?:[KMGT]i?)?B)\s+([0-9]+(?:\.[0-9]+)?)\s*((?:[KMGT]i?)?B)\S*/s`,
)

// ParseProgressLine extracts a Sample from one line of tool output. ok is
// false for lines that carry no transfer telemetry.
func ParseProgressLine(line string) (Sample, bool) {
	m := reTransfer.FindStringSubmatch(line)
	if len(m) < 7 {
		return Sample{}, false
	}
	done, ok1 := sizeToBytes(m[1], m[2])
	total, ok2 := sizeToBytes(m[3], m[4])
	rate, ok3 := sizeToBytes(m[5], m[6])
	if !ok1 || !ok2 || !ok3 {
		return Sample{}, false
	}
	return Sample{DoneBytes: int64(done), TotalBytes: int64(total), BytesPerSec: rate}, true
}

var unitFactor = map[string]float64{
	"b":   1,
	"kb":  1e3,
	"mb":  1e6,
	"gb":  1e9,
	"tb":  1e12,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
}

func sizeToBytes(num, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	f, ok := unitFactor[strings.ToLower(unit)]
	if !ok {
		return 0, false
	}
	return v * f, true
}
