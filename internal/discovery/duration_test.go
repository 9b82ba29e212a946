package discovery

import "testing"

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{61, "1m1s"},
		{3600, "1h0m0s"},
		{3661, "1h1m1s"},
		{86400, "1d0h0m0s"},
		{90061, "1d1h1m1s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.seconds); got != tc.want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestParseDisplayDuration_InvertsFormat(t *testing.T) {
	for _, seconds := range []int{0, 45, 61, 3600, 3661, 90061} {
		got, err := ParseDisplayDuration(FormatDuration(seconds))
		if err != nil {
			t.Fatalf("parse %d: %v", seconds, err)
		}
		if got != seconds {
			t.Fatalf("round trip %d -> %d", seconds, got)
		}
	}
}

func TestParseDisplayDuration_ClockAndInvalid(t *testing.T) {
	if got, err := ParseDisplayDuration("61:05"); err != nil || got != 3665 {
		t.Fatalf("clock mm:ss: got %d err %v", got, err)
	}
	if got, err := ParseDisplayDuration("1:01:05"); err != nil || got != 3665 {
		t.Fatalf("clock h:mm:ss: got %d err %v", got, err)
	}
	for _, bad := range []string{"", "12", "1x", "h5s", "1:2:3:4"} {
		if _, err := ParseDisplayDuration(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
