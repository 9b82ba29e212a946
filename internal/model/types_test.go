package model

import "testing"

func TestVideoIDFromURL(t *testing.T) {
	cases := map[string]string{
		"https://www.bilibili.com/video/BV1GJ411x7h7":  "BV1GJ411x7h7",
		"https://www.bilibili.com/video/BV1GJ411x7h7/": "BV1GJ411x7h7",
		"BV1GJ411x7h7": "BV1GJ411x7h7",
		"  ":           "",
	}
	for in, want := range cases {
		if got := VideoIDFromURL(in); got != want {
			t.Fatalf("VideoIDFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewPendingEntry_DerivesURL(t *testing.T) {
	e := NewPendingEntry("BV1abc", " Title ")
	if e.URL != "https://www.bilibili.com/video/BV1abc" {
		t.Fatalf("unexpected url %q", e.URL)
	}
	if e.Title != "Title" || e.Downloaded {
		t.Fatalf("unexpected entry %+v", e)
	}
	if VideoIDFromURL(e.URL) != e.ID {
		t.Fatalf("id does not round-trip through url")
	}
}

func TestCountDownloaded(t *testing.T) {
	entries := []VideoEntry{{ID: "a", Downloaded: true}, {ID: "b"}, {ID: "c"}}
	done, pending := CountDownloaded(entries)
	if done != 1 || pending != 2 {
		t.Fatalf("unexpected counts done=%d pending=%d", done, pending)
	}
	if AllDownloaded(entries) {
		t.Fatalf("expected pending entries to be detected")
	}
}

func TestIsMediaFile(t *testing.T) {
	cases := map[string]bool{
		"video.mp4":      true,
		"Clip.MKV":       true,
		"audio.m4a":      true,
		"video.mp4.part": false,
		"cover.jpg":      false,
		"danmaku.xml":    false,
		"":               false,
	}
	for name, want := range cases {
		if got := IsMediaFile(name); got != want {
			t.Fatalf("IsMediaFile(%q) = %v, want %v", name, got, want)
		}
	}
}
