package model

import (
	"net/url"
	"strings"
)

const VideoURLPrefix = "https://www.bilibili.com/video/"

// VideoEntry is one tracked video of the archived account. Entries are kept in
// catalog discovery order and keyed by ID.
type VideoEntry struct {
	ID         string
	URL        string
	Title      string
	Duration   string
	Downloaded bool
	FilePaths  []string
	RawInfo    string
}

func VideoURL(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return VideoURLPrefix + id
}

// VideoIDFromURL returns the last non-empty path segment of a canonical video
// URL. Bare identifiers are returned unchanged.
func VideoIDFromURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func NewPendingEntry(id, title string) VideoEntry {
	return VideoEntry{
		ID:    strings.TrimSpace(id),
		URL:   VideoURL(id),
		Title: strings.TrimSpace(title),
	}
}

// Key is the identity used for de-duplication: the ID, or the URL when an
// entry was loaded without a derivable ID.
func (e VideoEntry) Key() string {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id
	}
	return strings.TrimSpace(e.URL)
}

func CountDownloaded(entries []VideoEntry) (downloaded, pending int) {
	for _, e := range entries {
		if e.Downloaded {
			downloaded++
		} else {
			pending++
		}
	}
	return downloaded, pending
}

func AllDownloaded(entries []VideoEntry) bool {
	for _, e := range entries {
		if !e.Downloaded {
			return false
		}
	}
	return true
}
