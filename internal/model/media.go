package model

import (
	"path/filepath"
	"strings"
)

var mediaExt = map[string]struct{}{
	"mp4": {}, "mkv": {}, "webm": {}, "m4v": {}, "flv": {},
	"mov": {}, "avi": {}, "ts": {}, "m4a": {}, "mp3": {}, "aac": {},
}

// IsMediaFile reports whether name looks like finished downloader output.
// Partial and temporary files are excluded.
func IsMediaFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return false
	}
	if strings.HasSuffix(lower, ".part") || strings.HasSuffix(lower, ".tmp") {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(lower), ".")
	_, ok := mediaExt[ext]
	return ok
}

var unsafeNameChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "",
)

// SanitizeFileName makes a title or account name safe to use as a single
// path element. An empty result becomes fallback.
func SanitizeFileName(name, fallback string) string {
	s := strings.TrimSpace(unsafeNameChars.Replace(name))
	s = strings.Trim(s, ".")
	if s == "" {
		return fallback
	}
	return s
}
