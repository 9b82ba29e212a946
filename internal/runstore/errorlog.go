package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const ErrorLogFileName = "download_errors.log"

func ExhaustedLine(url string, maxAttempts int) string {
	return fmt.Sprintf("Failed to download %s after %d attempts.", url, maxAttempts)
}

// AppendErrorLog appends one line to the append-only failure log.
func AppendErrorLog(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create parent for %s: %w", ErrStoreIO, path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open error log %s: %w", ErrStoreIO, path, err)
	}
	if _, err := f.WriteString(strings.TrimRight(line, "\n") + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: append error log %s: %w", ErrStoreIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close error log %s: %w", ErrStoreIO, path, err)
	}
	return nil
}
