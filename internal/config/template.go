package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const template = `# creator-archiver configuration

[basic]
# numeric account id whose uploads are archived
uid = ""
output_dir = "~/Downloads"
# 127 126 125 120 116 112 100 80 74 64 32 16
video_quality = 127
SESSDATA = ""
bili_jct = ""
buvid3 = ""

[download]
binary = "yutto"
max_attempts = 5
timeout_base = "5s"
timeout_per_second = "2s"
# 0 disables the cap
timeout_cap = "10m"
download_interval = "2s"

[api]
request_interval = "1s"
page_size = 30

[store]
# dir = "/path/to/state"

[logging]
level = "info"
# file = "~/creator-archiver.log"

[metrics]
# textfile = "/var/lib/node_exporter/creator_archiver.prom"
`

// WriteTemplate creates a commented config file at path. An existing file is
// left alone and reported with created=false.
func WriteTemplate(path string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create config %s: %w", path, err)
	}
	if _, err := f.WriteString(template); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("write config %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close config %s: %w", path, err)
	}
	return true, nil
}
