package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppendBlacklist records a terminally failed account as one
// "username:reason:timestamp" line. The file is append-only; nothing ever
// rewrites it.
func AppendBlacklist(path, username, reason string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("%s:%s:%s\n", username, reason, time.Now().UTC().Format(time.RFC3339))
	_, err = f.WriteString(line)
	return err
}
