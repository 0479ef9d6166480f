package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// SessionMaxAge is how long a persisted refresh token stays usable. Tokens
// older than this fall back to password login.
const SessionMaxAge = 180 * 24 * time.Hour

// SessionFile is the persisted login session at ${sessionDir}/${username}.json.
type SessionFile struct {
	RefreshToken string `json:"refreshToken"`
	Timestamp    int64  `json:"timestamp"` // unix milliseconds
	Username     string `json:"username"`
	HasGuard     bool   `json:"hasGuard"`
}

func sessionPath(dir, username string) string {
	return filepath.Join(dir, username+".json")
}

// LoadSession reads the persisted session for username. Returns (nil, nil)
// when no usable session exists: absent, unreadable, or older than
// SessionMaxAge.
func LoadSession(dir, username string) (*SessionFile, error) {
	data, err := os.ReadFile(sessionPath(dir, username))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var s SessionFile
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt session file for %s: %w", username, err)
	}
	if s.RefreshToken == "" {
		return nil, nil
	}

	age := time.Since(time.UnixMilli(s.Timestamp))
	if age > SessionMaxAge {
		return nil, nil
	}
	return &s, nil
}

// SaveSession persists a fresh refresh token for username.
func SaveSession(dir, username, refreshToken string, hasGuard bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s := SessionFile{
		RefreshToken: refreshToken,
		Timestamp:    time.Now().UnixMilli(),
		Username:     username,
		HasGuard:     hasGuard,
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(dir, username), data, 0o600)
}
