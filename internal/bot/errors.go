package bot

import (
	"errors"
	"fmt"

	"github.com/rawblock/inspect-gateway/internal/gc"
)

// InitErrorKind classifies why a bot failed to reach READY. The worker
// branches on it: terminal kinds retire the account, throttled kinds park it
// for 30 minutes, the rest retry.
type InitErrorKind string

const (
	InitInvalidCredentials InitErrorKind = "INVALID_CREDENTIALS"
	InitRateLimited        InitErrorKind = "RATE_LIMITED"
	InitAccountDisabled    InitErrorKind = "ACCOUNT_DISABLED"
	InitLoginThrottled     InitErrorKind = "LOGIN_THROTTLED"
	InitConnectionError    InitErrorKind = "CONNECTION_ERROR"
	InitInitialization     InitErrorKind = "INITIALIZATION_ERROR"
	InitTimeout            InitErrorKind = "TIMEOUT"
)

type InitError struct {
	Kind     InitErrorKind
	Username string
	Err      error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bot %s: %s", e.Username, e.Kind)
	}
	return fmt.Sprintf("bot %s: %s: %v", e.Username, e.Kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Terminal reports whether the account can never log on with the current
// credentials. Terminal accounts are blacklisted.
func (e *InitError) Terminal() bool {
	switch e.Kind {
	case InitInvalidCredentials, InitRateLimited, InitAccountDisabled:
		return true
	}
	return false
}

// Throttled reports whether the account should be cooled down (30 min) and
// retried later.
func (e *InitError) Throttled() bool {
	return e.Kind == InitLoginThrottled
}

// classifyLogon maps a gc logon error onto an init error kind.
func classifyLogon(username string, err error) *InitError {
	kind := InitInitialization
	switch {
	case errors.Is(err, gc.ErrInvalidPassword):
		kind = InitInvalidCredentials
	case errors.Is(err, gc.ErrRateLimited):
		kind = InitRateLimited
	case errors.Is(err, gc.ErrAccountDisabled):
		kind = InitAccountDisabled
	case errors.Is(err, gc.ErrLoginThrottled):
		kind = InitLoginThrottled
	case errors.Is(err, gc.ErrNotConnected):
		kind = InitConnectionError
	}
	return &InitError{Kind: kind, Username: username, Err: err}
}

// ErrNotReady is returned when an inspect is submitted to a bot in any state
// other than READY.
var ErrNotReady = errors.New("bot: not ready")
