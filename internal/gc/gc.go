// Package gc is the client surface for the game coordinator: logging on,
// announcing the played app, and the request/response inspect verb. The bot
// layer only sees the Session interface; the websocket transport in ws.go is
// the production implementation.
package gc

import (
	"context"
	"errors"

	"github.com/rawblock/inspect-gateway/pkg/models"
)

// AppID is the game whose coordinator serves inspect requests.
const AppID uint32 = 730

// Logon failure kinds, mapped from the coordinator's reject reasons.
var (
	ErrInvalidPassword = errors.New("gc: invalid password")
	ErrRateLimited     = errors.New("gc: rate limit exceeded")
	ErrAccountDisabled = errors.New("gc: account disabled")
	ErrLoginThrottled  = errors.New("gc: login throttled")
	ErrNotConnected    = errors.New("gc: not connected")
)

type Credentials struct {
	Username     string
	Password     string
	RefreshToken string // preferred over the password when set
}

type EventType int

const (
	EventLoggedOn EventType = iota
	EventGCReady
	EventGCDown
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventLoggedOn:
		return "logged_on"
	case EventGCReady:
		return "gc_ready"
	case EventGCDown:
		return "gc_down"
	case EventDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Event is a lifecycle notification from the session.
type Event struct {
	Type EventType
	Err  error
}

// Result is one asynchronous inspect reply.
type Result struct {
	AssetID uint64
	Item    *models.ItemPayload
}

// Session is one connection to the coordinator. Implementations must keep
// Events and Results open until Close; both channels are owned by the
// session's read loop.
type Session interface {
	LogOn(ctx context.Context, creds Credentials) error
	GamesPlayed(appID uint32) error
	RequestInspect(owner, assetID, d uint64) error
	Events() <-chan Event
	Results() <-chan Result

	// RefreshToken returns the token issued at logon, or "" when the
	// coordinator did not send one.
	RefreshToken() string

	Close() error
}

// DialOptions configure one session's transport.
type DialOptions struct {
	// Endpoint is the coordinator websocket URL (wss://...).
	Endpoint string
	// ProxyURL routes the connection when set; the [session] placeholder
	// has already been substituted by the bot layer.
	ProxyURL string
}

// DialFunc produces a connected (but not yet logged-on) session. The bot
// layer takes a DialFunc so tests can inject fakes.
type DialFunc func(ctx context.Context, opts DialOptions) (Session, error)
