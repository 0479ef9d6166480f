package gc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	"github.com/rawblock/inspect-gateway/pkg/models"
)

const (
	writeTimeout = 10 * time.Second
	// The coordinator pings; anything past this without a frame means the
	// connection is dead.
	readTimeout = 5 * time.Minute
)

// frame is the JSON envelope exchanged with the coordinator.
type frame struct {
	Type string `json:"type"`

	// logon
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// logon_failed
	Reason string `json:"reason,omitempty"`

	// games_played
	AppID uint32 `json:"app_id,omitempty"`

	// inspect / inspect_response
	ParamS string              `json:"param_s,omitempty"`
	ParamA string              `json:"param_a,omitempty"`
	ParamD string              `json:"param_d,omitempty"`
	Item   *models.ItemPayload `json:"item,omitempty"`
}

// wsSession implements Session over a websocket connection.
type wsSession struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	events  chan Event
	results chan Result
	logonCh chan error

	mu    sync.Mutex
	token string

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the coordinator endpoint, optionally through an HTTP or
// SOCKS5 proxy. The returned session is connected but not logged on.
func Dial(ctx context.Context, opts DialOptions) (Session, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("gc: bad proxy url: %w", err)
		}
		switch proxyURL.Scheme {
		case "http", "https":
			dialer.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			socks, err := proxy.FromURL(proxyURL, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("gc: socks proxy: %w", err)
			}
			dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := socks.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return socks.Dial(network, addr)
			}
		default:
			return nil, fmt.Errorf("gc: unsupported proxy scheme %q", proxyURL.Scheme)
		}
	}

	conn, resp, err := dialer.DialContext(ctx, opts.Endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gc: dial %s: status %d: %w", opts.Endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("gc: dial %s: %w", opts.Endpoint, err)
	}

	s := &wsSession{
		conn:    conn,
		events:  make(chan Event, 16),
		results: make(chan Result, 16),
		logonCh: make(chan error, 1),
		closed:  make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *wsSession) LogOn(ctx context.Context, creds Credentials) error {
	f := frame{Type: "logon", Username: creds.Username}
	if creds.RefreshToken != "" {
		f.RefreshToken = creds.RefreshToken
	} else {
		f.Password = creds.Password
	}
	if err := s.write(f); err != nil {
		return err
	}

	select {
	case err := <-s.logonCh:
		return err
	case <-s.closed:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *wsSession) GamesPlayed(appID uint32) error {
	return s.write(frame{Type: "games_played", AppID: appID})
}

func (s *wsSession) RequestInspect(owner, assetID, d uint64) error {
	return s.write(frame{
		Type:   "inspect",
		ParamS: strconv.FormatUint(owner, 10),
		ParamA: strconv.FormatUint(assetID, 10),
		ParamD: strconv.FormatUint(d, 10),
	})
}

func (s *wsSession) Events() <-chan Event   { return s.events }
func (s *wsSession) Results() <-chan Result { return s.results }

func (s *wsSession) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *wsSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *wsSession) write(f frame) error {
	select {
	case <-s.closed:
		return ErrNotConnected
	default:
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSession) readLoop() {
	defer func() {
		s.emit(Event{Type: EventDisconnected})
		close(s.events)
		close(s.results)
	}()

	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				// Deliberate Close; not a fault.
			default:
				select {
				case s.logonCh <- ErrNotConnected:
				default:
				}
			}
			return
		}

		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			continue
		}

		switch f.Type {
		case "logged_on":
			s.mu.Lock()
			s.token = f.RefreshToken
			s.mu.Unlock()
			select {
			case s.logonCh <- nil:
			default:
			}
			s.emit(Event{Type: EventLoggedOn})

		case "logon_failed":
			select {
			case s.logonCh <- logonError(f.Reason):
			default:
			}

		case "gc_ready":
			s.emit(Event{Type: EventGCReady})

		case "gc_down":
			s.emit(Event{Type: EventGCDown})

		case "inspect_response":
			if f.Item == nil {
				continue
			}
			assetID, _ := strconv.ParseUint(f.ParamA, 10, 64)
			if assetID == 0 {
				assetID = f.Item.ItemID
			}
			select {
			case s.results <- Result{AssetID: assetID, Item: f.Item}:
			default:
				// A stalled consumer must not wedge the read loop.
			}
		}
	}
}

func (s *wsSession) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// logonError maps the coordinator's reject reason to a typed error.
func logonError(reason string) error {
	switch reason {
	case "InvalidPassword":
		return ErrInvalidPassword
	case "RateLimitExceeded":
		return ErrRateLimited
	case "AccountDisabled", "Banned":
		return ErrAccountDisabled
	case "AccountLoginDeniedThrottle", "LoginThrottled":
		return ErrLoginThrottled
	default:
		return fmt.Errorf("gc: logon failed: %s", reason)
	}
}
