// Package bot owns one authenticated game-coordinator session per instance.
// A bot serves exactly one inspect at a time and recovers from transient
// faults on its own; terminal login faults retire it permanently.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rawblock/inspect-gateway/internal/gc"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateReady
	StateBusy
	StateError
	StateCooldown
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateError:
		return "error"
	case StateCooldown:
		return "cooldown"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// StateChange is emitted on the lifecycle stream for every transition.
type StateChange struct {
	Username string
	From, To State
}

// InspectResult is emitted on the results stream when the coordinator
// answers an inspect.
type InspectResult struct {
	Username string
	AssetID  uint64
	Item     *models.ItemPayload
	Elapsed  time.Duration
}

// Stats are cumulative per-bot counters.
type Stats struct {
	Inspects  int64
	Successes int64
	Failures  int64
	Errors    int64
	Cooldowns int64
}

const responseRingSize = 100

type Options struct {
	Username string
	Password string

	SessionDir    string
	BlacklistPath string

	GCEndpoint string
	ProxyURL   string // may contain the [session] placeholder

	InspectTimeout time.Duration // default 2s
	InitTimeout    time.Duration // default 60s
	CooldownTime   time.Duration // default 30s
	MaxRetries     int           // default 3

	Dial         gc.DialFunc
	LoginLimiter *rate.Limiter // optional, shared across the fleet
	Log          zerolog.Logger
}

func (o *Options) withDefaults() {
	if o.InspectTimeout == 0 {
		o.InspectTimeout = 2 * time.Second
	}
	if o.InitTimeout == 0 {
		o.InitTimeout = 60 * time.Second
	}
	if o.CooldownTime == 0 {
		o.CooldownTime = 30 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.Dial == nil {
		o.Dial = gc.Dial
	}
}

type Bot struct {
	opts Options
	log  zerolog.Logger

	mu            sync.Mutex
	state         State
	session       gc.Session
	pendingAsset  uint64
	busySince     time.Time
	inspectTimer  *time.Timer
	cooldownTimer *time.Timer
	stats         Stats

	times *responseRing

	lifecycle chan StateChange
	results   chan InspectResult

	done      chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *Bot {
	opts.withDefaults()
	return &Bot{
		opts:      opts,
		log:       opts.Log.With().Str("component", "bot").Str("username", opts.Username).Logger(),
		state:     StateIdle,
		times:     newResponseRing(responseRingSize),
		lifecycle: make(chan StateChange, 32),
		results:   make(chan InspectResult, 8),
		done:      make(chan struct{}),
	}
}

func (b *Bot) Username() string { return b.opts.Username }

func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Lifecycle is the bot's state-transition stream.
func (b *Bot) Lifecycle() <-chan StateChange { return b.lifecycle }

// Results is the bot's inspect-reply stream.
func (b *Bot) Results() <-chan InspectResult { return b.results }

// Snapshot returns the cumulative counters and mean response time.
func (b *Bot) Snapshot() (Stats, time.Duration) {
	b.mu.Lock()
	stats := b.stats
	b.mu.Unlock()
	return stats, b.times.Average()
}

// Initialize brings the session to READY: login (refresh token preferred,
// password fallback), announce the game, wait for the coordinator handshake.
// Connection-level faults retry up to MaxRetries; terminal faults blacklist
// the account and return immediately.
func (b *Bot) Initialize(ctx context.Context) error {
	b.transition(StateInitializing)

	ctx, cancel := context.WithTimeout(ctx, b.opts.InitTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= b.opts.MaxRetries; attempt++ {
		select {
		case <-b.done:
			return &InitError{Kind: InitInitialization, Username: b.opts.Username, Err: errors.New("bot destroyed")}
		default:
		}

		err := b.connect(ctx)
		if err == nil {
			b.transition(StateReady)
			return nil
		}
		lastErr = err

		var ie *InitError
		if errors.As(err, &ie) {
			if ie.Terminal() {
				b.transition(StateError)
				if blErr := AppendBlacklist(b.opts.BlacklistPath, b.opts.Username, string(ie.Kind)); blErr != nil {
					b.log.Error().Err(blErr).Msg("failed to append blacklist")
				} else {
					b.log.Warn().Str("reason", string(ie.Kind)).Msg("account blacklisted")
				}
				return err
			}
			if ie.Throttled() {
				b.transition(StateError)
				return err
			}
		}
		if ctx.Err() != nil {
			break
		}
		b.log.Warn().Err(err).Int("attempt", attempt+1).Msg("init attempt failed, retrying")
	}

	b.transition(StateError)
	if ctx.Err() != nil {
		return &InitError{Kind: InitTimeout, Username: b.opts.Username, Err: ctx.Err()}
	}
	return lastErr
}

// connect performs one full login + GC handshake attempt.
func (b *Bot) connect(ctx context.Context) error {
	creds := gc.Credentials{Username: b.opts.Username, Password: b.opts.Password}

	saved, err := LoadSession(b.opts.SessionDir, b.opts.Username)
	if err != nil {
		b.log.Warn().Err(err).Msg("ignoring unreadable session file")
	} else if saved != nil {
		creds.RefreshToken = saved.RefreshToken
		b.log.Debug().Msg("reusing saved refresh token")
	}

	if b.opts.LoginLimiter != nil {
		if err := b.opts.LoginLimiter.Wait(ctx); err != nil {
			return &InitError{Kind: InitTimeout, Username: b.opts.Username, Err: err}
		}
	}

	sess, err := b.opts.Dial(ctx, gc.DialOptions{
		Endpoint: b.opts.GCEndpoint,
		ProxyURL: b.proxyURL(),
	})
	if err != nil {
		return &InitError{Kind: InitConnectionError, Username: b.opts.Username, Err: err}
	}

	if err := sess.LogOn(ctx, creds); err != nil {
		// A rejected refresh token is not a credential fault; retry the
		// same connection with the password.
		if creds.RefreshToken != "" && errors.Is(err, gc.ErrInvalidPassword) {
			b.log.Info().Msg("refresh token rejected, falling back to password login")
			creds.RefreshToken = ""
			err = sess.LogOn(ctx, creds)
		}
		if err != nil {
			sess.Close()
			return classifyLogon(b.opts.Username, err)
		}
	}

	if token := sess.RefreshToken(); token != "" {
		if err := SaveSession(b.opts.SessionDir, b.opts.Username, token, false); err != nil {
			b.log.Warn().Err(err).Msg("failed to persist refresh token")
		}
	}

	if err := sess.GamesPlayed(gc.AppID); err != nil {
		sess.Close()
		return &InitError{Kind: InitInitialization, Username: b.opts.Username, Err: err}
	}

	if err := b.awaitGCReady(ctx, sess); err != nil {
		sess.Close()
		return err
	}

	b.mu.Lock()
	b.session = sess
	b.mu.Unlock()
	go b.run(sess)
	return nil
}

func (b *Bot) awaitGCReady(ctx context.Context, sess gc.Session) error {
	for {
		select {
		case <-ctx.Done():
			return &InitError{Kind: InitTimeout, Username: b.opts.Username, Err: ctx.Err()}
		case ev, ok := <-sess.Events():
			if !ok {
				return &InitError{Kind: InitConnectionError, Username: b.opts.Username, Err: gc.ErrNotConnected}
			}
			switch ev.Type {
			case gc.EventGCReady:
				return nil
			case gc.EventDisconnected, gc.EventGCDown:
				return &InitError{Kind: InitConnectionError, Username: b.opts.Username, Err: gc.ErrNotConnected}
			}
		}
	}
}

// proxyURL substitutes [session] with a per-connect session id so rotating
// proxies hand out a fresh exit per reconnect.
func (b *Bot) proxyURL() string {
	if b.opts.ProxyURL == "" {
		return ""
	}
	sessionID := b.opts.Username + "_" + uuid.NewString()[:8]
	return strings.ReplaceAll(b.opts.ProxyURL, "[session]", sessionID)
}

// InspectItem submits one inspect. The bot must be READY; the transition to
// BUSY and the deadline timer are armed before the request leaves.
func (b *Bot) InspectItem(s, a, d string) error {
	owner, err1 := strconv.ParseUint(s, 10, 64)
	assetID, err2 := strconv.ParseUint(a, 10, 64)
	dParam, err3 := strconv.ParseUint(d, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return errors.New("bot: malformed inspect parameters")
	}

	b.mu.Lock()
	if b.state != StateReady {
		state := b.state
		b.mu.Unlock()
		b.log.Debug().Stringer("state", state).Msg("inspect refused, bot not ready")
		return ErrNotReady
	}
	sess := b.session
	b.setStateLocked(StateBusy)
	b.pendingAsset = assetID
	b.busySince = time.Now()
	b.stats.Inspects++
	b.inspectTimer = time.AfterFunc(b.opts.InspectTimeout, func() { b.onInspectTimeout(assetID) })
	b.mu.Unlock()

	if err := sess.RequestInspect(owner, assetID, dParam); err != nil {
		b.mu.Lock()
		if b.state == StateBusy && b.pendingAsset == assetID {
			b.stopInspectTimerLocked()
			b.stats.Failures++
			b.setStateLocked(StateReady)
		}
		b.mu.Unlock()
		return err
	}
	return nil
}

// onInspectTimeout fires when the coordinator never answered: the bot cools
// down and only returns to READY after CooldownTime.
func (b *Bot) onInspectTimeout(assetID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateBusy || b.pendingAsset != assetID {
		return
	}
	b.stats.Failures++
	b.stats.Cooldowns++
	b.pendingAsset = 0
	b.setStateLocked(StateCooldown)
	b.log.Warn().Uint64("asset_id", assetID).Dur("cooldown", b.opts.CooldownTime).Msg("inspect deadline hit, cooling down")

	b.cooldownTimer = time.AfterFunc(b.opts.CooldownTime, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.state == StateCooldown {
			b.setStateLocked(StateReady)
		}
	})
}

// run consumes one session's event and result streams until it dies.
func (b *Bot) run(sess gc.Session) {
	events := sess.Events()
	results := sess.Results()
	for {
		select {
		case <-b.done:
			return
		case ev, ok := <-events:
			if !ok {
				b.handleDisconnect(sess)
				return
			}
			switch ev.Type {
			case gc.EventDisconnected:
				b.handleDisconnect(sess)
				return
			case gc.EventGCDown:
				b.log.Warn().Msg("game coordinator went down, reconnecting")
				b.handleDisconnect(sess)
				return
			}
		case res, ok := <-results:
			if !ok {
				b.handleDisconnect(sess)
				return
			}
			b.handleResult(res)
		}
	}
}

func (b *Bot) handleResult(res gc.Result) {
	b.mu.Lock()
	if b.state != StateBusy || b.pendingAsset != res.AssetID {
		b.mu.Unlock()
		b.log.Warn().Uint64("asset_id", res.AssetID).Msg("dropping inspect reply received outside BUSY")
		return
	}
	b.stopInspectTimerLocked()
	elapsed := time.Since(b.busySince)
	b.pendingAsset = 0
	b.stats.Successes++
	b.setStateLocked(StateReady)
	b.mu.Unlock()

	b.times.Push(elapsed)

	select {
	case b.results <- InspectResult{
		Username: b.opts.Username,
		AssetID:  res.AssetID,
		Item:     res.Item,
		Elapsed:  elapsed,
	}:
	case <-b.done:
	}
}

func (b *Bot) handleDisconnect(sess gc.Session) {
	sess.Close()

	b.mu.Lock()
	b.stopInspectTimerLocked()
	b.pendingAsset = 0
	b.stats.Errors++
	b.session = nil
	b.setStateLocked(StateDisconnected)
	b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	b.log.Warn().Msg("session lost, reinitializing")
	go func() {
		if err := b.Initialize(context.Background()); err != nil {
			b.log.Error().Err(err).Msg("reinitialization failed")
		}
	}()
}

// Destroy logs the bot off and stops all background work. The bot cannot be
// reused afterwards.
func (b *Bot) Destroy() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		b.stopInspectTimerLocked()
		if b.cooldownTimer != nil {
			b.cooldownTimer.Stop()
		}
		sess := b.session
		b.session = nil
		b.setStateLocked(StateDisconnected)
		b.mu.Unlock()
		if sess != nil {
			sess.Close()
		}
	})
}

func (b *Bot) stopInspectTimerLocked() {
	if b.inspectTimer != nil {
		b.inspectTimer.Stop()
		b.inspectTimer = nil
	}
}

func (b *Bot) transition(to State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(to)
}

// setStateLocked performs the transition and emits it on the lifecycle
// stream. The stream is buffered; a wedged consumer loses transitions
// rather than deadlocking the bot.
func (b *Bot) setStateLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	change := StateChange{Username: b.opts.Username, From: from, To: to}
	select {
	case b.lifecycle <- change:
	default:
		b.log.Debug().Stringer("from", from).Stringer("to", to).Msg("lifecycle consumer lagging, transition dropped")
	}
}
