package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rawblock/inspect-gateway/internal/bot"
	"github.com/rawblock/inspect-gateway/internal/gc"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

var (
	// ErrNoBotsAvailable surfaces after every retry found no worker with
	// ready bots.
	ErrNoBotsAvailable = errors.New("no bots available to fulfill the request")
	// ErrShuttingDown rejects submissions during teardown.
	ErrShuttingDown = errors.New("worker manager is shutting down")
)

// InspectTimeoutError carries how many attempts were burned before the
// manager gave up on a request.
type InspectTimeoutError struct {
	Attempts int
}

func (e *InspectTimeoutError) Error() string {
	return fmt.Sprintf("inspection timed out after %d attempts", e.Attempts)
}

// ManagerConfig bundles everything the aggregator and its bots need.
type ManagerConfig struct {
	BotsPerWorker     int           // default 50
	WorkerEnabled     bool          // false = one worker owns every bot
	MaxInspectRetries int           // default 3
	InspectDeadline   time.Duration // default 10s, per dispatch attempt
	RetryBackoff      time.Duration // default 1s between cross-bot retries
	SweepInterval     time.Duration // default 30s
	MaxPendingAge     time.Duration // default 60s
	StatsInterval     time.Duration // default 3s

	// Bot construction.
	GCEndpoint     string
	ProxyURL       string
	SessionDir     string
	BlacklistPath  string
	InspectTimeout time.Duration
	InitTimeout    time.Duration
	CooldownTime   time.Duration
	MaxRetries     int
	LoginInterval  time.Duration // spacing between logins fleet-wide
	Dial           gc.DialFunc
}

func (c *ManagerConfig) withDefaults() {
	if c.BotsPerWorker == 0 {
		c.BotsPerWorker = 50
	}
	if c.MaxInspectRetries == 0 {
		c.MaxInspectRetries = 3
	}
	if c.InspectDeadline == 0 {
		c.InspectDeadline = 10 * time.Second
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.MaxPendingAge == 0 {
		c.MaxPendingAge = 60 * time.Second
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = 3 * time.Second
	}
	if c.LoginInterval == 0 {
		c.LoginInterval = 500 * time.Millisecond
	}
}

// Counters are the manager's cumulative dispatch counters.
type Counters struct {
	Success           int64 `json:"successfulInspections"`
	Failed            int64 `json:"failedInspections"`
	Timeouts          int64 `json:"timedOutInspections"`
	Retried           int64 `json:"retriedInspections"`
	SuccessAfterRetry int64 `json:"successAfterRetry"`
}

// AggregatedStats is the /stats payload computed inside the manager loop.
type AggregatedStats struct {
	TotalBots    int      `json:"totalBots"`
	ReadyBots    int      `json:"readyBots"`
	BusyBots     int      `json:"busyBots"`
	CooldownBots int      `json:"cooldownBots"`
	ErrorBots    int      `json:"errorBots"`
	OfflineBots  int      `json:"offlineBots"`
	Pending      int      `json:"pendingRequests"`
	Counters     Counters `json:"counters"`
	P50Ms        int64    `json:"p50ResponseMs"`
	P90Ms        int64    `json:"p90ResponseMs"`
	P95Ms        int64    `json:"p95ResponseMs"`
	Workers      []Stats  `json:"workers"`
}

type inspectOutcome struct {
	item *models.ItemPayload
	err  error
}

// pendingRequest is one entry of the pending table, keyed by asset id.
type pendingRequest struct {
	requestID  string
	s, a, d, m string
	retries    int
	resultCh   chan inspectOutcome
	timer      *time.Timer
	started    time.Time // first submission
	attempt    time.Time // current dispatch
}

func (p *pendingRequest) resolve(out inspectOutcome) {
	if p.timer != nil {
		p.timer.Stop()
	}
	select {
	case p.resultCh <- out:
	default:
		// Caller already gave up; nothing to deliver to.
	}
}

type workerRef struct {
	id       int
	commands chan<- Message
	seen     bool // first stats snapshot arrived
	stats    Stats
}

type timedSample struct {
	at time.Time
	ms int64
}

// statsQuery is answered inside the loop so callers never touch loop state.
type statsQuery struct {
	reply chan AggregatedStats
}

// Manager shards the bot fleet across workers and owns the pending-request
// table. All mutable state lives inside run(); the exported methods only
// exchange messages with it.
type Manager struct {
	cfg ManagerConfig
	log zerolog.Logger

	workers []*workerRef
	events  chan Message
	submits chan *pendingRequest
	expired chan string // request ids whose dispatch deadline fired
	queries chan statsQuery

	pending   map[string]*pendingRequest
	counters  Counters
	samples   []timedSample
	rr        int
	startedAt time.Time

	done chan struct{}
}

func NewManager(cfg ManagerConfig, log zerolog.Logger) *Manager {
	cfg.withDefaults()
	return &Manager{
		cfg:       cfg,
		log:       log.With().Str("component", "manager").Logger(),
		events:    make(chan Message, 1024),
		submits:   make(chan *pendingRequest, 256),
		expired:   make(chan string, 256),
		queries:   make(chan statsQuery),
		pending:   make(map[string]*pendingRequest),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start partitions the accounts, spawns the workers, and runs the
// aggregator loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context, accounts []Account) {
	size := m.cfg.BotsPerWorker
	if !m.cfg.WorkerEnabled {
		// Unsharded mode: a single worker owns the whole fleet.
		size = len(accounts)
	}
	limiter := rate.NewLimiter(rate.Every(m.cfg.LoginInterval), 1)

	for i, part := range Partition(accounts, size) {
		w := NewWorker(i, part, m.events, m.botFactory(limiter), m.log)
		m.workers = append(m.workers, &workerRef{id: i, commands: w.Commands()})
		go w.Run(ctx)
	}
	m.log.Info().Int("workers", len(m.workers)).Int("accounts", len(accounts)).Msg("bot fleet starting")

	go m.run(ctx)
}

func (m *Manager) botFactory(limiter *rate.Limiter) func(Account) *bot.Bot {
	return func(account Account) *bot.Bot {
		return bot.New(bot.Options{
			Username:       account.Username,
			Password:       account.Password,
			SessionDir:     m.cfg.SessionDir,
			BlacklistPath:  m.cfg.BlacklistPath,
			GCEndpoint:     m.cfg.GCEndpoint,
			ProxyURL:       m.cfg.ProxyURL,
			InspectTimeout: m.cfg.InspectTimeout,
			InitTimeout:    m.cfg.InitTimeout,
			CooldownTime:   m.cfg.CooldownTime,
			MaxRetries:     m.cfg.MaxRetries,
			Dial:           m.cfg.Dial,
			LoginLimiter:   limiter,
			Log:            m.log,
		})
	}
}

// InspectItem dispatches one inspect and blocks until it resolves or ctx
// expires. Retries across bots happen inside the manager; the caller only
// sees the final outcome.
func (m *Manager) InspectItem(ctx context.Context, s, a, d, marketID string) (*models.ItemPayload, error) {
	req := &pendingRequest{
		requestID: uuid.NewString(),
		s:         s,
		a:         a,
		d:         d,
		m:         marketID,
		resultCh:  make(chan inspectOutcome, 1),
		started:   time.Now(),
	}

	select {
	case m.submits <- req:
	case <-m.done:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-req.resultCh:
		return out.item, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns the aggregated snapshot, computed inside the loop.
func (m *Manager) Stats(ctx context.Context) (AggregatedStats, error) {
	q := statsQuery{reply: make(chan AggregatedStats, 1)}
	select {
	case m.queries <- q:
	case <-m.done:
		return AggregatedStats{}, ErrShuttingDown
	case <-ctx.Done():
		return AggregatedStats{}, ctx.Err()
	}
	select {
	case snap := <-q.reply:
		return snap, nil
	case <-ctx.Done():
		return AggregatedStats{}, ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	sweeper := time.NewTicker(m.cfg.SweepInterval)
	defer sweeper.Stop()
	statsTicker := time.NewTicker(m.cfg.StatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return

		case req := <-m.submits:
			m.dispatch(req)

		case msg := <-m.events:
			m.handleEvent(msg)

		case requestID := <-m.expired:
			m.handleDeadline(requestID)

		case <-sweeper.C:
			m.sweep()

		case <-statsTicker.C:
			m.broadcast(Message{Type: MsgGetStats})

		case q := <-m.queries:
			q.reply <- m.snapshot()
		}
	}
}

// dispatch picks the next available worker (round-robin over workers that
// reported ready bots) and posts the request to it.
func (m *Manager) dispatch(req *pendingRequest) {
	ref := m.nextAvailableWorker()
	if ref == nil {
		m.retryOrFail(req, ErrNoBotsAvailable)
		return
	}

	req.attempt = time.Now()
	req.timer = time.AfterFunc(m.cfg.InspectDeadline, func() {
		select {
		case m.expired <- req.requestID:
		case <-m.done:
		}
	})
	m.pending[req.a] = req

	select {
	case ref.commands <- Message{
		Type:      MsgInspectItem,
		RequestID: req.requestID,
		S:         req.s,
		A:         req.a,
		D:         req.d,
		M:         req.m,
	}:
	default:
		// Worker loop is saturated; treat like an unavailable worker.
		req.timer.Stop()
		delete(m.pending, req.a)
		m.retryOrFail(req, ErrNoBotsAvailable)
	}
}

func (m *Manager) nextAvailableWorker() *workerRef {
	if len(m.workers) == 0 {
		return nil
	}
	for i := 0; i < len(m.workers); i++ {
		ref := m.workers[(m.rr+i)%len(m.workers)]
		if ref.seen && ref.stats.ReadyBots > 0 {
			m.rr = (m.rr + i + 1) % len(m.workers)
			return ref
		}
	}
	return nil
}

func (m *Manager) handleEvent(msg Message) {
	switch msg.Type {
	case MsgInspectResult:
		req, ok := m.pending[msg.A]
		if !ok || req.requestID != msg.RequestID {
			m.log.Warn().Str("asset_id", msg.A).Msg("result for unknown pending request")
			return
		}
		delete(m.pending, msg.A)
		m.counters.Success++
		if req.retries > 0 {
			m.counters.SuccessAfterRetry++
		}
		m.recordSample(time.Since(req.attempt))
		req.resolve(inspectOutcome{item: msg.Item})

	case MsgInspectError:
		req, ok := m.pending[msg.A]
		if !ok || req.requestID != msg.RequestID {
			return
		}
		delete(m.pending, msg.A)
		if req.timer != nil {
			req.timer.Stop()
		}
		m.retryOrFail(req, errors.New(msg.Err))

	case MsgStats:
		for _, ref := range m.workers {
			if ref.id == msg.WorkerID {
				ref.seen = true
				ref.stats = *msg.Stats
				break
			}
		}

	case MsgBotStatusChange:
		for _, ref := range m.workers {
			if ref.id != msg.WorkerID || !ref.seen {
				continue
			}
			// Keep the ready count fresh between snapshots so round-robin
			// doesn't keep feeding a drained worker.
			switch msg.BotStatus {
			case "busy":
				if ref.stats.ReadyBots > 0 {
					ref.stats.ReadyBots--
				}
				ref.stats.BusyBots++
			case "ready":
				ref.stats.ReadyBots++
				if ref.stats.BusyBots > 0 {
					ref.stats.BusyBots--
				}
			}
			break
		}

	case MsgShutdownDone:
		m.log.Info().Int("worker_id", msg.WorkerID).Msg("worker shut down")
	}
}

// handleDeadline fires when a dispatch attempt ran out its 10s budget: move
// the request to another bot or surface the timeout.
func (m *Manager) handleDeadline(requestID string) {
	var req *pendingRequest
	for _, p := range m.pending {
		if p.requestID == requestID {
			req = p
			break
		}
	}
	if req == nil {
		return
	}
	delete(m.pending, req.a)
	m.retryOrFail(req, &InspectTimeoutError{Attempts: req.retries + 1})
}

// retryOrFail applies the cross-bot retry policy: re-dispatch after the
// backoff while attempts remain, otherwise resolve the failure.
func (m *Manager) retryOrFail(req *pendingRequest, cause error) {
	if req.retries < m.cfg.MaxInspectRetries {
		req.retries++
		m.counters.Retried++
		m.log.Debug().Str("asset_id", req.a).Int("retry", req.retries).Err(cause).Msg("retrying inspection on another bot")
		time.AfterFunc(m.cfg.RetryBackoff, func() {
			select {
			case m.submits <- req:
			case <-m.done:
				req.resolve(inspectOutcome{err: ErrShuttingDown})
			}
		})
		return
	}

	var te *InspectTimeoutError
	if errors.As(cause, &te) {
		m.counters.Timeouts++
		cause = &InspectTimeoutError{Attempts: req.retries + 1}
	} else {
		m.counters.Failed++
	}
	m.log.Warn().Str("asset_id", req.a).Err(cause).Msg("inspection failed after all attempts")
	req.resolve(inspectOutcome{err: cause})
}

// sweep fails any pending entry older than MaxPendingAge. This is the
// fail-safe against messages lost between worker and manager.
func (m *Manager) sweep() {
	now := time.Now()
	for assetID, req := range m.pending {
		if now.Sub(req.started) < m.cfg.MaxPendingAge {
			continue
		}
		delete(m.pending, assetID)
		if req.timer != nil {
			req.timer.Stop()
		}
		m.counters.Timeouts++
		m.log.Warn().Str("asset_id", assetID).Msg("sweeping expired pending inspection")
		req.resolve(inspectOutcome{err: &InspectTimeoutError{Attempts: req.retries + 1}})
	}
}

func (m *Manager) broadcast(msg Message) {
	for _, ref := range m.workers {
		select {
		case ref.commands <- msg:
		default:
		}
	}
}

func (m *Manager) shutdown() {
	m.broadcast(Message{Type: MsgShutdown})
	for _, req := range m.pending {
		req.resolve(inspectOutcome{err: ErrShuttingDown})
	}
	m.pending = map[string]*pendingRequest{}
}

func (m *Manager) recordSample(elapsed time.Duration) {
	m.samples = append(m.samples, timedSample{at: time.Now(), ms: elapsed.Milliseconds()})
	// Drop anything past the percentile window to bound memory.
	cutoff := time.Now().Add(-statsWindow)
	trimmed := m.samples[:0]
	for _, s := range m.samples {
		if s.at.After(cutoff) {
			trimmed = append(trimmed, s)
		}
	}
	m.samples = trimmed
}

// statsWindow is the horizon for the response-time percentiles.
const statsWindow = 5 * time.Minute

func (m *Manager) snapshot() AggregatedStats {
	snap := AggregatedStats{
		Counters: m.counters,
		Pending:  len(m.pending),
	}
	for _, ref := range m.workers {
		if !ref.seen {
			continue
		}
		snap.Workers = append(snap.Workers, ref.stats)
		snap.TotalBots += ref.stats.TotalBots
		snap.ReadyBots += ref.stats.ReadyBots
		snap.BusyBots += ref.stats.BusyBots
		snap.CooldownBots += ref.stats.CooldownBots
		snap.ErrorBots += ref.stats.ErrorBots
		snap.OfflineBots += ref.stats.OfflineBots
	}

	cutoff := time.Now().Add(-statsWindow)
	var window []int64
	for _, s := range m.samples {
		if s.at.After(cutoff) {
			window = append(window, s.ms)
		}
	}
	snap.P50Ms = percentile(window, 50)
	snap.P90Ms = percentile(window, 90)
	snap.P95Ms = percentile(window, 95)
	return snap
}

// percentile is nearest-rank over a copy of the samples; 0 when empty.
func percentile(samples []int64, p int) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (p*len(sorted) + 99) / 100
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}
