package worker

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rawblock/inspect-gateway/internal/bot"
)

// loginThrottleHold is how long a LOGIN_THROTTLED account sits out before
// another initialization attempt.
const loginThrottleHold = 30 * time.Minute

// Worker owns one partition of bots and runs a single-threaded event loop:
// commands from the manager in, results and status messages out. Bots are
// never touched from outside this loop except through their own locks.
type Worker struct {
	id       int
	accounts []Account
	makeBot  func(Account) *bot.Bot

	commands chan Message
	events   chan<- Message

	bots      map[string]*bot.Bot
	inflight  map[string]string    // asset id -> request id
	throttled map[string]time.Time // username -> hold expiry

	// fan-in from every bot's streams
	botResults chan bot.InspectResult
	botStates  chan bot.StateChange

	// init outcomes funnel back into the loop; the bot maps are only ever
	// touched from Run.
	initOutcomes chan initOutcome

	log zerolog.Logger
}

type initOutcome struct {
	username string
	err      error
}

func NewWorker(id int, accounts []Account, events chan<- Message, makeBot func(Account) *bot.Bot, log zerolog.Logger) *Worker {
	return &Worker{
		id:           id,
		accounts:     accounts,
		makeBot:      makeBot,
		commands:     make(chan Message, 64),
		events:       events,
		bots:         make(map[string]*bot.Bot),
		inflight:     make(map[string]string),
		throttled:    make(map[string]time.Time),
		botResults:   make(chan bot.InspectResult, 256),
		botStates:    make(chan bot.StateChange, 256),
		initOutcomes: make(chan initOutcome, 64),
		log:          log.With().Str("component", "worker").Int("worker_id", id).Logger(),
	}
}

// Commands is the manager-facing channel for this worker.
func (w *Worker) Commands() chan<- Message { return w.commands }

// Run processes messages until ctx is cancelled or a shutdown command
// arrives. It spawns bot initialization in the background and posts a first
// stats snapshot as soon as any bot is up.
func (w *Worker) Run(ctx context.Context) {
	w.spawnBots(ctx, w.accounts)

	// Throttled accounts get another shot once their hold expires.
	retryTicker := time.NewTicker(time.Minute)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.destroyAll()
			return

		case msg := <-w.commands:
			switch msg.Type {
			case MsgInspectItem:
				w.handleInspect(msg)
			case MsgGetStats:
				w.postStats()
			case MsgShutdown:
				w.destroyAll()
				w.post(Message{Type: MsgShutdownDone, WorkerID: w.id})
				return
			}

		case res := <-w.botResults:
			w.handleBotResult(res)

		case change := <-w.botStates:
			w.log.Debug().
				Str("username", change.Username).
				Stringer("from", change.From).
				Stringer("to", change.To).
				Msg("bot state change")

		case out := <-w.initOutcomes:
			w.handleInitOutcome(out)

		case <-retryTicker.C:
			w.retryThrottled(ctx)
		}
	}
}

// spawnBots initializes each account's bot concurrently. Outcomes come back
// through initOutcomes so all map mutation stays on the loop.
func (w *Worker) spawnBots(ctx context.Context, accounts []Account) {
	for _, account := range accounts {
		b := w.makeBot(account)
		w.bots[account.Username] = b
		go w.forwardBot(ctx, b)
		go w.initBot(ctx, account.Username, b)
	}
}

func (w *Worker) initBot(ctx context.Context, username string, b *bot.Bot) {
	err := b.Initialize(ctx)
	select {
	case w.initOutcomes <- initOutcome{username: username, err: err}:
	case <-ctx.Done():
	}
}

func (w *Worker) handleInitOutcome(out initOutcome) {
	if out.err == nil {
		w.postStats()
		return
	}

	var ie *bot.InitError
	if errors.As(out.err, &ie) {
		switch {
		case ie.Terminal():
			// Account removed from the partition; the blacklist entry was
			// written by the bot itself.
			w.log.Warn().Str("username", out.username).Str("reason", string(ie.Kind)).Msg("removing account from partition")
			if b, ok := w.bots[out.username]; ok {
				b.Destroy()
				delete(w.bots, out.username)
			}
			return
		case ie.Throttled():
			w.log.Warn().Str("username", out.username).Msg("login throttled, holding 30m")
			w.throttled[out.username] = time.Now().Add(loginThrottleHold)
			return
		}
	}
	w.log.Error().Err(out.err).Str("username", out.username).Msg("bot failed to initialize")
}

// forwardBot fans one bot's streams into the worker loop.
func (w *Worker) forwardBot(ctx context.Context, b *bot.Bot) {
	results := b.Results()
	states := b.Lifecycle()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			w.botResults <- res
		case change, ok := <-states:
			if !ok {
				return
			}
			w.botStates <- change
		}
	}
}

func (w *Worker) retryThrottled(ctx context.Context) {
	now := time.Now()
	for username, until := range w.throttled {
		if now.Before(until) {
			continue
		}
		delete(w.throttled, username)
		b, ok := w.bots[username]
		if !ok {
			continue
		}
		w.log.Info().Str("username", username).Msg("throttle hold expired, retrying login")
		go w.initBot(ctx, username, b)
	}
}

// handleInspect dispatches one request to a uniformly random READY bot in
// the partition.
func (w *Worker) handleInspect(msg Message) {
	ready := w.readyBots()
	if len(ready) == 0 {
		w.post(Message{
			Type:      MsgInspectError,
			WorkerID:  w.id,
			RequestID: msg.RequestID,
			A:         msg.A,
			Err:       "no ready bots in partition",
		})
		return
	}
	b := ready[rand.Intn(len(ready))]

	// The owner parameter is the market listing id when present, else the
	// steam id.
	target := msg.S
	if msg.M != "" && msg.M != "0" {
		target = msg.M
	}

	w.inflight[msg.A] = msg.RequestID
	w.post(Message{Type: MsgBotStatusChange, WorkerID: w.id, BotStatus: "busy"})
	w.postStats()

	if err := b.InspectItem(target, msg.A, msg.D); err != nil {
		delete(w.inflight, msg.A)
		w.post(Message{Type: MsgBotStatusChange, WorkerID: w.id, BotStatus: "ready"})
		w.post(Message{
			Type:      MsgInspectError,
			WorkerID:  w.id,
			RequestID: msg.RequestID,
			A:         msg.A,
			Err:       err.Error(),
		})
	}
}

func (w *Worker) handleBotResult(res bot.InspectResult) {
	assetID := formatUint(res.AssetID)
	requestID, ok := w.inflight[assetID]
	if !ok {
		w.log.Warn().Str("asset_id", assetID).Msg("result for unknown inflight asset, dropping")
		return
	}
	delete(w.inflight, assetID)

	w.post(Message{Type: MsgBotStatusChange, WorkerID: w.id, BotStatus: "ready"})
	w.post(Message{
		Type:      MsgInspectResult,
		WorkerID:  w.id,
		RequestID: requestID,
		A:         assetID,
		Item:      res.Item,
	})
}

func (w *Worker) readyBots() []*bot.Bot {
	var ready []*bot.Bot
	for _, b := range w.bots {
		if b.State() == bot.StateReady {
			ready = append(ready, b)
		}
	}
	return ready
}

// postStats computes and posts the partition snapshot.
func (w *Worker) postStats() {
	stats := &Stats{WorkerID: w.id, TotalBots: len(w.bots)}
	for _, b := range w.bots {
		detail := BotDetail{
			Username: truncateName(b.Username()),
			Status:   b.State().String(),
		}
		botStats, avg := b.Snapshot()
		detail.Inspects = botStats.Inspects
		detail.Successes = botStats.Successes
		detail.Failures = botStats.Failures
		detail.Errors = botStats.Errors
		detail.Cooldowns = botStats.Cooldowns
		detail.AvgResponseMs = avg.Milliseconds()

		switch b.State() {
		case bot.StateReady:
			stats.ReadyBots++
		case bot.StateBusy:
			stats.BusyBots++
		case bot.StateCooldown:
			stats.CooldownBots++
		case bot.StateError:
			stats.ErrorBots++
		default:
			stats.OfflineBots++
		}
		stats.Bots = append(stats.Bots, detail)
	}
	w.post(Message{Type: MsgStats, WorkerID: w.id, Stats: stats})
}

func (w *Worker) destroyAll() {
	for _, b := range w.bots {
		b.Destroy()
	}
}

// post sends upstream without ever blocking the loop forever; the manager
// channel is generously buffered, so a full channel means the aggregator is
// gone and the message is moot.
func (w *Worker) post(msg Message) {
	select {
	case w.events <- msg:
	case <-time.After(5 * time.Second):
		w.log.Error().Stringer("type", msg.Type).Msg("manager channel blocked, dropping message")
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
