package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rawblock/inspect-gateway/internal/gc"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

// fakeGCSession answers every inspect immediately unless the account's
// username is in the swallow set.
type fakeGCSession struct {
	swallow map[string]bool

	mu       sync.Mutex
	username string

	events  chan gc.Event
	results chan gc.Result
}

func newFakeGCSession(swallow map[string]bool) *fakeGCSession {
	return &fakeGCSession{
		swallow: swallow,
		events:  make(chan gc.Event, 16),
		results: make(chan gc.Result, 16),
	}
}

func (f *fakeGCSession) LogOn(ctx context.Context, creds gc.Credentials) error {
	f.mu.Lock()
	f.username = creds.Username
	f.mu.Unlock()
	return nil
}

func (f *fakeGCSession) GamesPlayed(appID uint32) error {
	f.events <- gc.Event{Type: gc.EventGCReady}
	return nil
}

func (f *fakeGCSession) RequestInspect(owner, assetID, d uint64) error {
	f.mu.Lock()
	mute := f.swallow[f.username]
	f.mu.Unlock()
	if mute {
		return nil
	}
	f.results <- gc.Result{
		AssetID: assetID,
		Item:    &models.ItemPayload{ItemID: assetID, DefIndex: 7},
	}
	return nil
}

func (f *fakeGCSession) Events() <-chan gc.Event   { return f.events }
func (f *fakeGCSession) Results() <-chan gc.Result { return f.results }
func (f *fakeGCSession) RefreshToken() string      { return "" }
func (f *fakeGCSession) Close() error              { return nil }

func fakeDial(swallow map[string]bool) gc.DialFunc {
	return func(ctx context.Context, opts gc.DialOptions) (gc.Session, error) {
		return newFakeGCSession(swallow), nil
	}
}

func testManagerConfig(t *testing.T, swallow map[string]bool) ManagerConfig {
	t.Helper()
	return ManagerConfig{
		BotsPerWorker:     1,
		WorkerEnabled:     true,
		MaxInspectRetries: 3,
		InspectDeadline:   100 * time.Millisecond,
		RetryBackoff:      10 * time.Millisecond,
		StatsInterval:     20 * time.Millisecond,
		InspectTimeout:    40 * time.Millisecond,
		CooldownTime:      150 * time.Millisecond,
		LoginInterval:     time.Millisecond,
		SessionDir:        t.TempDir(),
		BlacklistPath:     t.TempDir() + "/blacklist.txt",
		Dial:              fakeDial(swallow),
	}
}

func waitReadyBots(t *testing.T, m *Manager, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.Stats(context.Background())
		if err == nil && snap.ReadyBots >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("fleet never reached %d ready bots", want)
}

func TestManagerDispatchAndReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(testManagerConfig(t, nil), zerolog.Nop())
	m.Start(ctx, []Account{{Username: "good01", Password: "pw"}})
	waitReadyBots(t, m, 1)

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	item, err := m.InspectItem(callCtx, "76561198000000001", "200", "456", "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if item.ItemID != 200 || item.DefIndex != 7 {
		t.Fatalf("item = %+v", item)
	}

	snap, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.Counters.Success != 1 {
		t.Fatalf("success counter = %d", snap.Counters.Success)
	}
}

func TestManagerRetriesAcrossWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two workers, one bot each; the first worker's bot never answers.
	swallow := map[string]bool{"swallow01": true}
	m := NewManager(testManagerConfig(t, swallow), zerolog.Nop())
	m.Start(ctx, []Account{
		{Username: "swallow01", Password: "pw"},
		{Username: "good01", Password: "pw"},
	})
	waitReadyBots(t, m, 2)

	callCtx, callCancel := context.WithTimeout(ctx, 10*time.Second)
	defer callCancel()
	item, err := m.InspectItem(callCtx, "76561198000000001", "300", "456", "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if item.ItemID != 300 {
		t.Fatalf("item = %+v", item)
	}

	snap, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.Counters.Retried == 0 {
		t.Fatalf("counters = %+v, expected at least one retry", snap.Counters)
	}
	if snap.Counters.SuccessAfterRetry == 0 {
		t.Fatalf("counters = %+v, expected successAfterRetry", snap.Counters)
	}
}

func TestManagerFailsWhenNoBots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(testManagerConfig(t, nil), zerolog.Nop())
	m.Start(ctx, nil)

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	_, err := m.InspectItem(callCtx, "76561198000000001", "400", "456", "")
	if !errors.Is(err, ErrNoBotsAvailable) {
		t.Fatalf("err = %v, want ErrNoBotsAvailable", err)
	}
}

func TestManagerTimeoutAfterRetriesExhausted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Every bot swallows; all attempts must burn out into a timeout.
	swallow := map[string]bool{"swallow01": true, "swallow02": true}
	m := NewManager(testManagerConfig(t, swallow), zerolog.Nop())
	m.Start(ctx, []Account{
		{Username: "swallow01", Password: "pw"},
		{Username: "swallow02", Password: "pw"},
	})
	waitReadyBots(t, m, 2)

	callCtx, callCancel := context.WithTimeout(ctx, 10*time.Second)
	defer callCancel()
	_, err := m.InspectItem(callCtx, "76561198000000001", "500", "456", "")
	if err == nil {
		t.Fatal("expected failure when every bot swallows the request")
	}

	var te *InspectTimeoutError
	if errors.As(err, &te) {
		if te.Attempts != 4 {
			t.Fatalf("attempts = %d, want 4 (1 + 3 retries)", te.Attempts)
		}
	} else if !errors.Is(err, ErrNoBotsAvailable) {
		// Both bots may be cooling down by the final attempt, which is an
		// equally valid terminal outcome here.
		t.Fatalf("err = %v", err)
	}
}
