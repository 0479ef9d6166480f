package schema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

const testCatalog = `{
	"weapons": {
		"7":   {"name": "AK-47", "paints": {"44": "Case Hardened", "490": "Asiimov"}},
		"507": {"name": "Karambit", "paints": {"418": "Doppler (Phase 2)"}}
	},
	"stickers":  {"5032": {"market_hash_name": "Sticker | Crown (Foil)"}},
	"agents":    {"4726": {"market_hash_name": "Special Agent Ava | FBI"}},
	"graffiti":  {"1": {"market_hash_name": "Sealed Graffiti | Little EZ"}},
	"keychains": {"20": {"market_hash_name": "Charm | Die-cast AK"}}
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(srv.URL, zerolog.Nop()), srv
}

func TestProviderFetchAndLookups(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testCatalog))
	})

	if p.Current() != nil {
		t.Fatalf("catalog must be nil before the first fetch")
	}
	if err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	cat := p.Current()
	if cat == nil {
		t.Fatal("catalog not installed after fetch")
	}
	if w, ok := cat.Weapon(7); !ok || w.Name != "AK-47" {
		t.Errorf("Weapon(7) = %+v, %v", w, ok)
	}
	if got := cat.PaintName(7, 44); got != "Case Hardened" {
		t.Errorf("PaintName(7,44) = %q", got)
	}
	if got := cat.PaintName(7, 999); got != "" {
		t.Errorf("unknown paint should resolve to empty, got %q", got)
	}
	if got := cat.StickerName(5032); got != "Sticker | Crown (Foil)" {
		t.Errorf("StickerName = %q", got)
	}
	if got := cat.KeychainName(20); got != "Charm | Die-cast AK" {
		t.Errorf("KeychainName = %q", got)
	}
	if name, ok := cat.AgentName(4726); !ok || name != "Special Agent Ava | FBI" {
		t.Errorf("AgentName = %q, %v", name, ok)
	}
	if _, ok := cat.AgentName(7); ok {
		t.Error("def index 7 must not resolve as an agent")
	}
}

func TestProviderKeepsSnapshotOnFailure(t *testing.T) {
	var fail atomic.Bool
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(testCatalog))
	})

	if err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("initial fetch failed: %v", err)
	}
	before := p.Current()

	fail.Store(true)
	if err := p.Fetch(context.Background()); err == nil {
		t.Fatal("expected fetch error from failing upstream")
	}
	if p.Current() != before {
		t.Fatal("failed refresh must keep the previous snapshot")
	}
}

func TestProviderBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		if err := p.Fetch(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	}
	// The breaker trips after 3 consecutive failures; later fetches are
	// rejected without reaching the upstream.
	if hits.Load() != 3 {
		t.Fatalf("expected exactly 3 upstream hits before the breaker opened, got %d", hits.Load())
	}
}

func TestProviderRejectsEmptySchema(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weapons": {}}`))
	})
	if err := p.Fetch(context.Background()); err == nil {
		t.Fatal("a catalog without weapons must be rejected")
	}
}
