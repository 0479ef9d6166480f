package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Weapon describes one weapon def index: its base name plus the paint-kit
// name table keyed by stringified paint index.
type Weapon struct {
	Name   string            `json:"name"`
	Paints map[string]string `json:"paints"`
}

// Item is the generic catalog entry for stickers, agents, graffiti and
// keychains.
type Item struct {
	MarketHashName string `json:"market_hash_name"`
}

// Catalog is the full item schema as served by the upstream provider.
// Immutable once loaded; swapped wholesale on refresh.
type Catalog struct {
	Weapons   map[string]Weapon `json:"weapons"`
	Stickers  map[string]Item   `json:"stickers"`
	Agents    map[string]Item   `json:"agents"`
	Graffiti  map[string]Item   `json:"graffiti"`
	Keychains map[string]Item   `json:"keychains"`
}

// Weapon looks up a weapon by numeric def index.
func (c *Catalog) Weapon(defIndex int) (Weapon, bool) {
	w, ok := c.Weapons[strconv.Itoa(defIndex)]
	return w, ok
}

// PaintName resolves the paint-kit name for a weapon, or "" when unknown.
func (c *Catalog) PaintName(defIndex, paintIndex int) string {
	w, ok := c.Weapon(defIndex)
	if !ok {
		return ""
	}
	return w.Paints[strconv.Itoa(paintIndex)]
}

// StickerName resolves a sticker id against the catalog.
func (c *Catalog) StickerName(stickerID int) string {
	return c.Stickers[strconv.Itoa(stickerID)].MarketHashName
}

// KeychainName resolves a keychain id against the catalog.
func (c *Catalog) KeychainName(keychainID int) string {
	return c.Keychains[strconv.Itoa(keychainID)].MarketHashName
}

// AgentName resolves an agent def index, with ok=false when the def index is
// not an agent.
func (c *Catalog) AgentName(defIndex int) (string, bool) {
	item, ok := c.Agents[strconv.Itoa(defIndex)]
	return item.MarketHashName, ok
}

// Provider fetches the catalog from the upstream schema endpoint at startup
// and refreshes it on an interval. Fetches run behind a circuit breaker so a
// flapping upstream cannot hammer itself through our refresh loop; readers
// always see the last good snapshot.
type Provider struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	current atomic.Pointer[Catalog]
	fetched atomic.Int64 // unix seconds of the last successful fetch
	log     zerolog.Logger
}

func NewProvider(url string, log zerolog.Logger) *Provider {
	settings := gobreaker.Settings{
		Name:    "item-schema",
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Provider{
		url:     url,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log.With().Str("component", "schema").Logger(),
	}
}

// Fetch downloads and installs a fresh catalog. The startup call must
// succeed before the gateway can format anything.
func (p *Provider) Fetch(ctx context.Context) error {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.download(ctx)
	})
	if err != nil {
		return err
	}

	cat := result.(*Catalog)
	p.current.Store(cat)
	p.fetched.Store(time.Now().Unix())
	p.log.Info().
		Int("weapons", len(cat.Weapons)).
		Int("stickers", len(cat.Stickers)).
		Int("keychains", len(cat.Keychains)).
		Msg("item schema loaded")
	return nil
}

func (p *Provider) download(ctx context.Context) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("schema fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("schema endpoint returned %d", resp.StatusCode)
	}

	var cat Catalog
	if err := json.NewDecoder(resp.Body).Decode(&cat); err != nil {
		return nil, fmt.Errorf("schema decode failed: %w", err)
	}
	if len(cat.Weapons) == 0 {
		return nil, fmt.Errorf("schema payload has no weapons table")
	}
	return &cat, nil
}

// Run refreshes the catalog until ctx is cancelled. Refresh failures keep
// the previous snapshot and are only logged.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Fetch(ctx); err != nil {
				p.log.Warn().Err(err).Msg("schema refresh failed, keeping previous catalog")
			}
		}
	}
}

// Current returns the active catalog snapshot, or nil before the first
// successful fetch.
func (p *Provider) Current() *Catalog {
	return p.current.Load()
}

// Age reports how long ago the catalog was fetched. Used by /health.
func (p *Provider) Age() time.Duration {
	ts := p.fetched.Load()
	if ts == 0 {
		return -1
	}
	return time.Since(time.Unix(ts, 0))
}
