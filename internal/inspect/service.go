// Package inspect is the request entry point: it parses inspect queries,
// guards admission, serves cache hits, dispatches fresh inspections through
// the worker manager and persists the normalized result.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rawblock/inspect-gateway/internal/format"
	"github.com/rawblock/inspect-gateway/internal/metrics"
	"github.com/rawblock/inspect-gateway/internal/schema"
	"github.com/rawblock/inspect-gateway/internal/worker"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

// ErrInspectTimeout marks a request that ran out its client-visible deadline
// or exhausted cross-bot retries.
var ErrInspectTimeout = errors.New("inspection timed out")

// ProcessingError wraps a persistence or formatting fault that happened
// after a successful coordinator reply. Surfaced as 500.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string { return "processing failed: " + e.Err.Error() }
func (e *ProcessingError) Unwrap() error { return e.Err }

// Dispatcher is the worker manager's dispatch surface.
type Dispatcher interface {
	InspectItem(ctx context.Context, s, a, d, m string) (*models.ItemPayload, error)
}

// AssetStore is the slice of the database the service needs.
type AssetStore interface {
	GetAsset(ctx context.Context, assetID int64) (*models.Asset, error)
	LatestByUniqueID(ctx context.Context, uniqueID string, excludeAssetID int64) (*models.Asset, error)
	SaveInspection(ctx context.Context, asset *models.Asset, hist *models.History) error
	GetRanking(ctx context.Context, uniqueID string) (*models.Ranking, error)
}

// CatalogSource yields the current item-schema snapshot.
type CatalogSource interface {
	Current() *schema.Catalog
}

type Service struct {
	store      AssetStore
	dispatcher Dispatcher
	catalogs   CatalogSource
	queue      *Queue
	metrics    *metrics.Metrics

	queueTimeout time.Duration
	log          zerolog.Logger

	cached atomic.Int64
}

// CachedCount is the number of requests served straight from the asset table.
func (s *Service) CachedCount() int64 { return s.cached.Load() }

// QueueDepth is the number of requests currently admitted.
func (s *Service) QueueDepth() int { return s.queue.Depth() }

func NewService(store AssetStore, dispatcher Dispatcher, catalogs CatalogSource,
	queue *Queue, m *metrics.Metrics, queueTimeout time.Duration, log zerolog.Logger) *Service {
	if queueTimeout == 0 {
		queueTimeout = 5 * time.Second
	}
	svc := &Service{
		store:        store,
		dispatcher:   dispatcher,
		catalogs:     catalogs,
		queue:        queue,
		metrics:      m,
		queueTimeout: queueTimeout,
		log:          log.With().Str("component", "inspect").Logger(),
	}
	queue.OnDepthChange(func(depth int) { m.QueueDepth.Set(float64(depth)) })
	return svc
}

// Inspect serves one parsed request: cache lookup unless refresh was asked
// for, then admission, dispatch, persistence and formatting.
func (s *Service) Inspect(ctx context.Context, req Request) (*models.InspectResponse, error) {
	assetID, err := strconv.ParseInt(req.A, 10, 64)
	if err != nil {
		return nil, badRequest("parameter a must be a numeric asset id")
	}

	if !req.Refresh {
		if resp, err := s.fromCache(ctx, assetID); err != nil {
			return nil, err
		} else if resp != nil {
			s.cached.Add(1)
			s.metrics.InspectionsTotal.WithLabelValues(metrics.OutcomeCached).Inc()
			return resp, nil
		}
	}

	flight, leader, err := s.queue.Join(req.A)
	if err != nil {
		return nil, err
	}

	if !leader {
		// Same asset already flying; share its outcome.
		select {
		case <-flight.Done:
			return flight.Outcome()
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrInspectTimeout, ctx.Err())
		}
	}

	// The dispatch runs on its own deadline so joiners are not cut short by
	// the leader's client hanging up.
	go s.runFlight(req)

	select {
	case <-flight.Done:
		return flight.Outcome()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrInspectTimeout, ctx.Err())
	}
}

func (s *Service) runFlight(req Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.queueTimeout)
	defer cancel()

	item, err := s.dispatcher.InspectItem(ctx, req.S, req.A, req.D, req.M)
	if err != nil {
		s.queue.Complete(req.A, nil, s.classifyDispatchError(req.A, err))
		return
	}

	resp, err := s.persistAndFormat(ctx, req, item)
	if err != nil {
		s.metrics.InspectionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.log.Error().Err(err).Str("asset_id", req.A).Msg("inspect reply could not be processed")
		s.queue.Complete(req.A, nil, err)
		return
	}

	s.metrics.InspectionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.metrics.InspectDuration.Observe(time.Since(started).Seconds())
	s.queue.Complete(req.A, resp, nil)
}

func (s *Service) classifyDispatchError(assetID string, err error) error {
	var te *worker.InspectTimeoutError
	switch {
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		s.metrics.InspectionsTotal.WithLabelValues(metrics.OutcomeTimeout).Inc()
		return fmt.Errorf("%w: %v", ErrInspectTimeout, err)
	default:
		s.metrics.InspectionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.log.Warn().Err(err).Str("asset_id", assetID).Msg("inspection failed")
		return err
	}
}

// fromCache formats a previously stored asset, or returns (nil, nil) on a
// cache miss.
func (s *Service) fromCache(ctx context.Context, assetID int64) (*models.InspectResponse, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, &ProcessingError{Err: err}
	}
	if asset == nil {
		return nil, nil
	}
	return s.formatAsset(ctx, asset)
}

func (s *Service) persistAndFormat(ctx context.Context, req Request, item *models.ItemPayload) (*models.InspectResponse, error) {
	ms, err := ownerParam(req)
	if err != nil {
		return nil, err
	}
	asset := normalizeAsset(item, ms, req.D)

	prev, err := s.store.LatestByUniqueID(ctx, asset.UniqueID, asset.AssetID)
	if err != nil {
		return nil, &ProcessingError{Err: err}
	}
	hist := buildHistory(prev, asset)

	if err := s.store.SaveInspection(ctx, asset, hist); err != nil {
		return nil, &ProcessingError{Err: err}
	}
	if hist != nil {
		s.log.Debug().
			Str("unique_id", asset.UniqueID).
			Int("type", hist.Type).
			Msg("history row recorded")
	}
	return s.formatAsset(ctx, asset)
}

func (s *Service) formatAsset(ctx context.Context, asset *models.Asset) (*models.InspectResponse, error) {
	cat := s.catalogs.Current()
	if cat == nil {
		return nil, &ProcessingError{Err: errors.New("item schema not loaded")}
	}
	rank, err := s.store.GetRanking(ctx, asset.UniqueID)
	if err != nil {
		// Ranking is enrichment, not correctness; serve without it.
		s.log.Warn().Err(err).Str("unique_id", asset.UniqueID).Msg("ranking lookup failed")
		rank = nil
	}
	return &models.InspectResponse{ItemInfo: format.Response(asset, rank, cat)}, nil
}

// ownerParam picks the ms value stored with the asset: the market listing id
// when present, else the steam id.
func ownerParam(req Request) (uint64, error) {
	raw := req.S
	if req.M != "" && req.M != "0" {
		raw = req.M
	}
	ms, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("owner parameter must be numeric")
	}
	return ms, nil
}
