package inspect

import (
	"errors"
	"sync"

	"github.com/rawblock/inspect-gateway/pkg/models"
)

// ErrQueueFull rejects new work when the admission set is at capacity.
var ErrQueueFull = errors.New("inspect queue is full")

// Flight is one in-flight inspection of an asset id. Later callers of the
// same asset join the first flight instead of dispatching twice; everyone
// reads the outcome after Done is closed.
type Flight struct {
	Done chan struct{}

	resp *models.InspectResponse
	err  error
}

// Outcome returns the flight's result. Only valid after Done is closed.
func (f *Flight) Outcome() (*models.InspectResponse, error) {
	return f.resp, f.err
}

// Queue is the bounded admission set, keyed by asset id. At most one live
// flight per asset id; the flight does not count against capacity twice.
type Queue struct {
	mu      sync.Mutex
	flights map[string]*Flight
	maxSize int

	onDepth func(int) // depth gauge hook, may be nil
}

func NewQueue(maxSize int) *Queue {
	return &Queue{
		flights: make(map[string]*Flight),
		maxSize: maxSize,
	}
}

// OnDepthChange registers a callback invoked with the queue depth after
// every admit and completion.
func (q *Queue) OnDepthChange(fn func(int)) {
	q.mu.Lock()
	q.onDepth = fn
	q.mu.Unlock()
}

// Join admits an asset id. leader=true means the caller owns the dispatch
// and must eventually call Complete; leader=false means an identical request
// is already flying and the caller should wait on the returned flight.
func (q *Queue) Join(assetID string) (*Flight, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if f, ok := q.flights[assetID]; ok {
		return f, false, nil
	}
	if len(q.flights) >= q.maxSize {
		return nil, false, ErrQueueFull
	}
	f := &Flight{Done: make(chan struct{})}
	q.flights[assetID] = f
	q.notifyDepthLocked()
	return f, true, nil
}

// Complete resolves a flight and removes it from the admission set. Waiters
// observe the outcome through the closed Done channel.
func (q *Queue) Complete(assetID string, resp *models.InspectResponse, err error) {
	q.mu.Lock()
	f, ok := q.flights[assetID]
	if ok {
		delete(q.flights, assetID)
		q.notifyDepthLocked()
	}
	q.mu.Unlock()
	if !ok {
		return
	}
	f.resp = resp
	f.err = err
	close(f.Done)
}

// Depth is the number of live flights.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.flights)
}

func (q *Queue) notifyDepthLocked() {
	if q.onDepth != nil {
		q.onDepth(len(q.flights))
	}
}
