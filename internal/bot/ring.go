package bot

import (
	"sync"
	"time"
)

// responseRing keeps the last N response times of a bot.
type responseRing struct {
	mu    sync.Mutex
	buf   []time.Duration
	next  int
	count int
}

func newResponseRing(size int) *responseRing {
	return &responseRing{buf: make([]time.Duration, size)}
}

func (r *responseRing) Push(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Average returns the mean of the recorded response times, 0 when empty.
func (r *responseRing) Average() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < r.count; i++ {
		sum += r.buf[i]
	}
	return sum / time.Duration(r.count)
}

func (r *responseRing) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
