package cache

import (
	"net/http"
	"sync"
	"time"
)

const DefaultMaxFlights = 1000

// Flight is one in-progress cache fill. Followers that miss on the same
// key wait on it instead of fetching the chunk themselves.
type Flight struct {
	done      chan struct{}
	data      []byte
	header    http.Header
	err       error
	startedAt time.Time
}

type Coalescer struct {
	mu         sync.Mutex
	flights    map[string]*Flight
	maxFlights int
}

func NewCoalescer(maxFlights int) *Coalescer {
	if maxFlights <= 0 {
		maxFlights = DefaultMaxFlights
	}
	return &Coalescer{flights: make(map[string]*Flight), maxFlights: maxFlights}
}

// Start registers a fill for key. The second return reports whether the
// caller is the leader (owns the upstream fetch); the third whether
// coalescing applies at all for this request.
func (c *Coalescer) Start(key string) (*Flight, bool, bool) {
	if c == nil || key == "" {
		return nil, false, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.flights[key]; ok {
		return existing, false, true
	}
	if c.maxFlights > 0 && len(c.flights) >= c.maxFlights {
		return nil, false, false
	}
	flight := &Flight{done: make(chan struct{}), startedAt: time.Now()}
	c.flights[key] = flight
	return flight, true, true
}

func (c *Coalescer) Finish(key string, flight *Flight, data []byte, header http.Header, err error) {
	if c == nil || flight == nil {
		return
	}
	c.mu.Lock()
	if current, exists := c.flights[key]; exists && current == flight {
		delete(c.flights, key)
	}
	c.mu.Unlock()
	flight.data = data
	flight.header = header
	flight.err = err
	close(flight.done)
}

// Wait blocks until the leader finishes or the timeout elapses. The final
// return reports whether a result (or leader error) was obtained; false
// means the caller should break away and fetch on its own.
func (c *Coalescer) Wait(flight *Flight, timeout time.Duration) ([]byte, http.Header, error, bool) {
	if flight == nil || timeout <= 0 {
		return nil, nil, nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-flight.done:
		return flight.data, flight.header, flight.err, true
	case <-timer.C:
		return nil, nil, nil, false
	}
}
