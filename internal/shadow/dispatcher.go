package shadow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rb3ckers/dualwrite/internal/config"
	"github.com/rb3ckers/dualwrite/internal/filter"
	"github.com/rb3ckers/dualwrite/internal/upstream"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrQueueFull is returned by Dispatch when the bounded queue is saturated.
// The newest snapshot is the one dropped; the primary path never blocks.
var ErrQueueFull = errors.New("shadow dispatch queue is full")

type job struct {
	id       string
	snapshot *filter.Snapshot
}

// Dispatcher delivers request snapshots to the shadow upstream on a worker
// pool, fire-and-forget: outcomes are logged and counted, never reported
// back. A circuit breaker suppresses attempts while the shadow is
// persistently failing; there are no retries, so each request results in at
// most one delivery attempt.
type Dispatcher struct {
	shadow    upstream.Peer
	netClient *http.Client
	breaker   *gobreaker.CircuitBreaker
	queue     chan *job
	quit      chan struct{}
	workers   int
	wg        sync.WaitGroup
	outcomes  cmap.ConcurrentMap[string, uint64]
}

func NewDispatcher(shadow upstream.Peer, cfg *config.Config) *Dispatcher {
	d := &Dispatcher{
		shadow: shadow,
		netClient: &http.Client{
			Timeout: time.Duration(cfg.ShadowTimeoutSeconds) * time.Second,
			// Transport without ambient proxy support: were the shadow call
			// routed through a configured HTTP proxy it could loop straight
			// back into this process.
			Transport: &http.Transport{Proxy: nil},
		},
		queue:    make(chan *job, cfg.MaxQueuedShadows),
		quit:     make(chan struct{}),
		workers:  cfg.ShadowWorkers,
		outcomes: cmap.New[uint64](),
	}

	settings := gobreaker.Settings{
		Name:          shadow.String(),
		MaxRequests:   1,
		Interval:      0, // Never clear counts
		Timeout:       time.Duration(cfg.RetryAfter) * time.Minute,
		OnStateChange: breakerStateHandler(),
	}

	d.breaker = gobreaker.NewCircuitBreaker(settings)

	return d
}

// Start launches the worker pool. Workers run until Stop is called; in-flight
// deliveries at shutdown are abandoned, which is acceptable for a best-effort
// shadow path.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)

		go d.worker()
	}

	log.Info().Int("workers", d.workers).Str("shadow", d.shadow.String()).Msg("Shadow dispatcher started")
}

func (d *Dispatcher) Stop() {
	close(d.quit)
	d.wg.Wait()
}

// Dispatch takes ownership of the snapshot and queues it for delivery. It
// never blocks: a full queue rejects the snapshot with ErrQueueFull.
func (d *Dispatcher) Dispatch(snapshot *filter.Snapshot) error {
	j := &job{
		id:       uuid.NewString(),
		snapshot: snapshot,
	}

	select {
	case d.queue <- j:
		dispatchedTotal.Inc()
		log.Debug().Str("dispatch-id", j.id).Str("uri", snapshot.URL.String()).Msg("Shadow request queued")

		return nil
	default:
		droppedTotal.Inc()
		d.count("dropped")

		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case j := <-d.queue:
			d.deliver(j)
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) deliver(j *job) {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.send(j)
	})

	if err != nil {
		d.count("error")
		outcomesTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("dispatch-id", j.id).Str("uri", j.snapshot.URL.String()).Msg("Shadow request failed")
	}
}

func (d *Dispatcher) send(j *job) error {
	snap := j.snapshot

	req, err := http.NewRequest(snap.Method, snap.URL.String(), bytes.NewReader(snap.Body)) //nolint:noctx
	if err != nil {
		return err
	}

	req.Header = snap.Header

	response, err := d.netClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	class := statusClass(response.StatusCode)
	d.count(class)
	outcomesTotal.WithLabelValues(class).Inc()

	log.Debug().
		Str("dispatch-id", j.id).
		Int("status", response.StatusCode).
		Interface("headers", response.Header).
		Msg("Shadow response received")

	// Drain the body, but discard it, to make sure connection can be reused.
	// A non-2xx status is informational, never an error for the breaker.
	_, err = io.Copy(io.Discard, response.Body)

	return err
}

// QueueDepth reports how many snapshots are waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

func (d *Dispatcher) BreakerState() string {
	return d.breaker.State().String()
}

// Outcomes returns a point-in-time copy of the per-class outcome counters.
func (d *Dispatcher) Outcomes() map[string]uint64 {
	return d.outcomes.Items()
}

func (d *Dispatcher) count(class string) {
	d.outcomes.Upsert(class, 1, func(exists bool, current, incoming uint64) uint64 {
		return current + incoming
	})
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
