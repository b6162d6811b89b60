package simulator

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediguard/mediguard/backend/catalog"
	"github.com/mediguard/mediguard/backend/observability"
)

// StreamOptions configures one simulated run.
type StreamOptions struct {
	Duration  time.Duration
	Interval  time.Duration
	MaxEvents int // 0 = bounded by duration only

	// Indices replays these catalog rows in order instead of random
	// sampling. Selector takes precedence over Indices when both are set.
	Indices  []int
	Selector Selector
}

// validate rejects malformed options synchronously, before any worker is
// spawned. Request-level range limits live in the control surface; the
// engine only requires positive timings.
func (o StreamOptions) validate() error {
	if o.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", o.Duration)
	}
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", o.Interval)
	}
	if o.MaxEvents < 0 {
		return fmt.Errorf("max_events must not be negative, got %d", o.MaxEvents)
	}
	return nil
}

type streamHandle struct {
	id      string
	cancel  context.CancelFunc
	stopped bool
}

// Supervisor owns the registry of running streams. Each stream is one worker
// goroutine; the registry is the only shared mutable state and sits behind
// one mutex.
type Supervisor struct {
	gen         *Generator
	broadcaster Broadcaster
	evaluator   Evaluator
	catalog     *catalog.Catalog

	mu      sync.Mutex
	streams map[string]*streamHandle
}

// NewSupervisor wires the simulation pipeline. evaluator may be nil when no
// alerting is configured.
func NewSupervisor(gen *Generator, b Broadcaster, e Evaluator, c *catalog.Catalog) *Supervisor {
	return &Supervisor{
		gen:         gen,
		broadcaster: b,
		evaluator:   e,
		catalog:     c,
		streams:     make(map[string]*streamHandle),
	}
}

// Start validates opts, registers a new stream and spawns its worker.
// Returns the opaque stream id.
func (s *Supervisor) Start(opts StreamOptions) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	sel := opts.Selector
	if sel == nil && opts.Indices != nil {
		if err := ValidateIndices(s.catalog, opts.Indices); err != nil {
			return "", err
		}
		sel = SelectIndices(s.catalog, opts.Indices)
	}
	if sel == nil {
		sel = SelectRandom(s.catalog, rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	handle := &streamHandle{id: id, cancel: cancel}

	s.mu.Lock()
	s.streams[id] = handle
	s.mu.Unlock()

	observability.ActiveStreams.Inc()
	log.Printf("stream %s started (duration=%s interval=%s max_events=%d)", id, opts.Duration, opts.Interval, opts.MaxEvents)

	go s.run(ctx, id, opts, sel)
	return id, nil
}

// Stop requests cooperative cancellation of a stream. Returns false when the
// id is unknown or the stream was already stopped. The worker may still emit
// its in-flight tick before exiting.
func (s *Supervisor) Stop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.streams[id]
	if !ok || handle.stopped {
		return false
	}
	handle.stopped = true
	handle.cancel()
	log.Printf("stream %s stop requested", id)
	return true
}

// StopAll cancels every running stream. Used on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, handle := range s.streams {
		if !handle.stopped {
			handle.stopped = true
			handle.cancel()
		}
	}
}

// Active returns the ids of currently running streams.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	return ids
}

func (s *Supervisor) remove(id string) {
	s.mu.Lock()
	delete(s.streams, id)
	s.mu.Unlock()
}

// run is the stream worker loop: check cancellation, produce one event,
// publish it, hand it to the evaluator, wait out the interval. Sequence
// numbers are gapless from 0 until the loop exits.
func (s *Supervisor) run(ctx context.Context, id string, opts StreamOptions, sel Selector) {
	defer func() {
		s.remove(id)
		observability.ActiveStreams.Dec()
		s.broadcaster.Publish("stream_ended", map[string]string{"stream_id": id})
		log.Printf("stream %s ended", id)
	}()

	deadline := time.Now().Add(opts.Duration)
	seq := 0

	for {
		if ctx.Err() != nil {
			return
		}
		if !time.Now().Before(deadline) {
			return
		}

		row, ok := sel()
		if !ok {
			return
		}

		tickStart := time.Now()
		ev := s.gen.Next(row)
		ev.StreamID = id
		ev.Sequence = seq
		seq++

		s.broadcaster.Publish("test_result", ev)
		if ev.Status == StatusOK && s.evaluator != nil {
			s.evaluator.HandleEvent(ctx, ev)
		}
		observability.TickDuration.Observe(time.Since(tickStart).Seconds())

		if opts.MaxEvents > 0 && seq >= opts.MaxEvents {
			return
		}
		if !s.wait(ctx, opts.Interval) {
			return
		}
	}
}

// wait blocks for the inter-tick interval but wakes immediately on
// cancellation, so Stop takes effect without waiting out a full interval.
func (s *Supervisor) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
