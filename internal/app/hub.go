package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

// Hub owns the last-known snapshot and the single upstream live subscription
// shared by every listener. It never derives data itself: it only decides
// when the transformer runs and who receives the result.
//
// Failure policy: source errors are recovered by falling through to the next
// source and never reach callers. The only caller-visible degradation is an
// empty-but-valid snapshot, indistinguishable from "no events right now".
type Hub struct {
	feed      domain.PrimaryFeed
	fallbacks []domain.FallbackSource
	flight    singleflight.Group

	mu           sync.Mutex
	cache        *domain.Snapshot
	lastUpdate   time.Time
	listeners    []hubListener
	nextID       int
	stopUpstream func()

	// deliverMu serializes every listener delivery (replay and fan-out), so
	// each listener sees snapshots in cache order.
	deliverMu sync.Mutex
}

type hubListener struct {
	id int
	fn func(domain.Snapshot)
}

// NewHub builds a hub over the primary feed and the fallback sources in
// strict priority order.
func NewHub(feed domain.PrimaryFeed, fallbacks ...domain.FallbackSource) *Hub {
	return &Hub{feed: feed, fallbacks: fallbacks}
}

// GetData returns the cached snapshot, fetching it first if the cache is
// empty. The cache is a strict memoization: only Invalidate or a push update
// replaces it. Concurrent callers share one fetch sequence.
func (h *Hub) GetData(ctx context.Context) domain.Snapshot {
	h.mu.Lock()
	if h.cache != nil {
		snap := *h.cache
		h.mu.Unlock()
		return snap
	}
	h.mu.Unlock()

	v, _, _ := h.flight.Do("snapshot", func() (any, error) {
		// A sibling flight or a push may have landed in the meantime.
		h.mu.Lock()
		if h.cache != nil {
			snap := *h.cache
			h.mu.Unlock()
			return snap, nil
		}
		h.mu.Unlock()

		// The fetch fills shared state. Detach it from the caller: a client
		// that disconnects mid-fetch must not fail the chain for everyone
		// else, or get an all-canceled empty snapshot memoized.
		snap := h.fetchAll(context.WithoutCancel(ctx))
		h.store(snap)
		return snap, nil
	})
	return v.(domain.Snapshot)
}

// fetchAll walks the source chain: primary feed first, then each fallback in
// order, each fully awaited before the next is tried. Total exhaustion yields
// an empty-but-valid snapshot, reported as success.
func (h *Hub) fetchAll(ctx context.Context) domain.Snapshot {
	recs, err := h.feed.FetchOnce(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("primary feed fetch failed, trying fallbacks")
	} else if len(recs) == 0 {
		log.Warn().Msg("primary feed returned no events, trying fallbacks")
	} else {
		return FromPrimary(recs)
	}

	for _, fb := range h.fallbacks {
		legacy, err := fb.Fetch(ctx)
		if err != nil {
			log.Warn().Err(err).Str("source", fb.Name()).Msg("fallback fetch failed")
			continue
		}
		if len(legacy) == 0 {
			log.Warn().Str("source", fb.Name()).Msg("fallback returned no events")
			continue
		}
		log.Info().Str("source", fb.Name()).Int("records", len(legacy)).Msg("serving from fallback")
		return FromLegacy(legacy)
	}

	log.Warn().Msg("all event sources failed or empty")
	return domain.Snapshot{Venues: []domain.Venue{}, Parties: []domain.Party{}}
}

func (h *Hub) store(snap domain.Snapshot) {
	h.mu.Lock()
	h.cache = &snap
	h.lastUpdate = time.Now()
	h.mu.Unlock()
}

// Subscribe registers fn for every future snapshot. The first listener
// establishes the single upstream subscription; joining while one is active
// replays the current cache (if any) to fn once before returning. The
// returned function removes only this listener; removing the last one tears
// the upstream subscription down.
//
// The feed must deliver batches asynchronously on its own goroutine; the hub
// relies on that both for lock safety and for the no-interleaving guarantee.
func (h *Hub) Subscribe(ctx context.Context, fn func(domain.Snapshot)) (func(), error) {
	h.mu.Lock()
	wasActive := h.stopUpstream != nil
	if !wasActive {
		stop, err := h.feed.Subscribe(ctx, h.onBatch)
		if err != nil {
			h.mu.Unlock()
			return nil, err
		}
		h.stopUpstream = stop
	}
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, hubListener{id: id, fn: fn})

	var replay *domain.Snapshot
	if wasActive && h.cache != nil {
		replay = h.cache
	}
	// Take the delivery lock before releasing h.mu: a push fanned out in
	// between must not reach the new listener ahead of its replay.
	h.deliverMu.Lock()
	h.mu.Unlock()

	if replay != nil {
		fn(*replay)
	}
	h.deliverMu.Unlock()
	return func() { h.unsubscribe(id) }, nil
}

// onBatch is the upstream push callback: transform, replace the cache
// unconditionally (an empty batch still replaces it; ignoring empties is a
// caller decision), then fan out in registration order.
func (h *Hub) onBatch(recs []domain.RawEvent) {
	snap := FromPrimary(recs)

	h.mu.Lock()
	h.cache = &snap
	h.lastUpdate = time.Now()
	listeners := append([]hubListener(nil), h.listeners...)
	h.mu.Unlock()

	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	for _, l := range listeners {
		l.fn(snap)
	}
}

// unsubscribe is idempotent; it never cancels an in-flight GetData fetch.
func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	for i, l := range h.listeners {
		if l.id == id {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			break
		}
	}
	var stop func()
	if len(h.listeners) == 0 && h.stopUpstream != nil {
		stop = h.stopUpstream
		h.stopUpstream = nil
	}
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Invalidate clears the cache; listeners and any active subscription are
// unaffected. The next GetData call re-fetches.
func (h *Hub) Invalidate() {
	h.mu.Lock()
	h.cache = nil
	h.mu.Unlock()
}

// Status reports the cached event count and the time of the last cache
// population, for the status endpoint.
func (h *Hub) Status() (total int, lastUpdate time.Time, populated bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cache == nil {
		return 0, h.lastUpdate, false
	}
	return len(h.cache.Parties), h.lastUpdate, true
}
