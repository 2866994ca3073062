package fourvenues

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/HugoFernandezz/Jaleo/internal/adapters/observability"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

// Client talks to the structured live feed: one-shot pulls over HTTP and a
// push subscription over websocket. Batches always carry the full event set.
type Client struct {
	base  string
	wsURL string
	hc    *http.Client
	key   string
	rl    *rate.Limiter
}

func New(base, wsURL, key string, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		wsURL: wsURL,
		hc:    &http.Client{Timeout: 20 * time.Second},
		key:   key,
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type batchEnvelope struct {
	Data []domain.RawEvent `json:"data"`
}

// FetchOnce pulls the current event set (tries the current route first, then
// the pre-rename one some deployments still serve).
func (c *Client) FetchOnce(ctx context.Context) ([]domain.RawEvent, error) {
	candidates := []string{
		c.base + "/v1/events", // preferred
		c.base + "/events",    // legacy route
	}
	var env batchEnvelope
	if err := c.getFirst(ctx, candidates, &env); err != nil {
		observability.ObserveSource("primary", "error")
		return nil, err
	}
	if len(env.Data) == 0 {
		observability.ObserveSource("primary", "empty")
	} else {
		observability.ObserveSource("primary", "ok")
	}
	return env.Data, nil
}

// Subscribe dials the watch endpoint and delivers every pushed batch to
// onBatch from a single reader goroutine, reconnecting with backoff until
// stop is called. ctx bounds the initial dial only.
func (c *Client) Subscribe(ctx context.Context, onBatch func([]domain.RawEvent)) (func(), error) {
	if c.wsURL == "" {
		return nil, errors.New("fourvenues: watch endpoint not configured")
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	s := &subscription{client: c, conn: conn, done: make(chan struct{})}
	go s.readLoop(onBatch)
	return s.stop, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	hdr := http.Header{}
	if c.key != "" {
		hdr.Set("X-API-Key", c.key)
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, hdr)
	if err != nil {
		return nil, fmt.Errorf("fourvenues: watch dial: %w", err)
	}
	return conn, nil
}

type subscription struct {
	client *Client

	mu       sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscription) readLoop(onBatch func([]domain.RawEvent)) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.stopped() {
				return
			}
			log.Warn().Err(err).Msg("feed watch read failed, reconnecting")
			if !s.reconnect() {
				return
			}
			continue
		}

		batch, err := decodeBatch(msg)
		if err != nil {
			log.Warn().Err(err).Msg("feed watch: undecodable message dropped")
			continue
		}
		observability.FeedUpdates.Inc()
		onBatch(batch)
	}
}

// reconnect re-dials with exponential backoff until it succeeds or the
// subscription is stopped.
func (s *subscription) reconnect() bool {
	for attempt := 0; ; attempt++ {
		if s.stopped() {
			return false
		}
		capped := attempt
		if capped > 6 {
			capped = 6
		}
		t := time.NewTimer(backoff(capped))
		select {
		case <-s.done:
			t.Stop()
			return false
		case <-t.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		conn, err := s.client.dial(ctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("feed watch redial failed")
			continue
		}

		s.mu.Lock()
		if s.stopped() {
			s.mu.Unlock()
			_ = conn.Close()
			return false
		}
		s.conn = conn
		s.mu.Unlock()
		log.Info().Msg("feed watch reconnected")
		return true
	}
}

// decodeBatch accepts either the {"data":[...]} envelope or a bare array.
func decodeBatch(msg []byte) ([]domain.RawEvent, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []domain.RawEvent
		err := json.Unmarshal(trimmed, &batch)
		return batch, err
	}
	var env batchEnvelope
	err := json.Unmarshal(trimmed, &env)
	return env.Data, err
}

// ---- HTTP internals (shared retry/backoff plumbing) ----

func (c *Client) getFirst(ctx context.Context, urls []string, out any) error {
	var last error
	for _, u := range urls {
		if err := c.get(ctx, u, out); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				last = err
				continue // try next pattern
			}
			return err // non-404: stop early
		}
		return nil
	}
	if last != nil {
		return last
	}
	return errors.New("fourvenues: no candidate URL succeeded")
}

// get performs a GET with client-side rate limiting, retries, and JSON decode
// into out. Retries on 429 and transient 5xx, honoring Retry-After.
func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "jaleo/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return domain.ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return domain.ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential delay (200ms, 400ms, 800ms, ...) with up to
// +50% concurrency-safe jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
