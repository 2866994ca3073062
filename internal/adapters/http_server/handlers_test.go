package httpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	server "github.com/HugoFernandezz/Jaleo/internal/adapters/http_server"
	"github.com/HugoFernandezz/Jaleo/internal/app"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

// ---- fakes ----

type fakeFeed struct {
	mu      sync.Mutex
	events  []domain.RawEvent
	fetches int32
	onBatch func([]domain.RawEvent)
}

func (f *fakeFeed) FetchOnce(ctx context.Context) ([]domain.RawEvent, error) {
	atomic.AddInt32(&f.fetches, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, onBatch func([]domain.RawEvent)) (func(), error) {
	f.mu.Lock()
	f.onBatch = onBatch
	f.mu.Unlock()
	return func() {}, nil
}

func (f *fakeFeed) push(batch []domain.RawEvent) {
	f.mu.Lock()
	fn := f.onBatch
	f.mu.Unlock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(batch)
	}()
	<-done
}

func rawEvent(venue string) domain.RawEvent {
	return domain.RawEvent{
		NombreEvento: "Noche en " + venue,
		Fecha:        "2026-09-12",
		Lugar:        &domain.RawLugar{Nombre: venue},
	}
}

func newTestServer(t *testing.T, feed *fakeFeed, adminKey string) (*httptest.Server, *app.Hub) {
	t.Helper()
	hub := app.NewHub(feed)
	srv := server.New()
	srv.MountHandlers(&server.Handlers{Hub: hub, AdminKey: adminKey})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, hub
}

// ---- tests ----

func TestGetEvents(t *testing.T) {
	feed := &fakeFeed{events: []domain.RawEvent{rawEvent("Sala Luna"), rawEvent("DODO CLUB")}}
	ts, _ := newTestServer(t, feed, "")

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var body struct {
		Success bool            `json:"success"`
		Data    domain.Snapshot `json:"data"`
		Meta    struct {
			Total      int    `json:"total"`
			LastUpdate string `json:"last_update"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Meta.Total != 2 || len(body.Data.Parties) != 2 {
		t.Fatalf("envelope: %+v", body)
	}
	if body.Meta.LastUpdate == "" {
		t.Fatalf("last_update missing")
	}
	if len(body.Data.Venues) != 2 {
		t.Fatalf("venues: %+v", body.Data.Venues)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("ETag missing")
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/events", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional status: %d", resp2.StatusCode)
	}
}

func TestGetFilters(t *testing.T) {
	feed := &fakeFeed{events: []domain.RawEvent{
		rawEvent("DODO CLUB"), rawEvent("Sala Roja"), rawEvent("Dodo Club"),
	}}
	ts, _ := newTestServer(t, feed, "")

	resp, err := http.Get(ts.URL + "/api/filters")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 || body.Data[0] != "Dodo Club" || body.Data[1] != "Sala Roja" {
		t.Fatalf("filter chips: %v", body.Data)
	}
}

func TestStatusAndHealth(t *testing.T) {
	feed := &fakeFeed{events: []domain.RawEvent{rawEvent("Sala Luna")}}
	ts, hub := newTestServer(t, feed, "")

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status: %d", resp.StatusCode)
	}

	// before any fetch the cache is empty
	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st struct {
		Status      string `json:"status"`
		TotalEvents int    `json:"total_events"`
		Cached      bool   `json:"cached"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if st.Status != "online" || st.Cached {
		t.Fatalf("cold status: %+v", st)
	}

	hub.GetData(context.Background())
	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if !st.Cached || st.TotalEvents != 1 {
		t.Fatalf("warm status: %+v", st)
	}
}

func TestRefresh(t *testing.T) {
	feed := &fakeFeed{events: []domain.RawEvent{rawEvent("Sala Luna")}}
	ts, hub := newTestServer(t, feed, "admin-key")

	hub.GetData(context.Background())

	// wrong key
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/refresh", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key status: %d", resp.StatusCode)
	}

	// right key invalidates; the next read refetches
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/refresh", nil)
	req.Header.Set("X-Admin-Key", "admin-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}

	hub.GetData(context.Background())
	if n := atomic.LoadInt32(&feed.fetches); n != 2 {
		t.Fatalf("invalidate must force a refetch, fetches=%d", n)
	}
}

func TestRefresh_DisabledWithoutKey(t *testing.T) {
	feed := &fakeFeed{}
	ts, _ := newTestServer(t, feed, "")

	resp, err := http.Post(ts.URL+"/api/refresh", "", nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestWatch_StreamsSnapshots(t *testing.T) {
	feed := &fakeFeed{events: []domain.RawEvent{rawEvent("Sala Luna")}}
	ts, _ := newTestServer(t, feed, "")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var frame struct {
		Type string          `json:"type"`
		Data domain.Snapshot `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("initial frame: %v", err)
	}
	if frame.Type != "snapshot" || len(frame.Data.Parties) != 1 {
		t.Fatalf("initial frame: %+v", frame)
	}

	feed.push([]domain.RawEvent{rawEvent("Nave 7"), rawEvent("Sala Roja")})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("pushed frame: %v", err)
	}
	if len(frame.Data.Parties) != 2 || frame.Data.Parties[0].VenueName != "Nave 7" {
		t.Fatalf("pushed frame: %+v", frame.Data.Parties)
	}
}
