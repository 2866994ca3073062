package httpserver

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/HugoFernandezz/Jaleo/internal/app"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

const appVersion = "1.0.0"

// Handlers holds the dependencies the HTTP surface needs.
type Handlers struct {
	Hub      *app.Hub
	AdminKey string
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(25 * time.Second))
		r.Get("/api/health", h.getHealth)
		r.Get("/api/events", h.getEvents)
		r.Get("/api/filters", h.getFilters)
		r.Get("/api/status", h.getStatus)
		r.Post("/api/refresh", h.postRefresh)
	})
	// websocket route stays outside the timeout wrapper
	s.mux.Get("/api/events/watch", h.watchEvents)
}

// ---- responses ----

type metaBlock struct {
	Total      int    `json:"total"`
	LastUpdate string `json:"last_update,omitempty"`
}

type eventsResponse struct {
	Success bool            `json:"success"`
	Data    domain.Snapshot `json:"data"`
	Meta    metaBlock       `json:"meta"`
}

type okResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

// RFC 7807 style problem body, same shape for every error.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// ---- handlers ----

func (h *Handlers) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) getEvents(w http.ResponseWriter, r *http.Request) {
	snap := h.Hub.GetData(r.Context())
	_, last, _ := h.Hub.Status()

	resp := eventsResponse{
		Success: true,
		Data:    snap,
		Meta:    metaBlock{Total: len(snap.Parties)},
	}
	if !last.IsZero() {
		resp.Meta.LastUpdate = last.UTC().Format(time.RFC3339)
	}

	etag, body, err := calcETagAndBody(resp)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "encoding failed")
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handlers) getFilters(w http.ResponseWriter, r *http.Request) {
	snap := h.Hub.GetData(r.Context())
	names := make([]string, 0, len(snap.Parties))
	for _, p := range snap.Parties {
		names = append(names, p.VenueName)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    app.FilterNames(names),
	})
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	total, last, populated := h.Hub.Status()
	body := map[string]any{
		"status":       "online",
		"version":      appVersion,
		"total_events": total,
		"cached":       populated,
	}
	if !last.IsZero() {
		body["last_update"] = last.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) postRefresh(w http.ResponseWriter, r *http.Request) {
	if h.AdminKey == "" {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin refresh disabled")
		return
	}
	got := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminKey)) != 1 {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid admin key")
		return
	}
	h.Hub.Invalidate()
	writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "cache invalidated"})
}

// ---- live watch over websocket ----

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// the app clients connect from anywhere
	CheckOrigin: func(r *http.Request) bool { return true },
}

type watchFrame struct {
	Type string          `json:"type"`
	Data domain.Snapshot `json:"data"`
}

// watchEvents upgrades the connection and forwards every hub update to the
// client as a {"type":"snapshot","data":{...}} frame. A single writer drains
// a buffered channel so listener callbacks never block the hub fan-out.
func (h *Handlers) watchEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	defer conn.Close()

	updates := make(chan domain.Snapshot, 4)
	unsub, err := h.Hub.Subscribe(r.Context(), func(s domain.Snapshot) {
		select {
		case updates <- s:
		default:
			// client is slow; newer snapshots supersede older ones anyway
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("watch subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer unsub()

	// send the current data right away so the client never starts blank
	select {
	case snap := <-updates: // replay already queued one
		if !h.writeFrame(conn, snap) {
			return
		}
	default:
		if !h.writeFrame(conn, h.Hub.GetData(r.Context())) {
			return
		}
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case snap := <-updates:
			if !h.writeFrame(conn, snap) {
				return
			}
		}
	}
}

func (h *Handlers) writeFrame(conn *websocket.Conn, snap domain.Snapshot) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(watchFrame{Type: "snapshot", Data: snap}); err != nil {
		log.Debug().Err(err).Msg("watch write failed, dropping client")
		return false
	}
	return true
}

// calcETagAndBody serializes v once and derives a strong ETag from the bytes,
// so the 304 check and the 200 body can never disagree.
func calcETagAndBody(v any) (string, []byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha1.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`, body, nil
}
