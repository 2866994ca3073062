package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/HugoFernandezz/Jaleo/internal/adapters/fourvenues"
	server "github.com/HugoFernandezz/Jaleo/internal/adapters/http_server"
	"github.com/HugoFernandezz/Jaleo/internal/adapters/observability"
	"github.com/HugoFernandezz/Jaleo/internal/shared"
	mysqlrepo "github.com/HugoFernandezz/Jaleo/internal/storage/mysql"
)

// feedserver keeps a MySQL mirror of the live feed and serves it in the
// legacy {"data":[...]} shape, so the API can fall back to it when the feed
// itself is unreachable. The mirror refreshes once a day plus on demand.
type mirror struct {
	repo     *mysqlrepo.Repo
	feed     *fourvenues.Client
	adminKey string
}

func main() {
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	m := &mirror{
		repo:     mysqlrepo.New(db),
		feed:     fourvenues.New(cfg.FeedBase, cfg.FeedWS, cfg.FeedKey, cfg.FeedRPS),
		adminKey: cfg.AdminKey,
	}

	go m.runSchedule(cfg.ScrapeHour, cfg.ScrapeMinute)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(server.Metrics)
	r.Use(server.Logger(log.Logger))
	r.Use(server.Timeout(60 * time.Second))

	r.Get("/api/health", m.getHealth)
	r.Get("/api/events", m.getEvents)
	r.Get("/api/status", m.getStatus)
	r.Post("/api/scrape", m.postScrape)

	reg := observability.InitRegistry()
	r.Handle("/metrics", observability.MetricsHandler(reg))

	log.Info().Str("addr", cfg.HTTPAddr).Msg("feed mirror listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

// runSchedule refreshes the mirror once per day at hh:mm local time.
func (m *mirror) runSchedule(hour, minute int) {
	var lastRun string
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()
	for range tick.C {
		now := time.Now()
		day := now.Format("2006-01-02")
		if now.Hour() == hour && now.Minute() == minute && lastRun != day {
			lastRun = day
			m.refresh()
		}
	}
}

func (m *mirror) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	evs, err := m.feed.FetchOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("mirror refresh: feed fetch failed")
		return
	}
	if err := m.repo.UpsertEvents(ctx, evs); err != nil {
		log.Error().Err(err).Msg("mirror refresh: upsert failed")
		return
	}
	today := time.Now().Format("2006-01-02")
	pruned, err := m.repo.PruneBefore(ctx, today)
	if err != nil {
		log.Warn().Err(err).Msg("mirror refresh: prune failed")
	}
	log.Info().Int("events", len(evs)).Int64("pruned", pruned).Msg("mirror refreshed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *mirror) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *mirror) getEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := m.repo.ListEvents(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list mirrored events failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false})
		return
	}
	// legacy consumers expect each record wrapped in {"evento": {...}}
	records := make([]map[string]any, 0, len(evs))
	for i := range evs {
		records = append(records, map[string]any{"evento": &evs[i]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

func (m *mirror) getStatus(w http.ResponseWriter, r *http.Request) {
	total, last, err := m.repo.Status(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("mirror status failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false})
		return
	}
	body := map[string]any{"status": "online", "total_events": total}
	if last != nil {
		body["last_update"] = last.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func (m *mirror) postScrape(w http.ResponseWriter, r *http.Request) {
	if m.adminKey == "" ||
		subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Admin-Key")), []byte(m.adminKey)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid admin key"})
		return
	}
	go m.refresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "message": "refresh started"})
}
