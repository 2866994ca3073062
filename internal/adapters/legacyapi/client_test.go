package legacyapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HugoFernandezz/Jaleo/internal/adapters/legacyapi"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

const legacyBody = `{"data":[
	{"evento":{"nombreEvento":"Noche Latina","fecha":"2026-09-12","lugar":{"nombre":"Sala Luna"}}},
	{"evento":{"nombreEvento":"Techno Warehouse","fecha":"2026-09-13","lugar":{"nombre":"Nave 7"}}}
]}`

func TestLocalAPI_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(legacyBody))
	}))
	defer srv.Close()

	a := legacyapi.NewLocalAPI(srv.URL)
	if a.Name() != "local-api" {
		t.Fatalf("name: %q", a.Name())
	}
	recs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 2 || recs[0].Evento == nil || recs[0].Evento.Lugar.Nombre != "Sala Luna" {
		t.Fatalf("records: %+v", recs)
	}
}

func TestLocalAPI_FetchErrorWraps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a := legacyapi.NewLocalAPI(srv.URL)
	if _, err := a.Fetch(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want wrapped ErrNotFound, got %v", err)
	}
}

func TestDocStore_FetchSendsMasterKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Master-Key") != "master" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"record":[
			{"evento":{"nombreEvento":"Open Air","lugar":{"nombre":"La Terraza"}}}
		]}`))
	}))
	defer srv.Close()

	d := legacyapi.NewDocStore(srv.URL, "master")
	if d.Name() != "doc-store" {
		t.Fatalf("name: %q", d.Name())
	}
	recs, err := d.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 1 || recs[0].Evento.NombreEvento != "Open Air" {
		t.Fatalf("records: %+v", recs)
	}

	bad := legacyapi.NewDocStore(srv.URL, "wrong")
	if _, err := bad.Fetch(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}
