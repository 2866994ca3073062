package legacyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HugoFernandezz/Jaleo/internal/adapters/observability"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

// Fallback clients for the two legacy-shape sources. Errors here are routine:
// the hub treats any failure as "try the next source", so these clients keep
// retries minimal and just report what happened.

// LocalAPI is fallback source A: the feed mirror on the local network,
// serving GET /api/events -> {"data": [...]}.
type LocalAPI struct {
	url string
	hc  *http.Client
}

func NewLocalAPI(baseURL string) *LocalAPI {
	return &LocalAPI{
		url: strings.TrimRight(baseURL, "/") + "/api/events",
		hc:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *LocalAPI) Name() string { return "local-api" }

func (a *LocalAPI) Fetch(ctx context.Context) ([]domain.LegacyRecord, error) {
	var payload struct {
		Data []domain.LegacyRecord `json:"data"`
	}
	if err := doGet(ctx, a.hc, a.url, nil, &payload); err != nil {
		observability.ObserveSource(a.Name(), "error")
		return nil, fmt.Errorf("local api: %w", err)
	}
	observability.ObserveSource(a.Name(), outcome(len(payload.Data)))
	return payload.Data, nil
}

// DocStore is fallback source B: a remote JSON-document store holding the
// last published event dump, read with a master-key header and answering
// {"record": [...]}.
type DocStore struct {
	url string
	key string
	hc  *http.Client
}

func NewDocStore(url, masterKey string) *DocStore {
	return &DocStore{url: url, key: masterKey, hc: &http.Client{Timeout: 10 * time.Second}}
}

func (d *DocStore) Name() string { return "doc-store" }

func (d *DocStore) Fetch(ctx context.Context) ([]domain.LegacyRecord, error) {
	hdr := http.Header{}
	if d.key != "" {
		hdr.Set("X-Master-Key", d.key)
	}
	var payload struct {
		Record []domain.LegacyRecord `json:"record"`
	}
	if err := doGet(ctx, d.hc, d.url, hdr, &payload); err != nil {
		observability.ObserveSource(d.Name(), "error")
		return nil, fmt.Errorf("doc store: %w", err)
	}
	observability.ObserveSource(d.Name(), outcome(len(payload.Record)))
	return payload.Record, nil
}

func outcome(n int) string {
	if n == 0 {
		return "empty"
	}
	return "ok"
}

func doGet(ctx context.Context, hc *http.Client, url string, hdr http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
