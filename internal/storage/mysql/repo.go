package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// DocID builds the stable per-event document key: venue name, date and code
// joined with underscores, spaces flattened and slashes replaced so the key
// stays path-safe.
func DocID(ev domain.RawEvent) string {
	venue := "sin_lugar"
	if ev.Lugar != nil && strings.TrimSpace(ev.Lugar.Nombre) != "" {
		venue = ev.Lugar.Nombre
	}
	code := ev.Code
	if code == "" {
		code = ev.NombreEvento
	}
	id := venue + "_" + ev.Fecha + "_" + code
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "/", "-")
	return id
}

func (r *Repo) UpsertEvents(ctx context.Context, evs []domain.RawEvent) error {
	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		venue := ""
		if ev.Lugar != nil {
			venue = ev.Lugar.Nombre
		}
		if _, err := r.db.ExecContext(ctx, upsertEventSQL,
			DocID(ev), venue, ev.Fecha, ev.Code, string(payload),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) ListEvents(ctx context.Context) ([]domain.RawEvent, error) {
	rows, err := r.db.QueryContext(ctx, listEventsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RawEvent, 0, 64)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev domain.RawEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			// a corrupt row must not hide the rest of the mirror
			continue
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Status(ctx context.Context) (int, *time.Time, error) {
	var total int
	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, statusSQL).Scan(&total, &last); err != nil {
		return 0, nil, err
	}
	if !last.Valid {
		return total, nil, nil
	}
	t := last.Time
	return total, &t, nil
}

// PruneBefore drops mirrored events dated strictly before the given ISO day
// (YYYY-MM-DD). Events without a parsable date are kept.
func (r *Repo) PruneBefore(ctx context.Context, day string) (int64, error) {
	res, err := r.db.ExecContext(ctx, pruneBeforeSQL, day)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
