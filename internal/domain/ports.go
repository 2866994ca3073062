package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("jaleo: not found")
	ErrUnauthorized = errors.New("jaleo: unauthorized")
	ErrForbidden    = errors.New("jaleo: forbidden")
)

// PrimaryFeed is the structured live feed. FetchOnce pulls the current event
// set; Subscribe establishes one push subscription delivering full batches
// until stop is called. Batches arrive on a single goroutine in order.
type PrimaryFeed interface {
	FetchOnce(ctx context.Context) ([]RawEvent, error)
	Subscribe(ctx context.Context, onBatch func([]RawEvent)) (stop func(), err error)
}

// FallbackSource is a pull-only legacy-shape source, tried when the primary
// feed fails or comes back empty.
type FallbackSource interface {
	Name() string
	Fetch(ctx context.Context) ([]LegacyRecord, error)
}

// PartyKeyStore persists the party fingerprints seen on the previous run.
type PartyKeyStore interface {
	Load(ctx context.Context) ([]PartyKey, error)
	Save(ctx context.Context, keys []PartyKey) error
}

// PushNote is one push notification to deliver to every registered device.
type PushNote struct {
	Title string
	Body  string
	Data  map[string]any
}

type PushSender interface {
	Send(ctx context.Context, note PushNote) error
}

// EventStore backs the feed mirror server (fallback source A's upstream).
// The mirror keeps the feed's own shape; wrapping happens at serve time.
type EventStore interface {
	UpsertEvents(ctx context.Context, recs []RawEvent) error
	ListEvents(ctx context.Context) ([]RawEvent, error)
	Status(ctx context.Context) (total int, lastUpdate *time.Time, err error)
}
