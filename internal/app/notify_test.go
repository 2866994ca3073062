package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/HugoFernandezz/Jaleo/internal/app"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

type fakeKeyStore struct {
	keys   []domain.PartyKey
	loaded bool
	saves  int
}

func (s *fakeKeyStore) Load(ctx context.Context) ([]domain.PartyKey, error) {
	if !s.loaded {
		return nil, domain.ErrNotFound
	}
	return s.keys, nil
}

func (s *fakeKeyStore) Save(ctx context.Context, keys []domain.PartyKey) error {
	s.keys = append([]domain.PartyKey(nil), keys...)
	s.loaded = true
	s.saves++
	return nil
}

type fakePush struct {
	sent []domain.PushNote
	err  error
}

func (p *fakePush) Send(ctx context.Context, n domain.PushNote) error {
	p.sent = append(p.sent, n)
	return p.err
}

func snapOf(events ...domain.RawEvent) domain.Snapshot {
	return app.FromPrimary(events)
}

func TestDetector_FirstRunSeedsWithoutNotifying(t *testing.T) {
	store := &fakeKeyStore{}
	push := &fakePush{}
	det := app.NewDetector(store, push)

	fresh, err := det.Process(context.Background(), snapOf(primaryAt("Sala Luna"), primaryAt("Nave 7")))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if fresh != nil {
		t.Fatalf("first run must not report fresh parties: %+v", fresh)
	}
	if len(push.sent) != 0 {
		t.Fatalf("first run must not notify: %d", len(push.sent))
	}
	if !store.loaded || len(store.keys) != 2 {
		t.Fatalf("first run must seed the store: %+v", store.keys)
	}
}

func TestDetector_NotifiesOnlyNewParties(t *testing.T) {
	store := &fakeKeyStore{}
	push := &fakePush{}
	det := app.NewDetector(store, push)

	ctx := context.Background()
	if _, err := det.Process(ctx, snapOf(primaryAt("Sala Luna"))); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fresh, err := det.Process(ctx, snapOf(primaryAt("Sala Luna"), primaryAt("Nave 7")))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(fresh) != 1 || fresh[0].VenueName != "Nave 7" {
		t.Fatalf("fresh parties: %+v", fresh)
	}
	if len(push.sent) != 1 {
		t.Fatalf("one notification per new party: %d", len(push.sent))
	}
	n := push.sent[0]
	if n.Title != "Nueva fiesta en Nave 7" {
		t.Fatalf("note title: %q", n.Title)
	}

	// a third identical run notifies nothing
	fresh, err = det.Process(ctx, snapOf(primaryAt("Sala Luna"), primaryAt("Nave 7")))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(fresh) != 0 || len(push.sent) != 1 {
		t.Fatalf("unchanged snapshot must stay quiet: fresh=%d sent=%d", len(fresh), len(push.sent))
	}
}

func TestDetector_SendFailureStillSavesKeys(t *testing.T) {
	store := &fakeKeyStore{}
	push := &fakePush{err: errors.New("gateway down")}
	det := app.NewDetector(store, push)

	ctx := context.Background()
	if _, err := det.Process(ctx, snapOf(primaryAt("Sala Luna"))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := det.Process(ctx, snapOf(primaryAt("Sala Luna"), primaryAt("Nave 7"))); err != nil {
		t.Fatalf("process with failing push: %v", err)
	}
	if len(store.keys) != 2 {
		t.Fatalf("keys must be saved despite send failures: %+v", store.keys)
	}
}
