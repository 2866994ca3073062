package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

// Detector finds parties that appeared since the previous run by diffing the
// snapshot's party fingerprints against the persisted set, and pushes one
// notification per newly seen party.
type Detector struct {
	store domain.PartyKeyStore
	push  domain.PushSender
}

func NewDetector(store domain.PartyKeyStore, push domain.PushSender) *Detector {
	return &Detector{store: store, push: push}
}

// Process diffs snap against the stored fingerprints, notifies for the new
// parties, and persists the fresh set. The very first run only seeds the
// store, so a fresh install does not blast a notification per known event.
func (d *Detector) Process(ctx context.Context, snap domain.Snapshot) ([]domain.Party, error) {
	current := make([]domain.PartyKey, 0, len(snap.Parties))
	for _, p := range snap.Parties {
		current = append(current, domain.KeyOf(p))
	}

	prev, err := d.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load party keys: %w", err)
		}
		if err := d.store.Save(ctx, current); err != nil {
			return nil, fmt.Errorf("seed party keys: %w", err)
		}
		return nil, nil
	}

	seen := make(map[domain.PartyKey]struct{}, len(prev))
	for _, k := range prev {
		seen[k] = struct{}{}
	}

	var fresh []domain.Party
	for _, p := range snap.Parties {
		if _, ok := seen[domain.KeyOf(p)]; !ok {
			fresh = append(fresh, p)
		}
	}

	for _, p := range fresh {
		note := domain.PushNote{
			Title: "Nueva fiesta en " + p.VenueName,
			Body:  p.Title + " · " + p.Date,
			Data:  map[string]any{"partyId": p.ID, "date": p.Date},
		}
		if d.push == nil {
			continue
		}
		if err := d.push.Send(ctx, note); err != nil {
			// Delivery failures must not block the diff bookkeeping.
			log.Warn().Err(err).Str("party", p.ID).Msg("push send failed")
		}
	}

	if err := d.store.Save(ctx, current); err != nil {
		return fresh, fmt.Errorf("save party keys: %w", err)
	}
	return fresh, nil
}
