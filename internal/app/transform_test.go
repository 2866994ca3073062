package app_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/HugoFernandezz/Jaleo/internal/app"
	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

func primaryAt(venue string) domain.RawEvent {
	return domain.RawEvent{NombreEvento: "Noche en " + venue, Lugar: &domain.RawLugar{Nombre: venue}}
}

func legacyAt(venue string) domain.LegacyRecord {
	return domain.LegacyRecord{Evento: &domain.RawEvent{
		NombreEvento: "Noche en " + venue,
		Lugar:        &domain.RawLugar{Nombre: venue},
	}}
}

func TestVenueDedup_CaseInsensitive(t *testing.T) {
	snap := app.FromPrimary([]domain.RawEvent{
		primaryAt("Dodo Club"),
		primaryAt("DODO CLUB"),
		primaryAt("dodo club"),
	})
	if len(snap.Venues) != 1 {
		t.Fatalf("want 1 venue, got %d", len(snap.Venues))
	}
	if snap.Venues[0].Name != "Dodo Club" {
		t.Fatalf("first spelling kept: %q", snap.Venues[0].Name)
	}
	// all three parties point at the same canonical venue
	for _, p := range snap.Parties {
		if p.VenueID != snap.Venues[0].ID {
			t.Fatalf("party venue id %q != canonical %q", p.VenueID, snap.Venues[0].ID)
		}
	}
}

func TestVenueDedup_MixedCaseBeatsAllCaps(t *testing.T) {
	// all-caps arrives first; the later mixed-case spelling upgrades the
	// display name but the id assigned on first sight stays
	snap := app.FromPrimary([]domain.RawEvent{
		primaryAt("DODO CLUB"),
		primaryAt("Dodo Club"),
	})
	if len(snap.Venues) != 1 {
		t.Fatalf("want 1 venue, got %d", len(snap.Venues))
	}
	if snap.Venues[0].Name != "Dodo Club" {
		t.Fatalf("mixed-case spelling wins: %q", snap.Venues[0].Name)
	}
	if snap.Venues[0].ID != "v_dodo_club" {
		t.Fatalf("id from first sighting: %q", snap.Venues[0].ID)
	}

	// opposite order: mixed-case first, all-caps later never downgrades
	snap = app.FromPrimary([]domain.RawEvent{
		primaryAt("Dodo Club"),
		primaryAt("DODO CLUB"),
	})
	if snap.Venues[0].Name != "Dodo Club" {
		t.Fatalf("all-caps must not replace mixed case: %q", snap.Venues[0].Name)
	}
}

func TestFromLegacy_SequentialIDsAndSkips(t *testing.T) {
	recs := []domain.LegacyRecord{
		legacyAt("Sala Roja"),
		{Evento: &domain.RawEvent{NombreEvento: "Sin lugar"}}, // no venue: skipped
		{},                       // no evento: skipped
		legacyAt("Nave 7"),
		legacyAt("SALA ROJA"),    // dup of the first
	}
	snap := app.FromLegacy(recs)
	if len(snap.Parties) != 3 {
		t.Fatalf("want 3 parties, got %d", len(snap.Parties))
	}
	if len(snap.Venues) != 2 {
		t.Fatalf("want 2 venues, got %d", len(snap.Venues))
	}
	if snap.Venues[0].ID != "v1" || snap.Venues[1].ID != "v2" {
		t.Fatalf("sequential legacy ids: %q %q", snap.Venues[0].ID, snap.Venues[1].ID)
	}
	if snap.Parties[2].VenueID != "v1" {
		t.Fatalf("dup venue reuses first id: %q", snap.Parties[2].VenueID)
	}
}

func TestFromPrimary_OrderStable(t *testing.T) {
	snap := app.FromPrimary([]domain.RawEvent{
		primaryAt("C"), primaryAt("A"), primaryAt("B"),
	})
	titles := []string{snap.Parties[0].Title, snap.Parties[1].Title, snap.Parties[2].Title}
	want := []string{"Noche en C", "Noche en A", "Noche en B"}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("input order preserved: %v", titles)
	}
}

func TestFromPrimary_NamelessVenuesStayDistinct(t *testing.T) {
	snap := app.FromPrimary([]domain.RawEvent{
		{NombreEvento: "A"}, // no lugar at all (primary shape still maps)
		{NombreEvento: "B"},
	})
	if len(snap.Venues) != 2 {
		t.Fatalf("nameless venues must not collapse: %d", len(snap.Venues))
	}
	if snap.Venues[0].ID != "v_0" || snap.Venues[1].ID != "v_1" {
		t.Fatalf("positional ids: %q %q", snap.Venues[0].ID, snap.Venues[1].ID)
	}
}

func TestTransform_EmptyBatchSerializesAsEmptyArrays(t *testing.T) {
	for _, snap := range []domain.Snapshot{app.FromPrimary(nil), app.FromLegacy(nil)} {
		if snap.Venues == nil || snap.Parties == nil {
			t.Fatalf("empty batch must keep slices non-nil: %+v", snap)
		}
		b, err := json.Marshal(snap)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		out := string(b)
		if !strings.Contains(out, `"venues":[]`) || !strings.Contains(out, `"parties":[]`) {
			t.Fatalf("empty batch wire shape: %s", out)
		}
	}
}

func TestFilterNames(t *testing.T) {
	got := app.FilterNames([]string{
		"DODO CLUB", "Sala Roja", "Dodo Club", "sala roja", "", "Nave 7",
	})
	want := []string{"Dodo Club", "Sala Roja", "Nave 7"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("filter chips: %v", got)
	}
}
