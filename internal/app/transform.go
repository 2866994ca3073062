package app

import (
	"fmt"
	"strings"

	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

/********** venue identity dedup **********/

// venueKey normalizes a display name into the dedup key.
func venueKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// isAllUpper reports whether s is an all-uppercase spelling (has letters and
// none of them lowercase).
func isAllUpper(s string) bool {
	return s != "" && s == strings.ToUpper(s) && s != strings.ToLower(s)
}

// venueIndex collapses normalized venues into a unique set keyed by
// case-normalized name. The first spelling seen is kept as the display name
// unless it is all-caps and a later duplicate is mixed-case; then the
// mixed-case spelling wins. The id assigned on first sight never changes.
type venueIndex struct {
	byKey  map[string]int
	venues []domain.Venue
	seq    int // sequential legacy ids
}

func newVenueIndex() *venueIndex {
	// venues starts non-nil so an empty batch still serializes as [].
	return &venueIndex{byKey: make(map[string]int), venues: []domain.Venue{}}
}

// add registers v and returns its canonical venue id. legacy venues arrive
// without an id and get a sequential one on first sight.
func (ix *venueIndex) add(v domain.Venue, legacy bool) string {
	key := venueKey(v.Name)
	if key == "" {
		// Nameless venues cannot be reconciled by name; keep each distinct.
		key = v.ID
	}
	if i, ok := ix.byKey[key]; ok {
		if isAllUpper(ix.venues[i].Name) && !isAllUpper(v.Name) && v.Name != "" {
			ix.venues[i].Name = v.Name
		}
		return ix.venues[i].ID
	}
	if legacy {
		ix.seq++
		v.ID = fmt.Sprintf("v%d", ix.seq)
	}
	ix.byKey[key] = len(ix.venues)
	ix.venues = append(ix.venues, v)
	return v.ID
}

/********** collection transformer **********/

// FromPrimary transforms a full batch of primary-shape records into one
// snapshot. Pure: no I/O, parties keep input order, every record contributes
// exactly one party.
func FromPrimary(records []domain.RawEvent) domain.Snapshot {
	ix := newVenueIndex()
	parties := make([]domain.Party, 0, len(records))
	for i, e := range records {
		venue, party := mapPrimary(i, e)
		party.VenueID = ix.add(venue, false)
		parties = append(parties, party)
	}
	return domain.Snapshot{Venues: ix.venues, Parties: parties}
}

// FromLegacy transforms a batch of legacy wrapper records. Records without a
// venue substructure are skipped and contribute neither a party nor a venue.
func FromLegacy(records []domain.LegacyRecord) domain.Snapshot {
	ix := newVenueIndex()
	parties := make([]domain.Party, 0, len(records))
	for i, rec := range records {
		venue, party, ok := mapLegacy(i, rec)
		if !ok {
			continue
		}
		party.VenueID = ix.add(venue, true)
		parties = append(parties, party)
	}
	return domain.Snapshot{Venues: ix.venues, Parties: parties}
}

/********** display filter dedup **********/

// FilterNames builds the venue filter-chip list from a stream of (possibly
// repeated) venue names: one entry per case-normalized name, first-seen
// order, mixed-case spellings preferred over all-caps ones.
func FilterNames(names []string) []string {
	byKey := make(map[string]int)
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if i, ok := byKey[key]; ok {
			if isAllUpper(out[i]) && !isAllUpper(name) {
				out[i] = name
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, name)
	}
	return out
}
