package app

import (
	"fmt"
	"strings"

	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

/********** defaults **********/

const (
	defaultCapacity = 500
	defaultMinAge   = 18
)

var defaultTags = []string{"Fiesta"}

/********** tiny helpers **********/

var whitespaceReplacer = strings.NewReplacer(" ", "_", "\t", "_", "\n", "_")

// venueIDFromName builds the primary-shape venue id: "v_" plus the name with
// whitespace collapsed to underscores, lower-cased. Nameless venues get a
// positional id instead.
func venueIDFromName(name string, recordIndex int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("v_%d", recordIndex)
	}
	slug := whitespaceReplacer.Replace(strings.ToLower(strings.Join(strings.Fields(name), " ")))
	return "v_" + slug
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func intOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

/********** venue mapper **********/

// mapVenue maps the nested venue substructure into a domain Venue without an
// id; ids are shape-specific and assigned by the caller.
func mapVenue(l *domain.RawLugar) domain.Venue {
	v := domain.Venue{Active: true, Category: domain.DefaultCategory}
	if l == nil {
		return v
	}
	v.Name = strings.TrimSpace(l.Nombre)
	v.Description = l.Descripcion
	v.Address = l.Direccion
	v.ImageURL = l.ImagenURL
	v.Website = l.Web
	v.Phone = l.Telefono
	if l.Activo != nil {
		v.Active = *l.Activo
	}
	if l.Categoria != nil {
		v.Category = domain.Category{ID: l.Categoria.ID, Name: l.Categoria.Nombre, Icon: l.Categoria.Icono}
	}
	return v
}

/********** ticket mapper **********/

func mapTickets(eventIndex int, in []domain.RawEntrada) []domain.TicketType {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.TicketType, 0, len(in))
	for i, e := range in {
		t := domain.TicketType{
			ID:           e.ID,
			Name:         e.Tipo,
			Description:  e.Descripcion,
			Price:        float64(e.Precio),
			IsSoldOut:    e.Agotadas,
			FewLeft:      e.QuedanPocas,
			Restrictions: e.Restricciones,
			PurchaseURL:  e.URLCompra,
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("%d_%d", eventIndex, i)
		}
		if e.Disponible != nil {
			t.IsAvailable = *e.Disponible
		} else {
			t.IsAvailable = !e.Agotadas
		}
		out = append(out, t)
	}
	return out
}

// minPositivePrice returns the minimum strictly positive price, or 0 when no
// ticket has one. Unparsable prices already decoded to 0 and are excluded.
func minPositivePrice(tickets []domain.TicketType) float64 {
	min := 0.0
	for _, t := range tickets {
		if t.Price <= 0 {
			continue
		}
		if min == 0 || t.Price < min {
			min = t.Price
		}
	}
	return min
}

/********** event mappers **********/

// mapEvent carries the shape-independent part of record normalization.
func mapEvent(recordIndex int, e *domain.RawEvent, venue domain.Venue) domain.Party {
	tickets := mapTickets(recordIndex, e.Entradas)

	p := domain.Party{
		ID:          e.ID,
		VenueName:   venue.Name,
		Address:     venue.Address,
		Title:       e.NombreEvento,
		Description: e.Descripcion,
		Date:        strings.TrimSpace(e.Fecha),
		StartTime:   strings.TrimSpace(e.HoraInicio),
		EndTime:     strings.TrimSpace(e.HoraFin),
		Price:       minPositivePrice(tickets),
		ImageURL:    orDefault(e.ImagenURL, venue.ImageURL),
		TicketURL:   e.URLEvento,
		Capacity:    intOrDefault(e.Aforo, defaultCapacity),
		SoldTickets: e.EntradasVendidas,
		Tags:        e.Tags,
		MinAge:      intOrDefault(e.EdadMinima, defaultMinAge),
		DressCode:   e.CodigoVestimenta,
		Tickets:     tickets,
	}
	if p.ID == "" {
		p.ID = e.Code
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("p_%d", recordIndex)
	}
	if len(p.Tags) == 0 {
		p.Tags = append([]string(nil), defaultTags...)
	}
	if e.Lugar != nil {
		p.Lat = e.Lugar.Latitud
		p.Lon = e.Lugar.Longitud
	}
	for _, t := range tickets {
		if t.IsAvailable {
			p.IsAvailable = true
		}
		if t.FewLeft && t.IsAvailable {
			p.FewLeft = true
		}
	}
	return p
}

// mapPrimary normalizes one primary-shape record. It never fails: missing
// optional fields fall back to documented defaults.
func mapPrimary(recordIndex int, e domain.RawEvent) (domain.Venue, domain.Party) {
	venue := mapVenue(e.Lugar)
	venue.ID = venueIDFromName(venue.Name, recordIndex)

	party := mapEvent(recordIndex, &e, venue)
	party.VenueID = venue.ID
	return venue, party
}

// mapLegacy normalizes one legacy wrapper record. Records without a venue
// substructure are skipped entirely: there is nothing to anchor venue
// identity or address on in that shape. The venue id is left empty and
// assigned sequentially at dedup time.
func mapLegacy(recordIndex int, rec domain.LegacyRecord) (domain.Venue, domain.Party, bool) {
	if rec.Evento == nil || rec.Evento.Lugar == nil {
		return domain.Venue{}, domain.Party{}, false
	}
	venue := mapVenue(rec.Evento.Lugar)
	party := mapEvent(recordIndex, rec.Evento, venue)
	return venue, party, true
}
