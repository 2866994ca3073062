package domain

// Category classifies a venue (disco, rooftop, festival hall, ...).
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// DefaultCategory is used whenever a source record carries no category.
var DefaultCategory = Category{ID: "general", Name: "General", Icon: "sparkles"}

type Venue struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	ImageURL    string   `json:"imageUrl"`
	Website     string   `json:"website"`
	Phone       string   `json:"phone"`
	Active      bool     `json:"active"`
	Category    Category `json:"category"`
}

// TicketType is one purchasable ticket class of a party.
// IsAvailable and IsSoldOut are source-driven and may disagree; treat
// "IsSoldOut || !IsAvailable" as the effective can't-buy condition.
type TicketType struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	IsAvailable  bool    `json:"isAvailable"`
	IsSoldOut    bool    `json:"isSoldOut"`
	FewLeft      bool    `json:"fewLeft"`
	Restrictions string  `json:"restrictions"`
	PurchaseURL  string  `json:"purchaseUrl"`
}

// Party is a single event occurrence at a venue. VenueName and Address are
// denormalized at transform time and not kept in sync with later venue
// display-name upgrades.
type Party struct {
	ID          string       `json:"id"`
	VenueID     string       `json:"venueId"`
	VenueName   string       `json:"venueName"`
	Address     string       `json:"address"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Date        string       `json:"date"`      // YYYY-MM-DD, venue-local
	StartTime   string       `json:"startTime"` // HH:MM, no timezone
	EndTime     string       `json:"endTime"`
	Price       float64      `json:"price"` // minimum positive ticket price, 0 if none
	ImageURL    string       `json:"imageUrl"`
	TicketURL   string       `json:"ticketUrl"`
	Capacity    int          `json:"capacity"`
	SoldTickets int          `json:"soldTickets"`
	Tags        []string     `json:"tags"`
	MinAge      int          `json:"minAge"`
	DressCode   string       `json:"dressCode"`
	Lat         *float64     `json:"lat,omitempty"`
	Lon         *float64     `json:"lon,omitempty"`
	Tickets     []TicketType `json:"tickets"`
	IsAvailable bool         `json:"isAvailable"`
	FewLeft     bool         `json:"fewLeft"`
}

// Snapshot is the full result of one transform pass. It replaces the cached
// snapshot wholesale; entities are never patched in place.
type Snapshot struct {
	Venues  []Venue `json:"venues"`
	Parties []Party `json:"parties"`
}

// PartyKey is the persisted per-party fingerprint used to detect events that
// appeared since the previous run.
type PartyKey struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	VenueName string `json:"venueName"`
	Title     string `json:"title"`
}

func KeyOf(p Party) PartyKey {
	return PartyKey{ID: p.ID, Date: p.Date, VenueName: p.VenueName, Title: p.Title}
}
