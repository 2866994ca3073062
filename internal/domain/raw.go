package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Raw upstream shapes. Field names are the Spanish ones the scraper feeds
// upstream; both the live feed and the legacy fallbacks speak them. The live
// feed delivers RawEvent documents directly, the fallbacks wrap each one as
// {"evento": {...}}.

// Price tolerates the mess the scraper produces: numbers, "12.50", "12,50",
// "free", missing. Anything unparsable decodes to 0.
type Price float64

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*p = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*p = 0
			return nil
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		s = strings.TrimSuffix(s, "€")
		s = strings.TrimSpace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*p = 0
			return nil
		}
		*p = Price(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*p = 0
		return nil
	}
	*p = Price(f)
	return nil
}

type RawCategoria struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
	Icono  string `json:"icono"`
}

type RawLugar struct {
	Nombre      string        `json:"nombre"`
	Descripcion string        `json:"descripcion"`
	Direccion   string        `json:"direccion"`
	ImagenURL   string        `json:"imagen_url"`
	Web         string        `json:"web"`
	Telefono    string        `json:"telefono"`
	Activo      *bool         `json:"activo"` // absent means active
	Categoria   *RawCategoria `json:"categoria"`
	Latitud     *float64      `json:"latitud"`
	Longitud    *float64      `json:"longitud"`
}

type RawEntrada struct {
	ID            string `json:"id"`
	Tipo          string `json:"tipo"`
	Descripcion   string `json:"descripcion"`
	Precio        Price  `json:"precio"`
	Agotadas      bool   `json:"agotadas"`
	QuedanPocas   bool   `json:"quedan_pocas"`
	Disponible    *bool  `json:"disponible"` // absent means !Agotadas
	Restricciones string `json:"restricciones"`
	URLCompra     string `json:"url_compra"`
}

// RawEvent is one event document in the primary (structured feed) shape.
type RawEvent struct {
	ID               string       `json:"id"`
	Code             string       `json:"code"`
	NombreEvento     string       `json:"nombreEvento"`
	Descripcion      string       `json:"descripcion"`
	Fecha            string       `json:"fecha"`
	HoraInicio       string       `json:"hora_inicio"`
	HoraFin          string       `json:"hora_fin"`
	ImagenURL        string       `json:"imagen_url"`
	URLEvento        string       `json:"url_evento"`
	EdadMinima       int          `json:"edad_minima"`
	CodigoVestimenta string       `json:"codigo_vestimenta"`
	Tags             []string     `json:"tags"`
	Aforo            int          `json:"aforo"`
	EntradasVendidas int          `json:"entradas_vendidas"`
	Lugar            *RawLugar    `json:"lugar"`
	Entradas         []RawEntrada `json:"entradas"`
}

// LegacyRecord is the flat wrapper the fallback sources return. A record
// whose Evento or Evento.Lugar is missing cannot be normalized and is
// skipped entirely.
type LegacyRecord struct {
	Evento *RawEvent `json:"evento"`
}
