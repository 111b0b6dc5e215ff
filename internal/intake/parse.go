package intake

import (
	"strconv"
	"strings"
)

// ParsedCoords is the result of parsing free-text coordinates.
type ParsedCoords struct {
	Lat     float64
	Lon     float64
	Contact string // "@handle" or "+digits", empty when absent
	Tail    string // remaining free text, empty when absent
}

// ParseCoords extracts "lat lon [@contact|+phone] [free text...]" from a
// chat message. Comma and semicolon separators are tolerated. Returns
// ok=false for anything that does not lead with two numbers; such text
// is ignored by intake rather than rejected.
func ParseCoords(s string) (ParsedCoords, bool) {
	txt := strings.TrimSpace(s)
	if txt == "" {
		return ParsedCoords{}, false
	}
	txt = strings.NewReplacer(",", " ", ";", " ").Replace(txt)

	parts := strings.Fields(txt)
	if len(parts) < 2 {
		return ParsedCoords{}, false
	}

	lat, err1 := strconv.ParseFloat(parts[0], 64)
	lon, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return ParsedCoords{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ParsedCoords{}, false
	}

	p := ParsedCoords{Lat: lat, Lon: lon}

	var tail []string
	for _, tok := range parts[2:] {
		if p.Contact == "" && isContactToken(tok) {
			p.Contact = tok
			continue
		}
		tail = append(tail, tok)
	}
	p.Tail = strings.Join(tail, " ")

	return p, true
}

// isContactToken reports whether tok looks like a handle or phone number.
func isContactToken(tok string) bool {
	if strings.HasPrefix(tok, "@") {
		return len(tok) > 1
	}
	if strings.HasPrefix(tok, "+") {
		return len(tok) > 1 && tok[1] >= '0' && tok[1] <= '9'
	}
	return false
}

// firePrefix marks a text report as a fire sighting regardless of mode.
const firePrefix = "fire "

// stripFirePrefix removes a leading fire marker, reporting whether it
// was present.
func stripFirePrefix(s string) (string, bool) {
	if strings.HasPrefix(strings.ToLower(s), firePrefix) {
		return strings.TrimSpace(s[len(firePrefix):]), true
	}
	return s, false
}
