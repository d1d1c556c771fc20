package models

// HeadsignKind discriminates the three representations a destination label can
// take in the feed.
type HeadsignKind int

const (
	HeadsignText HeadsignKind = iota
	HeadsignCompass
	HeadsignInOut
)

var compassIndexes = map[string]int{
	"N": 0, "NE": 1, "E": 2, "SE": 3, "S": 4, "SW": 5, "W": 6, "NW": 7,
}

// Headsign is the destination label of a trip. Exactly one representation is
// meaningful, selected by Kind: free text, an 8-point compass direction, or an
// inbound/outbound flag.
type Headsign struct {
	Kind    HeadsignKind
	Text    string
	Compass string
	Inbound bool
}

// TextHeadsign builds a free-text headsign.
func TextHeadsign(text string) Headsign {
	return Headsign{Kind: HeadsignText, Text: text}
}

// CompassHeadsign builds a compass-direction headsign from one of the eight
// principal directions ("N", "NE", ...).
func CompassHeadsign(direction string) Headsign {
	return Headsign{Kind: HeadsignCompass, Compass: direction}
}

// InOutHeadsign builds an inbound/outbound headsign.
func InOutHeadsign(inbound bool) Headsign {
	return Headsign{Kind: HeadsignInOut, Inbound: inbound}
}

// Label returns the rider-facing form of the headsign.
func (h Headsign) Label() string {
	switch h.Kind {
	case HeadsignCompass:
		return h.Compass
	case HeadsignInOut:
		if h.Inbound {
			return "Inbound"
		}
		return "Outbound"
	default:
		return h.Text
	}
}

// Discriminator returns the value that, together with the route, determines
// trip identity. Free-text headsigns do not discriminate on their own: two
// trips of the same direction with different texts are merge candidates, so
// the text contributes nothing here and the feed's direction flag is used
// instead.
func (h Headsign) Discriminator(direction int) int {
	switch h.Kind {
	case HeadsignCompass:
		return compassIndexes[h.Compass]
	case HeadsignInOut:
		if h.Inbound {
			return 1
		}
		return 0
	default:
		return direction
	}
}

// Equal reports whether two headsigns are identical in kind and value.
func (h Headsign) Equal(other Headsign) bool {
	return h == other
}
