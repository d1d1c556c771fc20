package models

// Stop is a boarding location, deduplicated globally by its numeric id.
type Stop struct {
	ID   int
	Code string
	Name string
	Lat  float64
	Lon  float64
}

// Point returns the stop's coordinate pair.
func (s *Stop) Point() CoordinatePoint {
	return CoordinatePoint{Lat: s.Lat, Lon: s.Lon}
}

// SameValue reports whether two stop records are identical. A redefinition
// with a different value is reported as a warning during aggregation.
func (s *Stop) SameValue(other *Stop) bool {
	return *s == *other
}
