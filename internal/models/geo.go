package models

// CoordinatePoint is a WGS84 latitude/longitude pair.
type CoordinatePoint struct {
	Lat float64
	Lon float64
}

// ComparePoints orders two points by latitude, then longitude. It returns a
// negative value when a sorts before b, zero when equal, positive otherwise.
func ComparePoints(a, b CoordinatePoint) int {
	if a.Lat < b.Lat {
		return -1
	}
	if a.Lat > b.Lat {
		return 1
	}
	if a.Lon < b.Lon {
		return -1
	}
	if a.Lon > b.Lon {
		return 1
	}
	return 0
}
