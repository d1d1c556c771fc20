package utils

import "math"

// The eight principal compass points, clockwise from north.
var compassPoints = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Bearing returns the initial great-circle bearing in degrees from the first
// point toward the second, normalized to [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	return math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
}

// BearingToCompass maps a bearing to the nearest principal compass point.
func BearingToCompass(bearing float64) string {
	return compassPoints[int((bearing+22.5)/45.0)%8]
}

// CompassDirection returns the compass point of the travel direction from the
// first coordinate toward the second. Trips without a usable destination label
// are named by the direction between their terminal stops.
func CompassDirection(lat1, lon1, lat2, lon2 float64) string {
	return BearingToCompass(Bearing(lat1, lon1, lat2, lon2))
}
