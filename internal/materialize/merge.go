package materialize

import (
	"scheddb.mobitransit.org/internal/models"
	"scheddb.mobitransit.org/internal/utils"
)

// mergeStopOrders resolves two divergent stop sequences observed for the same
// canonical trip into one ordering containing the union of stops, each once,
// preserving relative order wherever the inputs agree. Coordinates drive the
// proximity heuristics; a stop without a cached coordinate is fatal.
func mergeStopOrders(routeID int, a, b []int, coords map[int]models.CoordinatePoint) ([]int, error) {
	posInA := positions(a)
	posInB := positions(b)

	point := func(stopID int) (models.CoordinatePoint, error) {
		pt, ok := coords[stopID]
		if !ok {
			return pt, fatalf(KindMissingCoordinate, routeID, "stop %d referenced during merge has no coordinate", stopID)
		}
		return pt, nil
	}
	distance := func(from, to int) (float64, error) {
		p1, err := point(from)
		if err != nil {
			return 0, err
		}
		p2, err := point(to)
		if err != nil {
			return 0, err
		}
		return utils.GeodesicDistance(p1.Lat, p1.Lon, p2.Lat, p2.Lon), nil
	}

	merged := make([]int, 0, len(a)+len(b))
	emitted := make(map[int]bool)
	last := 0
	haveLast := false
	emit := func(stopID int) {
		merged = append(merged, stopID)
		emitted[stopID] = true
		last = stopID
		haveLast = true
	}

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if emitted[a[i]] {
			i++
			continue
		}
		if emitted[b[j]] {
			j++
			continue
		}
		if a[i] == b[j] {
			emit(a[i])
			i++
			j++
			continue
		}

		_, headAShared := posInB[a[i]]
		_, headBShared := posInA[b[j]]
		// A stop exclusive to one list must come first: the other list will
		// reach the shared head later.
		if headBShared && !headAShared {
			emit(a[i])
			i++
			continue
		}
		if headAShared && !headBShared {
			emit(b[j])
			j++
			continue
		}

		if haveLast {
			// Locality: keep following the list the previous stop was
			// exclusive to.
			_, lastInA := posInA[last]
			_, lastInB := posInB[last]
			if lastInA && !lastInB {
				emit(a[i])
				i++
				continue
			}
			if lastInB && !lastInA {
				emit(b[j])
				j++
				continue
			}

			da, err := distance(last, a[i])
			if err != nil {
				return nil, err
			}
			db, err := distance(last, b[j])
			if err != nil {
				return nil, err
			}
			if da <= db {
				emit(a[i])
				i++
			} else {
				emit(b[j])
				j++
			}
			continue
		}

		// First divergence point: order the heads by their distance to the
		// first stop the two lists share. The farther head is assumed to
		// occur earlier along the route.
		if common, ok := firstCommonStop(a, posInB); ok {
			da, err := distance(a[i], common)
			if err != nil {
				return nil, err
			}
			db, err := distance(b[j], common)
			if err != nil {
				return nil, err
			}
			if da >= db {
				emit(a[i])
				i++
			} else {
				emit(b[j])
				j++
			}
			continue
		}

		// No shared stop at all: deterministic coordinate tie-break.
		pa, err := point(a[i])
		if err != nil {
			return nil, err
		}
		pb, err := point(b[j])
		if err != nil {
			return nil, err
		}
		if models.ComparePoints(pa, pb) <= 0 {
			emit(a[i])
			i++
		} else {
			emit(b[j])
			j++
		}
	}

	for ; i < len(a); i++ {
		if !emitted[a[i]] {
			emit(a[i])
		}
	}
	for ; j < len(b); j++ {
		if !emitted[b[j]] {
			emit(b[j])
		}
	}

	return merged, nil
}

func positions(stops []int) map[int]int {
	pos := make(map[int]int, len(stops))
	for idx, s := range stops {
		if _, ok := pos[s]; !ok {
			pos[s] = idx
		}
	}
	return pos
}

func firstCommonStop(a []int, posInB map[int]int) (int, bool) {
	for _, s := range a {
		if _, ok := posInB[s]; ok {
			return s, true
		}
	}
	return 0, false
}

func equalOrders(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
