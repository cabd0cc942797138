package encounter

import (
	"math"

	"github.com/recallapp/recall/internal/store"
)

// earthRadiusMeters is the mean Earth radius.
const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance between two coordinates in meters.
func Haversine(a, b store.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
