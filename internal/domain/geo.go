package domain

import "math"

// EarthRadiusKm is the mean Earth radius used by all great-circle computations.
const EarthRadiusKm = 6371.0

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceKm returns the Haversine great-circle distance between two points.
//
// It is symmetric and returns exactly 0 for identical points.
func DistanceKm(a, b Coordinates) float64 {
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// BearingDegrees returns the initial great-circle bearing from a to b in [0, 360).
func BearingDegrees(a, b Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
	return deg
}

// BoundedSpeedKmh returns the reported speed of a ping, or 0 when absent.
// Negative readings count as 0; readings above maxKmh are capped when maxKmh > 0.
func BoundedSpeedKmh(p LocationPoint, maxKmh float64) float64 {
	if p.SpeedKmh == nil {
		return 0
	}

	s := *p.SpeedKmh
	if s < 0 || math.IsNaN(s) {
		return 0
	}
	if maxKmh > 0 && s > maxKmh {
		return maxKmh
	}
	return s
}
