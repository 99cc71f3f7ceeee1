package route

import "math"

const earthRadius = 6371000.0 // metres

// Distance calculates distance between two points using Haversine formula
func Distance(a, b GeoPoint) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// Bearing calculates the initial bearing from a to b in degrees (0-359)
func Bearing(a, b GeoPoint) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLonRad := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(deltaLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLonRad)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	return bearing
}

// Length returns the total driven distance of the route in metres
func (r Route) Length() float64 {
	return r.Remaining(0)
}

// Remaining returns the distance in metres from point i to the last point
func (r Route) Remaining(i int) float64 {
	if i < 0 {
		i = 0
	}
	var total float64
	for ; i+1 < len(r); i++ {
		total += Distance(r[i], r[i+1])
	}
	return total
}
