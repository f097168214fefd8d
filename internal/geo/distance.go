// Package geo holds the great-circle distance and the distance-to-confidence
// decay used by geographic pole matching.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius (IUGG).
const EarthRadiusMeters = 6371008.8

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c is finite, in range, and not the (0,0) placeholder
// survey tools write for "no fix".
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	return c.Lat != 0 || c.Lon != 0
}

// HaversineMeters returns the great-circle distance between two points.
// NaN inputs propagate to a NaN result.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	sinDLat := math.Sin((lat2 - lat1) * math.Pi / 360)
	sinDLon := math.Sin((lon2 - lon1) * math.Pi / 360)

	a := sinDLat*sinDLat + math.Cos(phi1)*math.Cos(phi2)*sinDLon*sinDLon
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceMeters is HaversineMeters over Coordinates.
func DistanceMeters(a, b Coordinate) float64 {
	return HaversineMeters(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Scorer turns a distance into a match confidence that decays linearly from
// MaxConfidence at 0 m to 0 at CutoffMeters.
type Scorer struct {
	CutoffMeters  float64
	MaxConfidence float64
}

// Confidence returns the confidence for distance d. ok is false when no
// geographic match is possible: NaN distance, or d at or beyond the cutoff.
func (s Scorer) Confidence(d float64) (confidence float64, ok bool) {
	if math.IsNaN(d) || d < 0 || s.CutoffMeters <= 0 || d >= s.CutoffMeters {
		return 0, false
	}
	return s.MaxConfidence * math.Max(0, 1-d/s.CutoffMeters), true
}
