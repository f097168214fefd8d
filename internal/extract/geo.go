package extract

import (
	"github.com/polematch/internal/geo"
)

// GeoLocator reads an optional coordinate from a raw record.
type GeoLocator struct {
	latitude    []string
	longitude   []string
	coordinates []string
}

// NewGeoLocator takes the coordinate paths from a field map.
func NewGeoLocator(fields FieldMap) *GeoLocator {
	return &GeoLocator{
		latitude:    fields.Latitude,
		longitude:   fields.Longitude,
		coordinates: fields.Coordinates,
	}
}

// Locate returns the first valid coordinate found. Scalar lat/lon pairs are
// tried before [lon, lat] arrays. Out-of-range, non-finite and (0,0) values
// are treated as absent.
func (g *GeoLocator) Locate(record map[string]any) (geo.Coordinate, bool) {
	if g == nil {
		return geo.Coordinate{}, false
	}

	n := min(len(g.latitude), len(g.longitude))
	for i := 0; i < n; i++ {
		latV, ok := Lookup(record, g.latitude[i])
		if !ok {
			continue
		}
		lonV, ok := Lookup(record, g.longitude[i])
		if !ok {
			continue
		}
		lat, okLat := Float(latV)
		lon, okLon := Float(lonV)
		c := geo.Coordinate{Lat: lat, Lon: lon}
		if okLat && okLon && c.Valid() {
			return c, true
		}
	}

	for _, p := range g.coordinates {
		v, ok := Lookup(record, p)
		if !ok {
			continue
		}
		pair, ok := v.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		lon, okLon := Float(pair[0])
		lat, okLat := Float(pair[1])
		c := geo.Coordinate{Lat: lat, Lon: lon}
		if okLat && okLon && c.Valid() {
			return c, true
		}
	}

	return geo.Coordinate{}, false
}
