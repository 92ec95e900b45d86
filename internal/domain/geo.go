package domain

import "math"

const earthRadiusMeters = 6378137.0

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the location was never set.
func (l Location) IsZero() bool { return l.Lat == 0 && l.Lng == 0 }

// Rounded returns the location rounded to six decimal places (~10 cm).
func (l Location) Rounded() Location {
	return Location{Lat: Round(l.Lat, 6), Lng: Round(l.Lng, 6)}
}

// InStLouis reports whether the location falls in the city's bounding box.
// The box is one degree each way: it rejects swapped or projected
// coordinates, not points just past the city boundary.
func (l Location) InStLouis() bool {
	return l.Lat > 38 && l.Lat < 39 && l.Lng > -91 && l.Lng < -89
}

// WebMercatorToLocation converts EPSG:3857 meters to WGS84 degrees.
func WebMercatorToLocation(x, y float64) Location {
	lng := x / earthRadiusMeters * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadiusMeters)) - math.Pi/2) * 180 / math.Pi
	return Location{Lat: lat, Lng: lng}
}
