package domain

import (
	"context"
	"log/slog"
	"strings"
)

// GeocodeCity scopes address lookups to the city the parcels belong to.
const GeocodeCity = "St. Louis, MO"

// LocateParcel fills in a parcel's location from its address when the parcel
// geometry was missing. It returns the parcel unchanged when a location is
// already set, when geocoder is nil, or when the lookup fails or returns
// nothing (graceful degradation). The boolean reports whether a location was
// filled in.
func LocateParcel(ctx context.Context, p Parcel, geocoder Geocoder, logger *slog.Logger) (Parcel, bool) {
	if geocoder == nil || !p.Location.IsZero() || strings.TrimSpace(p.Address) == "" {
		return p, false
	}

	result, err := geocoder.ForwardGeocode(ctx, p.Address, GeocodeCity)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"handle", p.Handle,
			"address", p.Address,
			"error", err,
		)
		return p, false
	}
	if result.Lat == 0 && result.Lon == 0 {
		return p, false
	}

	p.Location = Location{Lat: result.Lat, Lng: result.Lon}
	return p, true
}
