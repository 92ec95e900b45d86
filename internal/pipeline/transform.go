package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

var (
	// ErrNoLocation means the parcel has no geometry and could not be geocoded.
	ErrNoLocation = errors.New("parcel has no location")
	// ErrOutOfBounds means the parcel lies outside the St. Louis bounding box.
	ErrOutOfBounds = errors.New("parcel outside St. Louis")
)

// VacancyTransformer scores joined parcels into vacancy records, with
// optional geocoding of parcels that lack geometry.
type VacancyTransformer struct {
	scorer   *domain.Scorer
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a VacancyTransformer. Pass a nil geocoder to disable
// the address fallback.
func NewTransformer(scorer *domain.Scorer, geocoder domain.Geocoder, logger *slog.Logger) *VacancyTransformer {
	return &VacancyTransformer{
		scorer:   scorer,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform locates, bounds-checks and scores one parcel. id is the join
// sequence number assigned by the caller.
func (t *VacancyTransformer) Transform(ctx context.Context, id int, p domain.Parcel, v domain.ViolationOverview) (domain.Vacancy, error) {
	p, _ = domain.LocateParcel(ctx, p, t.geocoder, t.logger)
	if p.Location.IsZero() {
		return domain.Vacancy{}, ErrNoLocation
	}
	// Bounds apply to the coordinates as written, after rounding.
	if !p.Location.Rounded().InStLouis() {
		return domain.Vacancy{}, ErrOutOfBounds
	}
	return domain.NewVacancy(id, p, v, t.scorer.Score(p, v)), nil
}
