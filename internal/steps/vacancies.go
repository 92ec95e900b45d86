package steps

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/geo"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

// VacanciesArtifact is the file the vacancy step writes.
const VacanciesArtifact = "vacancies.json"

// Vacancies joins the vacancy overview to the parcel shapefile, scores every
// vacant parcel and optionally publishes the results.
type Vacancies struct {
	// weights replaces DefaultWeights when set. Only tests set it; runs
	// always score with the defaults.
	weights *domain.Weights
}

func (Vacancies) Name() string  { return "vacancies" }
func (Vacancies) Title() string { return "Vacancy data" }

func (s Vacancies) Run(ctx context.Context, rc *pipeline.RunContext) error {
	weights := domain.DefaultWeights()
	if s.weights != nil {
		weights = *s.weights
	}
	scorer, err := domain.NewScorer(weights)
	if err != nil {
		return err
	}

	f, err := os.Open(rc.Raw("vacancies", "vacancy_overview.json"))
	if err != nil {
		return pipeline.SkipIfMissing(err)
	}
	overview, err := domain.DecodeOverview(f)
	f.Close()
	if err != nil {
		return err
	}
	rc.Logger.Info("loaded vacancy overview", "parcels", len(overview))

	layer, err := readShapefile(rc, rc.Raw("parcels"))
	if err != nil {
		return err
	}
	cols, err := rc.Columns(schema.SourceParcels, layer.Fields)
	if err != nil {
		return err
	}
	if err := requireColumn(schema.SourceParcels, cols.Has("handle"), "handle"); err != nil {
		return err
	}

	parcels := make(map[string]*source.Feature, len(layer.Features))
	for i := range layer.Features {
		if h := cols.Value(layer.Features[i].Attrs, "handle"); h != "" {
			parcels[h] = &layer.Features[i]
		}
	}
	rc.Logger.Info("indexed parcels", "parcels", len(parcels))

	transformer := pipeline.NewTransformer(scorer, rc.Geocoder, rc.Logger)
	vacancies := make([]domain.Vacancy, 0, len(overview))
	matched := 0
	for _, entry := range overview {
		feat, ok := parcels[entry.Handle]
		if !ok {
			rc.Dropped("unmatched", 1)
			continue
		}
		matched++

		v, err := transformer.Transform(ctx, matched, parcelFromFeature(cols, entry.Handle, feat), entry.Overview)
		switch {
		case errors.Is(err, pipeline.ErrNoLocation):
			rc.Dropped("no_location", 1)
			continue
		case errors.Is(err, pipeline.ErrOutOfBounds):
			rc.Dropped("outside_city", 1)
			continue
		case err != nil:
			return err
		}
		vacancies = append(vacancies, v)
	}
	rc.Logger.Info("matched vacant parcels", "matched", matched, "overview", len(overview), "scored", len(vacancies))

	if err := writeJSON(rc, VacanciesArtifact, vacancies, len(vacancies)); err != nil {
		return err
	}

	if rc.Loader == nil {
		return nil
	}
	sent, err := pipeline.LoadInBatches(ctx, rc.Loader, vacancies, rc.BatchSize)
	rc.Logger.Info("published vacancies", "sent", sent, "total", len(vacancies))
	return err
}

// parcelFromFeature coerces the assessor attributes of one parcel. The
// location is the geometry centroid, left zero when there is no geometry.
func parcelFromFeature(cols schema.Columns, handle string, f *source.Feature) domain.Parcel {
	val := func(field string) string { return strings.TrimSpace(cols.Value(f.Attrs, field)) }

	p := domain.Parcel{
		Handle:        handle,
		ParcelID:      firstNonEmpty(val("parcel_id"), handle),
		Address:       val("address"),
		Zip:           strconv.Itoa(domain.ParseIntOrZero(val("zip"))),
		Ward:          domain.ParseIntOrZero(val("ward")),
		OwnerName:     val("owner"),
		LotSqFt:       domain.ParseIntOrZero(val("lot_sqft")),
		Zoning:        val("zoning"),
		AssessedValue: domain.ParseFloatOrZero(val("assessed")),
		TaxBalance:    domain.ParseFloatOrZero(val("tax_balance")),
		YearBuilt:     domain.ParseIntOrZero(val("year_built")),
		BuildingCount: domain.ParseIntOrZero(val("buildings")),
		VacantLot:     domain.ParseIntOrZero(val("vacant_lot")) == 1,
	}
	if p.Address == "" {
		p.Address = strings.Join(strings.Fields(val("address_number")+" "+val("street_name")+" "+val("street_type")), " ")
	}
	p.Neighborhood, _ = domain.ParseNeighborhoodID(val("neighborhood"))
	if c, ok := geo.Centroid(f.Geometry); ok {
		p.Location = domain.Location{Lat: c.Y(), Lng: c.X()}
	}
	return p
}
