package domain

// Fixed attributes the dashboard expects but the city does not publish.
const (
	defaultNeighborhoodDemand = 50
	defaultBoardUpStatus      = "Unknown"
	defaultStories            = 1
	defaultVacancyCategory    = "Vacant Building"
)

// Vacancy is one scored vacant parcel as written to vacancies.json.
type Vacancy struct {
	ID                 int            `json:"id"`
	ParcelID           string         `json:"parcelId"`
	Address            string         `json:"address"`
	Zip                string         `json:"zip"`
	Lat                float64        `json:"lat"`
	Lng                float64        `json:"lng"`
	Ward               int            `json:"ward"`
	Neighborhood       NeighborhoodID `json:"neighborhood"`
	PropertyType       PropertyType   `json:"propertyType"`
	Owner              Owner          `json:"owner"`
	ConditionRating    int            `json:"conditionRating"`
	LotSqFt            int            `json:"lotSqFt"`
	Zoning             string         `json:"zoning"`
	TaxYearsDelinquent int            `json:"taxYearsDelinquent"`
	ComplaintsNearby   int            `json:"complaintsNearby"`
	ProximityScore     int            `json:"proximityScore"`
	NeighborhoodDemand int            `json:"neighborhoodDemand"`
	BoardUpStatus      string         `json:"boardUpStatus"`
	ViolationCount     int            `json:"violationCount"`
	Condemned          bool           `json:"condemned"`
	AssessedValue      float64        `json:"assessedValue"`
	YearBuilt          *int           `json:"yearBuilt"`
	Stories            int            `json:"stories"`
	RecentComplaints   []string       `json:"recentComplaints"`
	VacancyCategory    string         `json:"vacancyCategory"`
	TriageScore        int            `json:"triageScore"`
	ScoreBreakdown     SubScores      `json:"scoreBreakdown"`
	BestUse            BestUse        `json:"bestUse"`
}

// NewVacancy assembles the output record for a scored parcel. The parcel
// location must already be resolved.
func NewVacancy(id int, p Parcel, v ViolationOverview, s ScoreBreakdown) Vacancy {
	loc := p.Location.Rounded()

	var yearBuilt *int
	if p.YearBuilt > 0 {
		y := p.YearBuilt
		yearBuilt = &y
	}

	return Vacancy{
		ID:                 id,
		ParcelID:           p.ParcelID,
		Address:            p.Address,
		Zip:                p.Zip,
		Lat:                loc.Lat,
		Lng:                loc.Lng,
		Ward:               p.Ward,
		Neighborhood:       p.Neighborhood,
		PropertyType:       p.PropertyType(),
		Owner:              p.Owner(),
		ConditionRating:    s.ConditionRating,
		LotSqFt:            p.EffectiveLotSqFt(),
		Zoning:             p.EffectiveZoning(),
		TaxYearsDelinquent: s.TaxYearsDelinquent,
		ComplaintsNearby:   v.Complaints,
		ProximityScore:     s.Proximity,
		NeighborhoodDemand: defaultNeighborhoodDemand,
		BoardUpStatus:      defaultBoardUpStatus,
		ViolationCount:     v.Total(),
		Condemned:          Condemned(v.Major),
		AssessedValue:      p.AssessedValue,
		YearBuilt:          yearBuilt,
		Stories:            defaultStories,
		RecentComplaints:   []string{},
		VacancyCategory:    defaultVacancyCategory,
		TriageScore:        s.Composite,
		ScoreBreakdown:     s.SubScores,
		BestUse:            s.BestUse,
	}
}
