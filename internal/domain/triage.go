package domain

import (
	"fmt"
	"math"
)

// Weights defines the relative importance of each triage sub-score.
// All weights must sum to 1.0 (±0.001 tolerance).
type Weights struct {
	Condition        float64
	ComplaintDensity float64
	LotSize          float64
	Ownership        float64
	Proximity        float64
	TaxDelinquency   float64
}

// DefaultWeights returns the weighting used by the dashboard.
func DefaultWeights() Weights {
	return Weights{
		Condition:        0.25,
		ComplaintDensity: 0.20,
		LotSize:          0.10,
		Ownership:        0.15,
		Proximity:        0.15,
		TaxDelinquency:   0.15,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Condition + w.ComplaintDensity + w.LotSize + w.Ownership + w.Proximity + w.TaxDelinquency
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{w.Condition, w.ComplaintDensity, w.LotSize, w.Ownership, w.Proximity, w.TaxDelinquency} {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

// SubScores are the six 0–100 components of a triage score.
type SubScores struct {
	Condition        int `json:"condition"`
	ComplaintDensity int `json:"complaintDensity"`
	LotSize          int `json:"lotSize"`
	Ownership        int `json:"ownership"`
	Proximity        int `json:"proximity"`
	TaxDelinquency   int `json:"taxDelinquency"`
}

// Weighted returns the unrounded weighted sum of the sub-scores.
func (s SubScores) Weighted(w Weights) float64 {
	return float64(s.Condition)*w.Condition +
		float64(s.ComplaintDensity)*w.ComplaintDensity +
		float64(s.LotSize)*w.LotSize +
		float64(s.Ownership)*w.Ownership +
		float64(s.Proximity)*w.Proximity +
		float64(s.TaxDelinquency)*w.TaxDelinquency
}

// BestUse is the recommended reuse for a vacant parcel.
type BestUse string

const (
	BestUseHousing BestUse = "housing"
	BestUseSolar   BestUse = "solar"
	BestUseGarden  BestUse = "garden"
)

// ScoreBreakdown is the full triage result for one parcel.
type ScoreBreakdown struct {
	SubScores
	Composite          int
	BestUse            BestUse
	ConditionRating    int
	TaxYearsDelinquent int
}

const (
	minAnnualTax   = 500.0
	annualTaxRate  = 0.08
	maxTaxYears    = 10
	condemnedMajor = 10

	// fitEpsilon absorbs float noise when comparing best-use fits.
	fitEpsilon = 1e-9
)

// ConditionRating grades a parcel 1 (worst) to 5 (best) from its violations.
func ConditionRating(minor, major int) int {
	total := minor + major
	switch {
	case major >= condemnedMajor:
		return 1
	case major >= 5:
		return 2
	case major >= 2 || total >= 8:
		return 3
	case total >= 1:
		return 4
	default:
		return 5
	}
}

// Condemned reports whether the major-violation count marks the building as
// condemned.
func Condemned(major int) bool { return major >= condemnedMajor }

// TaxYearsDelinquent estimates how many years of property tax a balance
// represents. The annual tax is 8% of assessed value with a $500 floor.
func TaxYearsDelinquent(taxBalance, assessedValue float64) int {
	if taxBalance <= 0 || math.IsNaN(taxBalance) {
		return 0
	}
	annual := minAnnualTax
	if assessedValue > 0 {
		annual = math.Max(assessedValue*annualTaxRate, minAnnualTax)
	}
	return int(math.Min(maxTaxYears, math.Round(taxBalance/annual)))
}

// Scorer computes triage scores with a fixed weight set.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer after validating the weights.
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Score computes the triage breakdown using DefaultWeights.
func Score(p Parcel, v ViolationOverview) ScoreBreakdown {
	return (&Scorer{weights: DefaultWeights()}).Score(p, v)
}

// Score computes the six sub-scores, the composite and the best use. The
// condition sub-score measures soundness: rating 5 scores 100, rating 1 scores 0.
func (s *Scorer) Score(p Parcel, v ViolationOverview) ScoreBreakdown {
	rating := ConditionRating(v.Minor, v.Major)
	taxYears := TaxYearsDelinquent(p.TaxBalance, p.AssessedValue)
	lot := p.EffectiveLotSqFt()
	owner := p.Owner()

	var ownership float64
	switch owner {
	case OwnerLRA:
		ownership = 100
	case OwnerCity:
		ownership = 70
	default:
		ownership = math.Min(100, float64(taxYears)/5*50)
	}

	sub := SubScores{
		Condition:        scoreOf(float64(rating-1) / 4 * 100),
		ComplaintDensity: scoreOf(math.Min(100, float64(v.Total())/20*100)),
		LotSize:          scoreOf(math.Min(float64(lot)/10000, 1) * 100),
		Ownership:        scoreOf(ownership),
		Proximity:        scoreOf(math.Min(100, 30+float64(v.Complaints)*15)),
		TaxDelinquency:   scoreOf(math.Min(100, float64(taxYears)/maxTaxYears*100)),
	}

	return ScoreBreakdown{
		SubScores:          sub,
		Composite:          scoreOf(sub.Weighted(s.weights)),
		BestUse:            ChooseBestUse(p.PropertyType(), rating, lot, owner, sub.Proximity),
		ConditionRating:    rating,
		TaxYearsDelinquent: taxYears,
	}
}

// UseFit is the fitness of a parcel for one reuse.
type UseFit struct {
	Use BestUse
	Fit float64
}

// UseFits returns the fit of each reuse in tie-break order.
func UseFits(pt PropertyType, rating, lotSqFt int, owner Owner, proximity int) []UseFit {
	isLot := pt == PropertyLot
	prox := float64(proximity) / 100

	housing := float64(rating)*8 + prox*25
	if !isLot {
		housing += 35
	}

	solar := math.Min(40, float64(lotSqFt)/15000*40)
	if isLot {
		solar += 30
	}
	if owner == OwnerLRA {
		solar += 15
	}

	garden := 15.0
	if lotSqFt >= 2000 && lotSqFt <= 8000 {
		garden = 30
	}
	garden += prox * 25
	if isLot {
		garden += 25
	}

	return []UseFit{
		{Use: BestUseHousing, Fit: housing},
		{Use: BestUseSolar, Fit: solar},
		{Use: BestUseGarden, Fit: garden},
	}
}

// ChooseBestUse returns the highest fit. A later use must beat an earlier one by
// more than fitEpsilon, so ties resolve housing, then solar, then garden.
func ChooseBestUse(pt PropertyType, rating, lotSqFt int, owner Owner, proximity int) BestUse {
	fits := UseFits(pt, rating, lotSqFt, owner, proximity)
	best := fits[0]
	for _, f := range fits[1:] {
		if f.Fit > best.Fit+fitEpsilon {
			best = f
		}
	}
	return best.Use
}

// scoreOf rounds half away from zero and clamps to [0,100].
func scoreOf(x float64) int {
	return clamp(int(math.Round(x)), 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
