package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Owner is the ownership class inferred from the assessor's owner name.
type Owner string

const (
	OwnerLRA     Owner = "LRA"
	OwnerCity    Owner = "CITY"
	OwnerPrivate Owner = "PRIVATE"
)

// ClassifyOwner maps a free-text owner name to an ownership class. The Land
// Reutilization Authority is checked before the city because its records
// often also contain "ST. LOUIS".
func ClassifyOwner(ownerName string) Owner {
	name := strings.ToUpper(ownerName)
	switch {
	case strings.Contains(name, "LRA"), strings.Contains(name, "LAND REUTILIZATION"):
		return OwnerLRA
	case strings.Contains(name, "CITY"), strings.Contains(name, "ST. LOUIS"), strings.Contains(name, "SAINT LOUIS"):
		return OwnerCity
	default:
		return OwnerPrivate
	}
}

// PropertyType distinguishes empty lots from parcels with structures.
type PropertyType string

const (
	PropertyLot      PropertyType = "lot"
	PropertyBuilding PropertyType = "building"
)

const (
	defaultLotSqFt = 3000
	defaultZoning  = "B"
)

// Parcel is one assessor parcel, with attributes already coerced.
type Parcel struct {
	Handle        string
	ParcelID      string
	Address       string
	Zip           string
	Ward          int
	Neighborhood  NeighborhoodID
	Location      Location
	OwnerName     string
	LotSqFt       int
	Zoning        string
	AssessedValue float64
	TaxBalance    float64
	YearBuilt     int // 0 when unknown
	BuildingCount int
	VacantLot     bool
}

// Owner returns the ownership class.
func (p Parcel) Owner() Owner { return ClassifyOwner(p.OwnerName) }

// PropertyType returns lot when the parcel is flagged vacant or has no
// buildings.
func (p Parcel) PropertyType() PropertyType {
	if p.VacantLot || p.BuildingCount == 0 {
		return PropertyLot
	}
	return PropertyBuilding
}

// EffectiveLotSqFt returns the lot area, substituting the city's typical lot
// size when the assessor recorded none.
func (p Parcel) EffectiveLotSqFt() int {
	if p.LotSqFt <= 0 {
		return defaultLotSqFt
	}
	return p.LotSqFt
}

// EffectiveZoning returns the zoning code, defaulting to the two-family
// district.
func (p Parcel) EffectiveZoning() string {
	if z := strings.TrimSpace(p.Zoning); z != "" {
		return z
	}
	return defaultZoning
}

// ViolationOverview summarizes the code-enforcement history of one parcel.
type ViolationOverview struct {
	Minor       int
	Major       int
	Complaints  int
	UnpaidFines float64
}

// Total returns minor plus major violations, saturating at math.MaxInt.
func (v ViolationOverview) Total() int {
	if v.Minor > 0 && v.Major > math.MaxInt-v.Minor {
		return math.MaxInt
	}
	return v.Minor + v.Major
}

// UnmarshalJSON accepts numbers, numeric strings and null for every field.
func (v *ViolationOverview) UnmarshalJSON(data []byte) error {
	var raw struct {
		Minor      flexNumber `json:"vmin"`
		Major      flexNumber `json:"vmaj"`
		Complaints flexNumber `json:"csb"`
		Unpaid     flexNumber `json:"unpd"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ViolationOverview{
		Minor:       ParseIntOrZero(string(raw.Minor)),
		Major:       ParseIntOrZero(string(raw.Major)),
		Complaints:  ParseIntOrZero(string(raw.Complaints)),
		UnpaidFines: ParseFloatOrZero(string(raw.Unpaid)),
	}
	return nil
}

// flexNumber captures a JSON scalar as text regardless of its JSON type.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexNumber(s)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		*f = ""
	default:
		*f = flexNumber(data)
	}
	return nil
}

// OverviewEntry is one HANDLE and its violation summary.
type OverviewEntry struct {
	Handle   string
	Overview ViolationOverview
}

// DecodeOverview reads a HANDLE → summary JSON object, preserving the file's
// key order so joins and output ids are reproducible.
func DecodeOverview(r io.Reader) ([]OverviewEntry, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read overview: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("read overview: expected a JSON object")
	}

	var entries []OverviewEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read overview key: %w", err)
		}
		handle, _ := tok.(string)
		var ov ViolationOverview
		if err := dec.Decode(&ov); err != nil {
			return nil, fmt.Errorf("read overview %q: %w", handle, err)
		}
		entries = append(entries, OverviewEntry{Handle: handle, Overview: ov})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read overview: %w", err)
	}
	return entries, nil
}
