// Package domain models St. Louis civic open data: vacant parcels, building
// violations, 311 service requests, crime incidents and the neighborhood
// identifiers that tie them together.
//
// # Data Sources
//
// Raw files are produced by an external fetch step and land under RAW_DIR:
//
//	vacancies/vacancy_overview.json  per-parcel violation summary keyed by HANDLE
//	parcels/*.shp                    city parcel polygons with assessor attributes
//	csb/*.csv                        Citizens' Service Bureau (311) requests
//	crime/*.csv                      SLMPD incident exports
//	neighborhoods/*.shp              the 79 (plus parks) neighborhood polygons
//
// # Coercion Conventions
//
// Municipal exports are inconsistent: numbers arrive as strings, as floats
// with trailing ".0", as the literal "NULL", or not at all. Every parser in
// this package is total. An unparseable value yields zero or the documented
// fallback, never an error:
//
//	ParseIntOrZero("12")      → 12
//	ParseIntOrZero("12.9")    → 12  (truncated)
//	ParseIntOrZero("NULL")    → 0
//	ParseFloatOrZero("NaN")   → 0
//
// # Neighborhood Identity
//
// Neighborhoods are referenced by number in some sources and by name in
// others, and numbers appear both padded ("05") and bare ("5"). A
// [NeighborhoodID] is always the zero-padded two-digit code. It is produced
// once at ingestion by a [Directory], which also resolves names when the
// neighborhood shapefile is available.
//
// # Triage Scoring
//
// Each vacant parcel that matches a violation overview is scored on six
// 0–100 sub-scores:
//
//	condition         the 1–5 condition rating scaled to 0–100 (rating 5 → 100)
//	complaintDensity  total violations, saturating at 20
//	lotSize           lot area, saturating at 10,000 sq ft
//	ownership         LRA 100, CITY 70, otherwise driven by tax delinquency
//	proximity         placeholder: 30 + 15 per nearby 311 complaint
//	taxDelinquency    estimated years of unpaid tax, saturating at 10
//
// The composite is the weighted sum (see [DefaultWeights]) rounded half away
// from zero and clamped to [0,100]. The best use is the highest of three fit
// scores (housing, solar, garden) with ties broken in that order.
package domain
