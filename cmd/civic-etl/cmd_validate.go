package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/civic-data-etl/internal/config"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/steps"
)

var validateFlags struct {
	file string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a vacancies artifact against the triage model",
	Long: `validate re-derives every score in a vacancies artifact and reports
records that break the triage rules. It exits 1 when any phase fails.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFlags.file, "file", "", "vacancies artifact (default OUT_DIR/vacancies.json)")
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// errValidation is returned after the report is printed so the command exits 1.
var errValidation = errors.New("validation failed")

func runValidate(cmd *cobra.Command, _ []string) error {
	path := validateFlags.file
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = filepath.Join(cfg.OutDir, steps.VacanciesArtifact)
	}

	vacancies, err := loadVacancies(path)
	if err != nil {
		return err
	}
	if !report(cmd.OutOrStdout(), path, validateVacancies(vacancies, domain.DefaultWeights()), len(vacancies)) {
		return errValidation
	}
	return nil
}

func loadVacancies(path string) ([]domain.Vacancy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vacancies: %w", err)
	}
	var vs []domain.Vacancy
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return vs, nil
}

func validateVacancies(vs []domain.Vacancy, w domain.Weights) []*phase {
	return []*phase{
		validateRanges(vs),
		validateComposite(vs, w),
		validateOwnership(vs),
		validateCondition(vs),
		validateBestUse(vs),
	}
}

func report(out io.Writer, path string, phases []*phase, records int) bool {
	fmt.Fprintf(out, "=== Vacancy triage validation: %s ===\n\n", path)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nRecords: %d\n", records)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
	} else {
		fmt.Fprintln(out, "\nValidation FAILED.")
	}
	return allPassed
}

func validateRanges(vs []domain.Vacancy) *phase {
	p := &phase{name: "Score ranges"}
	for _, v := range vs {
		b := v.ScoreBreakdown
		for _, s := range []struct {
			name  string
			score int
		}{
			{"triageScore", v.TriageScore},
			{"condition", b.Condition},
			{"complaintDensity", b.ComplaintDensity},
			{"lotSize", b.LotSize},
			{"ownership", b.Ownership},
			{"proximity", b.Proximity},
			{"taxDelinquency", b.TaxDelinquency},
		} {
			if s.score < 0 || s.score > 100 {
				p.errorf("%s: %s %d outside [0,100]", v.ParcelID, s.name, s.score)
			}
		}
		if v.ConditionRating < 1 || v.ConditionRating > 5 {
			p.errorf("%s: conditionRating %d outside [1,5]", v.ParcelID, v.ConditionRating)
		}
		if v.ProximityScore != b.Proximity {
			p.errorf("%s: proximityScore %d != breakdown %d", v.ParcelID, v.ProximityScore, b.Proximity)
		}
	}
	return p
}

func validateComposite(vs []domain.Vacancy, w domain.Weights) *phase {
	p := &phase{name: "Composite consistency"}
	for _, v := range vs {
		want := int(math.Round(v.ScoreBreakdown.Weighted(w)))
		want = max(0, min(100, want))
		if v.TriageScore != want {
			p.errorf("%s: triageScore %d, weighted breakdown gives %d", v.ParcelID, v.TriageScore, want)
		}
	}
	return p
}

func validateOwnership(vs []domain.Vacancy) *phase {
	p := &phase{name: "Ownership rule"}
	for _, v := range vs {
		switch v.Owner {
		case domain.OwnerLRA:
			if v.ScoreBreakdown.Ownership != 100 {
				p.errorf("%s: LRA-owned but ownership score %d", v.ParcelID, v.ScoreBreakdown.Ownership)
			}
		case domain.OwnerCity:
			if v.ScoreBreakdown.Ownership != 70 {
				p.errorf("%s: city-owned but ownership score %d", v.ParcelID, v.ScoreBreakdown.Ownership)
			}
		case domain.OwnerPrivate:
		default:
			p.errorf("%s: unknown owner %q", v.ParcelID, v.Owner)
		}
	}
	return p
}

func validateCondition(vs []domain.Vacancy) *phase {
	p := &phase{name: "Condemned / condition"}
	for _, v := range vs {
		if v.Condemned && v.ConditionRating != 1 {
			p.errorf("%s: condemned with conditionRating %d", v.ParcelID, v.ConditionRating)
		}
		want := int(math.Round(float64(v.ConditionRating-1) / 4 * 100))
		if v.ScoreBreakdown.Condition != want {
			p.errorf("%s: condition score %d, rating %d gives %d", v.ParcelID, v.ScoreBreakdown.Condition, v.ConditionRating, want)
		}
	}
	return p
}

func validateBestUse(vs []domain.Vacancy) *phase {
	p := &phase{name: "Best-use reproducibility"}
	for _, v := range vs {
		want := domain.ChooseBestUse(v.PropertyType, v.ConditionRating, v.LotSqFt, v.Owner, v.ScoreBreakdown.Proximity)
		if v.BestUse != want {
			p.errorf("%s: bestUse %q, inputs give %q", v.ParcelID, v.BestUse, want)
		}
	}
	return p
}
