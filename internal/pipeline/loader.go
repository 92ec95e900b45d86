package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// BatchLoader publishes scored vacancies to a downstream sink.
type BatchLoader interface {
	LoadBatch(ctx context.Context, vacancies []domain.Vacancy) error
}

// LoadInBatches sends vacancies to l in slices of at most size and returns the
// number delivered. It stops at the first failed batch.
func LoadInBatches(ctx context.Context, l BatchLoader, vacancies []domain.Vacancy, size int) (int, error) {
	if size <= 0 {
		size = len(vacancies)
	}
	sent := 0
	for start := 0; start < len(vacancies); start += size {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		end := min(start+size, len(vacancies))
		if err := l.LoadBatch(ctx, vacancies[start:end]); err != nil {
			return sent, fmt.Errorf("load batch %d-%d: %w", start, end, err)
		}
		sent += end - start
	}
	return sent, nil
}
