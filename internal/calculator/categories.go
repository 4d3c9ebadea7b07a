package calculator

import (
	"fmt"
	"math"

	"github.com/cardio-cdss-server/internal/domain"
)

// Band is one half-open interval [Lower, Upper) mapped to a risk category.
// A nil Upper marks the unbounded top band.
type Band struct {
	Lower    float64             `json:"lower"`
	Upper    *float64            `json:"upper,omitempty"`
	Category domain.RiskCategory `json:"category"`
}

// CategoryTable maps a numeric score or probability to a discrete category.
// Bands are contiguous and non-overlapping; a boundary value belongs to the
// higher band. Values below the lowest bound clamp to the lowest band and
// values above the highest clamp to the top band, so the table covers the
// full numeric range.
type CategoryTable struct {
	bands []Band
}

// NewCategoryTable validates and builds a category table. Bands must be
// ascending, contiguous, and end with an unbounded band.
func NewCategoryTable(bands []Band) (*CategoryTable, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("category table requires at least one band")
	}
	for i, b := range bands {
		last := i == len(bands)-1
		if last {
			if b.Upper != nil {
				return nil, fmt.Errorf("top band %q must be unbounded", b.Category)
			}
			continue
		}
		if b.Upper == nil {
			return nil, fmt.Errorf("band %q is unbounded but not the top band", b.Category)
		}
		if *b.Upper <= b.Lower {
			return nil, fmt.Errorf("band %q has upper %g <= lower %g", b.Category, *b.Upper, b.Lower)
		}
		if *b.Upper != bands[i+1].Lower {
			return nil, fmt.Errorf("gap between band %q and %q", b.Category, bands[i+1].Category)
		}
	}
	return &CategoryTable{bands: bands}, nil
}

// Categorize maps a value to its band. The only failure mode is a
// non-finite value, which signals a defect upstream of categorization.
func (t *CategoryTable) Categorize(v float64) (domain.RiskCategory, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("cannot categorize non-finite value %v", v)
	}
	if v < t.bands[0].Lower {
		return t.bands[0].Category, nil
	}
	for _, b := range t.bands {
		if b.Upper == nil || v < *b.Upper {
			return b.Category, nil
		}
	}
	// Unreachable while the top band is unbounded; kept as a guard.
	return t.bands[len(t.bands)-1].Category, nil
}

// Shift moves a category up or down by whole bands, clamped at the table
// edges. Used by instruments whose risk enhancers adjust the bucket without
// changing the raw numeric result.
func (t *CategoryTable) Shift(category domain.RiskCategory, shift int) domain.RiskCategory {
	if shift == 0 {
		return category
	}
	idx := -1
	for i, b := range t.bands {
		if b.Category == category {
			idx = i
			break
		}
	}
	if idx < 0 {
		return category
	}
	idx += shift
	if idx < 0 {
		idx = 0
	}
	if idx >= len(t.bands) {
		idx = len(t.bands) - 1
	}
	return t.bands[idx].Category
}

// upperOf is a convenience for building band literals.
func upperOf(v float64) *float64 {
	return &v
}
