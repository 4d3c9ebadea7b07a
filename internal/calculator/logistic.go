package calculator

import (
	"fmt"
	"math"

	"github.com/cardio-cdss-server/internal/domain"
)

// LogisticModel is a coefficient-weighted linear predictor evaluated over
// clinical covariates, producing a log-odds value that maps to a probability.
// The coefficients arrive from the versioned definition artifact; the engine
// only evaluates them.
type LogisticModel struct {
	Intercept float64        `json:"intercept"`
	Terms     []LogisticTerm `json:"terms"`
}

// LogisticTerm is one named contribution to the linear predictor.
//
// Kinds:
//   - "linear":    coefficient * clamp((value-center)/scale, floor)
//   - "flag":      coefficient when the boolean field is true
//   - "level":     per-level coefficient keyed by a categorical field
//   - "piecewise": coefficient selected by numeric range over the field
type LogisticTerm struct {
	Name        string             `json:"name"`
	Field       string             `json:"field"`
	Kind        string             `json:"kind"`
	Coefficient float64            `json:"coefficient,omitempty"`
	Levels      map[string]float64 `json:"levels,omitempty"`
	Ranges      []RangeCoefficient `json:"ranges,omitempty"`
	Center      float64            `json:"center,omitempty"`
	Scale       float64            `json:"scale,omitempty"`
	Floor       *float64           `json:"floor,omitempty"`
}

// RangeCoefficient selects a coefficient for values below Upper; a nil Upper
// matches everything remaining.
type RangeCoefficient struct {
	Upper       *float64 `json:"upper,omitempty"`
	Coefficient float64  `json:"coefficient"`
}

// validate rejects malformed term definitions at load time so evaluation
// never encounters an unknown kind.
func (m *LogisticModel) validate() error {
	for _, t := range m.Terms {
		switch t.Kind {
		case "linear", "flag":
		case "level":
			if len(t.Levels) == 0 {
				return fmt.Errorf("level term %q has no levels", t.Name)
			}
		case "piecewise":
			if len(t.Ranges) == 0 {
				return fmt.Errorf("piecewise term %q has no ranges", t.Name)
			}
			if t.Ranges[len(t.Ranges)-1].Upper != nil {
				return fmt.Errorf("piecewise term %q has no terminal range", t.Name)
			}
		default:
			return fmt.Errorf("term %q has unknown kind %q", t.Name, t.Kind)
		}
		if t.Field == "" || t.Name == "" {
			return fmt.Errorf("term %q must name both itself and its field", t.Name)
		}
	}
	return nil
}

// Evaluate computes the linear predictor over the inputs, appending each
// term's log-odds contribution to the breakdown in term order. Flag terms
// contribute an entry only when set; all other kinds always appear so the
// audit trail shows the full model.
func (m *LogisticModel) Evaluate(in domain.Inputs, breakdown *domain.ScoreBreakdown) float64 {
	x := m.Intercept
	for _, t := range m.Terms {
		switch t.Kind {
		case "linear":
			scale := t.Scale
			if scale == 0 {
				scale = 1
			}
			cov := (numberField(in, t.Field) - t.Center) / scale
			if t.Floor != nil && cov < *t.Floor {
				cov = *t.Floor
			}
			contribution := t.Coefficient * cov
			breakdown.Add(t.Name, contribution)
			x += contribution
		case "flag":
			if boolField(in, t.Field) {
				breakdown.Add(t.Name, t.Coefficient)
				x += t.Coefficient
			}
		case "level":
			contribution := t.Levels[enumField(in, t.Field)]
			breakdown.Add(t.Name, contribution)
			x += contribution
		case "piecewise":
			v := numberField(in, t.Field)
			var contribution float64
			for _, r := range t.Ranges {
				if r.Upper == nil || v < *r.Upper {
					contribution = r.Coefficient
					break
				}
			}
			breakdown.Add(t.Name, contribution)
			x += contribution
		}
	}
	return x
}

// logisticProbability converts a log-odds value to a probability.
func logisticProbability(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
