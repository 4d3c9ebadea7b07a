package calculator

import (
	"fmt"
	"math"

	"github.com/cardio-cdss-server/internal/domain"
)

// GRACEScore estimates in-hospital mortality after acute coronary syndrome.
// Each of the eight inputs maps through a published piecewise point table;
// the integer sum maps to a category band and a mortality percentage. All
// tables come from the versioned definition artifact.
type GRACEScore struct {
	version string
	fields  fieldSet
	table   *CategoryTable
	tables  graceTables
}

type graceTables struct {
	Age             []RangePoints      `json:"age"`
	HeartRate       []RangePoints      `json:"heart_rate"`
	SystolicBP      []RangePoints      `json:"systolic_bp"`
	Creatinine      []RangePoints      `json:"creatinine"`
	Killip          map[string]float64 `json:"killip"`
	CardiacArrest   float64            `json:"cardiac_arrest"`
	STDeviation     float64            `json:"st_deviation"`
	ElevatedEnzymes float64            `json:"elevated_enzymes"`
	Mortality       []MortalityRange   `json:"mortality"`
}

// RangePoints assigns points to values below Upper; nil Upper matches the
// remainder.
type RangePoints struct {
	Upper  *float64 `json:"upper,omitempty"`
	Points float64  `json:"points"`
}

// MortalityRange maps score ranges to a published mortality figure.
type MortalityRange struct {
	Upper *float64 `json:"upper,omitempty"`
	Text  string   `json:"text"`
}

var killipClasses = []string{"I", "II", "III", "IV"}

// NewGRACE builds the calculator from its versioned definition.
func NewGRACE(def *Definition) (*GRACEScore, error) {
	table, err := def.categoryTable()
	if err != nil {
		return nil, err
	}
	tables := graceTables{}
	if err := def.decodeTables(&tables); err != nil {
		return nil, err
	}
	for name, ranges := range map[string][]RangePoints{
		"age": tables.Age, "heart_rate": tables.HeartRate,
		"systolic_bp": tables.SystolicBP, "creatinine": tables.Creatinine,
	} {
		if err := validateRanges(name, ranges); err != nil {
			return nil, err
		}
	}
	for _, class := range killipClasses {
		if _, ok := tables.Killip[class]; !ok {
			return nil, fmt.Errorf("grace definition is missing Killip class %s", class)
		}
	}
	if len(tables.Mortality) == 0 {
		return nil, fmt.Errorf("grace definition is missing the mortality table")
	}

	return &GRACEScore{
		version: def.Version,
		fields: fieldSet{
			{name: "age", kind: fieldNumber, required: true, min: 0, max: 120},
			{name: "heart_rate", kind: fieldNumber, required: true, min: 20, max: 300},
			{name: "systolic_bp", kind: fieldNumber, required: true, min: 40, max: 300},
			{name: "creatinine", kind: fieldNumber, required: true, min: 0, max: 20},
			{name: "killip_class", kind: fieldEnum, required: true, enum: killipClasses},
			{name: "cardiac_arrest", kind: fieldBool, required: true},
			{name: "st_deviation", kind: fieldBool, required: true},
			{name: "elevated_enzymes", kind: fieldBool, required: true},
		},
		table:  table,
		tables: tables,
	}, nil
}

func validateRanges(name string, ranges []RangePoints) error {
	if len(ranges) == 0 {
		return fmt.Errorf("grace definition is missing the %s table", name)
	}
	if ranges[len(ranges)-1].Upper != nil {
		return fmt.Errorf("grace %s table has no terminal range", name)
	}
	return nil
}

// Info identifies the instrument and its definition version.
func (g *GRACEScore) Info() domain.CalculatorInfo {
	return domain.CalculatorInfo{ID: domain.GRACE, Version: g.version, Name: "GRACE ACS In-Hospital Mortality Score"}
}

// Validate checks the closed field set against its domain constraints.
func (g *GRACEScore) Validate(in domain.Inputs) *domain.ValidationError {
	return g.fields.validate(in)
}

// Compute maps each input through its point table and sums. The continuous
// contributions always appear in the breakdown, zero or not, so the audit
// trail shows the full derivation; the boolean modifiers appear when set.
func (g *GRACEScore) Compute(in domain.Inputs) (*domain.Computation, error) {
	comp := &domain.Computation{}

	comp.Breakdown.Add("age", lookupRange(g.tables.Age, numberField(in, "age")))
	comp.Breakdown.Add("heart_rate", lookupRange(g.tables.HeartRate, numberField(in, "heart_rate")))
	comp.Breakdown.Add("systolic_bp", lookupRange(g.tables.SystolicBP, numberField(in, "systolic_bp")))
	comp.Breakdown.Add("creatinine", lookupRange(g.tables.Creatinine, numberField(in, "creatinine")))
	comp.Breakdown.Add("killip_class", g.tables.Killip[enumField(in, "killip_class")])
	if boolField(in, "cardiac_arrest") {
		comp.Breakdown.Add("cardiac_arrest", g.tables.CardiacArrest)
	}
	if boolField(in, "st_deviation") {
		comp.Breakdown.Add("st_deviation", g.tables.STDeviation)
	}
	if boolField(in, "elevated_enzymes") {
		comp.Breakdown.Add("elevated_enzymes", g.tables.ElevatedEnzymes)
	}

	comp.TotalScore = math.Round(comp.Breakdown.Sum())
	return comp, nil
}

// Categorize maps the score through the band table.
func (g *GRACEScore) Categorize(comp *domain.Computation) (domain.RiskCategory, error) {
	return g.table.Categorize(comp.TotalScore)
}

// Describe reports the published in-hospital mortality for the score.
func (g *GRACEScore) Describe(comp *domain.Computation) string {
	for _, r := range g.tables.Mortality {
		if r.Upper == nil || comp.TotalScore < *r.Upper {
			return fmt.Sprintf("Estimated in-hospital mortality: %s", r.Text)
		}
	}
	return "Estimated in-hospital mortality: unavailable"
}

// Recommend is a pure function of category.
func (g *GRACEScore) Recommend(category domain.RiskCategory, comp *domain.Computation) string {
	switch category {
	case domain.RISK_HIGH:
		return "High risk: early invasive strategy and intensive monitoring recommended."
	case domain.RISK_INTERMEDIATE:
		return "Intermediate risk: consider early invasive evaluation."
	default:
		return "Low risk: conservative management with non-invasive evaluation is reasonable."
	}
}

func lookupRange(ranges []RangePoints, v float64) float64 {
	for _, r := range ranges {
		if r.Upper == nil || v < *r.Upper {
			return r.Points
		}
	}
	return 0
}
