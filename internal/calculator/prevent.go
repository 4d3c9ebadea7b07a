package calculator

import (
	"fmt"

	"github.com/cardio-cdss-server/internal/domain"
)

// PREVENTScore computes 10-year cardiovascular risk probabilities (ASCVD,
// heart failure, total CVD) from sex-specific logistic models supplied by
// the versioned definition artifact. Optional risk enhancers (HbA1c, urine
// albumin/creatinine ratio) shift the category one band upward without
// altering the raw probabilities.
type PREVENTScore struct {
	version string
	fields  fieldSet
	table   *CategoryTable
	tables  preventTables
}

type preventTables struct {
	// Models holds one logistic model per outcome per sex, keyed
	// outcome -> sex.
	Models map[string]map[string]*LogisticModel `json:"models"`
	// Enhancers shift the category when the named optional field is
	// present and at or above its threshold.
	Enhancers []preventEnhancer `json:"enhancers"`
}

type preventEnhancer struct {
	Field     string  `json:"field"`
	Threshold float64 `json:"threshold"`
	Shift     int     `json:"shift"`
}

// preventOutcomes lists the reported outcomes; ascvd is the authoritative
// probability for categorization.
var preventOutcomes = []string{"ascvd", "heart_failure", "total_cvd"}

// NewPREVENT builds the calculator from its versioned definition.
func NewPREVENT(def *Definition) (*PREVENTScore, error) {
	table, err := def.categoryTable()
	if err != nil {
		return nil, err
	}
	tables := preventTables{}
	if err := def.decodeTables(&tables); err != nil {
		return nil, err
	}
	for _, outcome := range preventOutcomes {
		bySex, ok := tables.Models[outcome]
		if !ok {
			return nil, fmt.Errorf("prevent definition is missing the %s model", outcome)
		}
		for _, sex := range []string{"male", "female"} {
			model, ok := bySex[sex]
			if !ok {
				return nil, fmt.Errorf("prevent definition is missing the %s model for %s", outcome, sex)
			}
			if err := model.validate(); err != nil {
				return nil, fmt.Errorf("prevent %s/%s model: %w", outcome, sex, err)
			}
		}
	}

	return &PREVENTScore{
		version: def.Version,
		fields: fieldSet{
			{name: "age", kind: fieldNumber, required: true, min: 30, max: 79},
			{name: "sex", kind: fieldEnum, required: true, enum: []string{"male", "female"}},
			{name: "systolic_bp", kind: fieldNumber, required: true, min: 60, max: 300},
			{name: "total_cholesterol", kind: fieldNumber, required: true, min: 50, max: 500},
			{name: "hdl_cholesterol", kind: fieldNumber, required: true, min: 10, max: 150},
			{name: "egfr", kind: fieldNumber, required: true, min: 1, max: 200},
			{name: "diabetes", kind: fieldBool, required: true},
			{name: "current_smoker", kind: fieldBool, required: true},
			{name: "bp_treatment", kind: fieldBool, required: true},
			{name: "statin_use", kind: fieldBool, required: true},
			// Optional enhancers; validated when supplied, never defaulted.
			{name: "hba1c", kind: fieldNumber, required: false, min: 3, max: 20},
			{name: "uacr", kind: fieldNumber, required: false, min: 0, max: 25000},
		},
		table:  table,
		tables: tables,
	}, nil
}

// Info identifies the instrument and its definition version.
func (p *PREVENTScore) Info() domain.CalculatorInfo {
	return domain.CalculatorInfo{ID: domain.PREVENT, Version: p.version, Name: "PREVENT 10-Year Cardiovascular Risk Equations"}
}

// Validate checks the closed field set against its domain constraints.
func (p *PREVENTScore) Validate(in domain.Inputs) *domain.ValidationError {
	return p.fields.validate(in)
}

// Compute evaluates the three sex-specific logistic models. Breakdown
// entries are per-term log-odds contributions prefixed with the outcome, for
// display and audit; the probabilities are the authoritative results.
func (p *PREVENTScore) Compute(in domain.Inputs) (*domain.Computation, error) {
	sex := enumField(in, "sex")
	comp := &domain.Computation{Probabilities: make(map[string]float64, len(preventOutcomes))}

	for _, outcome := range preventOutcomes {
		model := p.tables.Models[outcome][sex]
		var modelBreakdown domain.ScoreBreakdown
		x := model.Evaluate(in, &modelBreakdown)
		for _, entry := range modelBreakdown.Entries() {
			comp.Breakdown.Add(outcome+"."+entry.Factor, entry.Points)
		}
		comp.Probabilities[outcome] = logisticProbability(x)
	}
	comp.TotalScore = comp.Probabilities["ascvd"]

	// Enhancers adjust the category, never the probabilities.
	for _, e := range p.tables.Enhancers {
		if hasField(in, e.Field) && numberField(in, e.Field) >= e.Threshold {
			comp.CategoryShift += e.Shift
		}
	}
	return comp, nil
}

// Categorize maps the ASCVD probability through the ACC/AHA bands, then
// applies any enhancer shift.
func (p *PREVENTScore) Categorize(comp *domain.Computation) (domain.RiskCategory, error) {
	category, err := p.table.Categorize(comp.TotalScore)
	if err != nil {
		return "", err
	}
	return p.table.Shift(category, comp.CategoryShift), nil
}

// Describe reports the three 10-year probabilities.
func (p *PREVENTScore) Describe(comp *domain.Computation) string {
	return fmt.Sprintf("Estimated 10-year risk: ASCVD %.1f%%, heart failure %.1f%%, total CVD %.1f%%",
		comp.Probabilities["ascvd"]*100,
		comp.Probabilities["heart_failure"]*100,
		comp.Probabilities["total_cvd"]*100)
}

// Recommend is a pure function of category.
func (p *PREVENTScore) Recommend(category domain.RiskCategory, comp *domain.Computation) string {
	switch category {
	case domain.RISK_HIGH:
		return "High risk: statin therapy indicated; intensive risk factor modification recommended."
	case domain.RISK_INTERMEDIATE:
		return "Intermediate risk: statin therapy favored; discuss risk-reduction options."
	case domain.RISK_BORDERLINE:
		return "Borderline risk: consider statin therapy if risk enhancers are present."
	default:
		return "Low risk: emphasize lifestyle measures; reassess in 4 to 6 years."
	}
}
