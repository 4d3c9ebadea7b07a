package calculator

import (
	"fmt"

	"github.com/cardio-cdss-server/internal/domain"
)

// EuroSCOREII predicts 30-day mortality after cardiac surgery via a single
// logistic model over patient, cardiac, and operative factors. The model
// coefficients are externally published and arrive through the versioned
// definition artifact.
type EuroSCOREII struct {
	version string
	fields  fieldSet
	table   *CategoryTable
	model   *LogisticModel
}

type euroscoreTables struct {
	Model *LogisticModel `json:"model"`
}

// NewEuroSCOREII builds the calculator from its versioned definition.
func NewEuroSCOREII(def *Definition) (*EuroSCOREII, error) {
	table, err := def.categoryTable()
	if err != nil {
		return nil, err
	}
	tables := euroscoreTables{}
	if err := def.decodeTables(&tables); err != nil {
		return nil, err
	}
	if tables.Model == nil {
		return nil, fmt.Errorf("euroscore2 definition is missing the logistic model")
	}
	if err := tables.Model.validate(); err != nil {
		return nil, fmt.Errorf("euroscore2 model: %w", err)
	}

	return &EuroSCOREII{
		version: def.Version,
		fields: fieldSet{
			{name: "age", kind: fieldNumber, required: true, min: 18, max: 120},
			{name: "sex", kind: fieldEnum, required: true, enum: []string{"male", "female"}},
			{name: "creatinine_clearance", kind: fieldNumber, required: true, min: 1, max: 300},
			{name: "nyha_class", kind: fieldEnum, required: true, enum: []string{"I", "II", "III", "IV"}},
			{name: "lv_function", kind: fieldEnum, required: true, enum: []string{"good", "moderate", "poor", "very_poor"}},
			{name: "pulmonary_hypertension", kind: fieldEnum, required: true, enum: []string{"none", "moderate", "severe"}},
			{name: "urgency", kind: fieldEnum, required: true, enum: []string{"elective", "urgent", "emergency", "salvage"}},
			{name: "weight_of_intervention", kind: fieldEnum, required: true, enum: []string{"isolated_cabg", "single_non_cabg", "two_procedures", "three_plus_procedures"}},
			{name: "insulin_dependent_diabetes", kind: fieldBool, required: true},
			{name: "extracardiac_arteriopathy", kind: fieldBool, required: true},
			{name: "chronic_pulmonary_dysfunction", kind: fieldBool, required: true},
			{name: "poor_mobility", kind: fieldBool, required: true},
			{name: "previous_cardiac_surgery", kind: fieldBool, required: true},
			{name: "active_endocarditis", kind: fieldBool, required: true},
			{name: "critical_preoperative_state", kind: fieldBool, required: true},
			{name: "ccs4_angina", kind: fieldBool, required: true},
			{name: "recent_mi", kind: fieldBool, required: true},
			{name: "thoracic_aorta_surgery", kind: fieldBool, required: true},
		},
		table: table,
		model: tables.Model,
	}, nil
}

// Info identifies the instrument and its definition version.
func (e *EuroSCOREII) Info() domain.CalculatorInfo {
	return domain.CalculatorInfo{ID: domain.EUROSCORE2, Version: e.version, Name: "EuroSCORE II Cardiac Surgery Mortality Model"}
}

// Validate checks the closed field set against its domain constraints.
func (e *EuroSCOREII) Validate(in domain.Inputs) *domain.ValidationError {
	return e.fields.validate(in)
}

// Compute evaluates the logistic model. The breakdown entries are log-odds
// terms, not additive points; the predicted mortality probability is the
// authoritative result.
func (e *EuroSCOREII) Compute(in domain.Inputs) (*domain.Computation, error) {
	comp := &domain.Computation{}
	x := e.model.Evaluate(in, &comp.Breakdown)
	p := logisticProbability(x)
	comp.TotalScore = p
	comp.Probabilities = map[string]float64{"mortality_30d": p}
	return comp, nil
}

// Categorize maps the predicted mortality through the band table.
func (e *EuroSCOREII) Categorize(comp *domain.Computation) (domain.RiskCategory, error) {
	return e.table.Categorize(comp.TotalScore)
}

// Describe reports the predicted mortality.
func (e *EuroSCOREII) Describe(comp *domain.Computation) string {
	return fmt.Sprintf("Predicted 30-day mortality: %.2f%%", comp.TotalScore*100)
}

// Recommend is a pure function of category.
func (e *EuroSCOREII) Recommend(category domain.RiskCategory, comp *domain.Computation) string {
	switch category {
	case domain.RISK_HIGH:
		return "High operative risk: heart team review and consideration of alternatives recommended."
	case domain.RISK_MODERATE:
		return "Moderate operative risk: standard perioperative planning with attention to modifiable factors."
	default:
		return "Low operative risk: proceed with standard perioperative care."
	}
}
