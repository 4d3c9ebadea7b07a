package calculator

import (
	"fmt"
	"strings"

	"github.com/cardio-cdss-server/internal/domain"
)

// HASBLED scores major bleeding risk on anticoagulation. Nine boolean
// factors, one point each; the published instrument keeps score 3 as its own
// moderate bucket between low (0-2) and high (>=4).
type HASBLED struct {
	version   string
	fields    fieldSet
	table     *CategoryTable
	bleedRisk map[string]string
}

type hasbledTables struct {
	// BleedRisk maps total score to the published bleeds-per-100
	// patient-years figure.
	BleedRisk map[string]string `json:"bleed_risk"`
}

// hasbledFactors lists the nine factors in canonical display order.
var hasbledFactors = []string{
	"hypertension_uncontrolled",
	"renal_function_abnormal",
	"liver_function_abnormal",
	"stroke_history",
	"bleeding_history",
	"labile_inr",
	"elderly",
	"antiplatelet_or_nsaid",
	"alcohol_excess",
}

// hasbledModifiable maps the clinically modifiable factors to the labels
// used in recommendation text.
var hasbledModifiable = map[string]string{
	"hypertension_uncontrolled": "uncontrolled hypertension",
	"labile_inr":                "labile INR",
	"antiplatelet_or_nsaid":     "antiplatelet/NSAID use",
	"alcohol_excess":            "alcohol excess",
}

// NewHASBLED builds the calculator from its versioned definition.
func NewHASBLED(def *Definition) (*HASBLED, error) {
	table, err := def.categoryTable()
	if err != nil {
		return nil, err
	}
	tables := hasbledTables{}
	if err := def.decodeTables(&tables); err != nil {
		return nil, err
	}
	if len(tables.BleedRisk) == 0 {
		return nil, fmt.Errorf("hasbled definition is missing the bleed risk table")
	}

	fields := make(fieldSet, 0, len(hasbledFactors))
	for _, name := range hasbledFactors {
		fields = append(fields, fieldSpec{name: name, kind: fieldBool, required: true})
	}

	return &HASBLED{
		version:   def.Version,
		fields:    fields,
		table:     table,
		bleedRisk: tables.BleedRisk,
	}, nil
}

// Info identifies the instrument and its definition version.
func (h *HASBLED) Info() domain.CalculatorInfo {
	return domain.CalculatorInfo{ID: domain.HASBLED, Version: h.version, Name: "HAS-BLED Major Bleeding Risk Score"}
}

// Validate checks the closed field set against its domain constraints.
func (h *HASBLED) Validate(in domain.Inputs) *domain.ValidationError {
	return h.fields.validate(in)
}

// Compute counts the true factors, one point each, in canonical order, and
// collects the modifiable subset for the recommendation.
func (h *HASBLED) Compute(in domain.Inputs) (*domain.Computation, error) {
	comp := &domain.Computation{}
	for _, name := range hasbledFactors {
		if boolField(in, name) {
			comp.Breakdown.Add(name, 1)
			if _, modifiable := hasbledModifiable[name]; modifiable {
				comp.ModifiableFactors = append(comp.ModifiableFactors, name)
			}
		}
	}
	comp.TotalScore = comp.Breakdown.Sum()
	return comp, nil
}

// Categorize maps the score through the band table (0-2 low, 3 moderate,
// >=4 high).
func (h *HASBLED) Categorize(comp *domain.Computation) (domain.RiskCategory, error) {
	return h.table.Categorize(comp.TotalScore)
}

// Describe reports the published bleeding rate for the score.
func (h *HASBLED) Describe(comp *domain.Computation) string {
	key := fmt.Sprintf("%d", int(comp.TotalScore))
	rate, ok := h.bleedRisk[key]
	if !ok {
		return "Bleeding risk data insufficient for this score"
	}
	return fmt.Sprintf("Estimated major bleeding rate: %s per 100 patient-years", rate)
}

// Recommend combines the category with the modifiable factors present.
func (h *HASBLED) Recommend(category domain.RiskCategory, comp *domain.Computation) string {
	var base string
	switch category {
	case domain.RISK_HIGH:
		base = "High bleeding risk: caution with anticoagulation and regular review required."
	case domain.RISK_MODERATE:
		base = "Moderate bleeding risk: anticoagulation warrants closer monitoring."
	default:
		base = "Low bleeding risk: no specific bleeding precautions indicated."
	}

	if len(comp.ModifiableFactors) == 0 {
		return base
	}
	labels := make([]string, len(comp.ModifiableFactors))
	for i, factor := range comp.ModifiableFactors {
		labels[i] = hasbledModifiable[factor]
	}
	return fmt.Sprintf("%s Consider addressing: %s.", base, strings.Join(labels, ", "))
}
