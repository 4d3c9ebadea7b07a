package calculator

import (
	"fmt"

	"github.com/cardio-cdss-server/internal/domain"
)

// CHA2DS2VASc scores stroke risk in patients with atrial fibrillation.
// Point rule per the published instrument: CHF +1, hypertension +1,
// diabetes +1, age 65-74 +1, age >=75 +2, prior stroke/TIA/thromboembolism
// +2, vascular disease +1, female sex +1.
type CHA2DS2VASc struct {
	version    string
	fields     fieldSet
	table      *CategoryTable
	strokeRisk map[string]string
}

type cha2ds2vascTables struct {
	// StrokeRisk maps total score (as a string key, "0".."9") to the
	// published annualized stroke-risk percentage.
	StrokeRisk map[string]string `json:"stroke_risk"`
}

// Factor names as they appear in the score breakdown, in canonical order.
const (
	factorCHF          = "congestive_heart_failure"
	factorHypertension = "hypertension"
	factorDiabetes     = "diabetes"
	factorAge6574      = "age_65_74"
	factorAge75Plus    = "age_75_plus"
	factorStroke       = "stroke_tia_thromboembolism"
	factorVascular     = "vascular_disease"
	factorFemaleSex    = "female_sex"
)

// NewCHA2DS2VASc builds the calculator from its versioned definition.
func NewCHA2DS2VASc(def *Definition) (*CHA2DS2VASc, error) {
	table, err := def.categoryTable()
	if err != nil {
		return nil, err
	}
	tables := cha2ds2vascTables{}
	if err := def.decodeTables(&tables); err != nil {
		return nil, err
	}
	if len(tables.StrokeRisk) == 0 {
		return nil, fmt.Errorf("cha2ds2vasc definition is missing the stroke risk table")
	}

	return &CHA2DS2VASc{
		version: def.Version,
		fields: fieldSet{
			{name: "age", kind: fieldNumber, required: true, min: 0, max: 120},
			{name: "sex", kind: fieldEnum, required: true, enum: []string{"male", "female"}},
			{name: factorCHF, kind: fieldBool, required: true},
			{name: factorHypertension, kind: fieldBool, required: true},
			{name: factorDiabetes, kind: fieldBool, required: true},
			{name: factorStroke, kind: fieldBool, required: true},
			{name: factorVascular, kind: fieldBool, required: true},
		},
		table:      table,
		strokeRisk: tables.StrokeRisk,
	}, nil
}

// Info identifies the instrument and its definition version.
func (c *CHA2DS2VASc) Info() domain.CalculatorInfo {
	return domain.CalculatorInfo{ID: domain.CHA2DS2VASC, Version: c.version, Name: "CHA2DS2-VASc Score for Atrial Fibrillation Stroke Risk"}
}

// Validate checks the closed field set against its domain constraints.
func (c *CHA2DS2VASc) Validate(in domain.Inputs) *domain.ValidationError {
	return c.fields.validate(in)
}

// Compute sums the point rule. Factors that contribute nothing are omitted
// from the breakdown; insertion follows the canonical published order.
func (c *CHA2DS2VASc) Compute(in domain.Inputs) (*domain.Computation, error) {
	comp := &domain.Computation{}

	if boolField(in, factorCHF) {
		comp.Breakdown.Add(factorCHF, 1)
	}
	if boolField(in, factorHypertension) {
		comp.Breakdown.Add(factorHypertension, 1)
	}
	if boolField(in, factorDiabetes) {
		comp.Breakdown.Add(factorDiabetes, 1)
	}
	age := numberField(in, "age")
	switch {
	case age >= 75:
		comp.Breakdown.Add(factorAge75Plus, 2)
	case age >= 65:
		comp.Breakdown.Add(factorAge6574, 1)
	}
	if boolField(in, factorStroke) {
		comp.Breakdown.Add(factorStroke, 2)
	}
	if boolField(in, factorVascular) {
		comp.Breakdown.Add(factorVascular, 1)
	}
	if enumField(in, "sex") == "female" {
		comp.Breakdown.Add(factorFemaleSex, 1)
	}

	comp.TotalScore = comp.Breakdown.Sum()
	return comp, nil
}

// Categorize maps the score to a treatment category. The documented clinical
// exception lives here, not in Compute: a score of 1 whose only positive
// factor is female sex presents as equivalent to score 0 for treatment
// purposes, while the raw score stays untouched.
func (c *CHA2DS2VASc) Categorize(comp *domain.Computation) (domain.RiskCategory, error) {
	if c.femaleSexAlone(comp) {
		return c.table.Categorize(0)
	}
	return c.table.Categorize(comp.TotalScore)
}

// Describe reports the published annualized stroke risk for the raw score.
func (c *CHA2DS2VASc) Describe(comp *domain.Computation) string {
	key := fmt.Sprintf("%d", int(comp.TotalScore))
	risk, ok := c.strokeRisk[key]
	if !ok {
		// Scores beyond the table clamp to the highest published entry.
		risk = c.strokeRisk["9"]
	}
	return fmt.Sprintf("Estimated annual stroke risk: %s", risk)
}

// Recommend is a pure function of category.
func (c *CHA2DS2VASc) Recommend(category domain.RiskCategory, comp *domain.Computation) string {
	switch category {
	case domain.RISK_ANTICOAGULATION_RECOMMENDED:
		return "Oral anticoagulation recommended."
	case domain.RISK_CONSIDER_ANTICOAGULATION:
		return "Consider oral anticoagulation."
	default:
		return "No anticoagulation needed."
	}
}

// femaleSexAlone reports whether female sex is the only positive factor.
func (c *CHA2DS2VASc) femaleSexAlone(comp *domain.Computation) bool {
	return comp.TotalScore == 1 && comp.Breakdown.Len() == 1 && comp.Breakdown.Has(factorFemaleSex)
}
