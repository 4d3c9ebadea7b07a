package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-cdss-server/internal/domain"
)

func newHASBLED(t *testing.T) *HASBLED {
	t.Helper()
	def, err := LoadDefinition("", domain.HASBLED)
	require.NoError(t, err)
	calc, err := NewHASBLED(def)
	require.NoError(t, err)
	return calc
}

func hasbledInputs(trueFactors ...string) domain.Inputs {
	in := domain.Inputs{}
	for _, name := range hasbledFactors {
		in[name] = false
	}
	for _, name := range trueFactors {
		in[name] = true
	}
	return in
}

func TestHASBLED_Compute_ThreeModifiableFactors(t *testing.T) {
	calc := newHASBLED(t)
	in := hasbledInputs("hypertension_uncontrolled", "labile_inr", "alcohol_excess")

	require.Nil(t, calc.Validate(in))

	// Act
	comp, err := calc.Compute(in)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3.0, comp.TotalScore)
	assert.Equal(t, []string{"hypertension_uncontrolled", "labile_inr", "alcohol_excess"}, comp.ModifiableFactors)

	category, err := calc.Categorize(comp)
	require.NoError(t, err)
	assert.Equal(t, domain.RISK_MODERATE, category)

	rec := calc.Recommend(category, comp)
	assert.Contains(t, rec, "closer monitoring")
	assert.Contains(t, rec, "Consider addressing: uncontrolled hypertension, labile INR, alcohol excess.")
}

func TestHASBLED_CategoryBoundaries(t *testing.T) {
	calc := newHASBLED(t)

	tests := []struct {
		name     string
		factors  []string
		category domain.RiskCategory
	}{
		{"score 0 is low", nil, domain.RISK_LOW},
		{"score 2 is low", []string{"elderly", "stroke_history"}, domain.RISK_LOW},
		{"score 3 is moderate", []string{"elderly", "stroke_history", "bleeding_history"}, domain.RISK_MODERATE},
		{"score 4 is high", []string{"elderly", "stroke_history", "bleeding_history", "renal_function_abnormal"}, domain.RISK_HIGH},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := calc.Compute(hasbledInputs(tt.factors...))
			require.NoError(t, err)

			category, err := calc.Categorize(comp)
			require.NoError(t, err)
			assert.Equal(t, tt.category, category)
		})
	}
}

func TestHASBLED_NonModifiableFactorsExcludedFromRecommendation(t *testing.T) {
	calc := newHASBLED(t)
	in := hasbledInputs("elderly", "stroke_history")

	comp, err := calc.Compute(in)
	require.NoError(t, err)
	assert.Empty(t, comp.ModifiableFactors)

	category, err := calc.Categorize(comp)
	require.NoError(t, err)
	assert.NotContains(t, calc.Recommend(category, comp), "Consider addressing")
}

func TestHASBLED_Describe(t *testing.T) {
	calc := newHASBLED(t)

	comp, err := calc.Compute(hasbledInputs("elderly", "labile_inr", "stroke_history"))
	require.NoError(t, err)
	assert.Contains(t, calc.Describe(comp), "3.74")
}

func TestHASBLED_Validate_MissingFactor(t *testing.T) {
	calc := newHASBLED(t)
	in := hasbledInputs()
	delete(in, "labile_inr")

	verr := calc.Validate(in)
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "labile_inr", verr.Violations[0].Field)
	assert.Equal(t, domain.RuleRequired, verr.Violations[0].Rule)
}

func TestHASBLED_Validate_WrongType(t *testing.T) {
	calc := newHASBLED(t)
	in := hasbledInputs()
	in["elderly"] = "yes"

	verr := calc.Validate(in)
	require.NotNil(t, verr)
	assert.Equal(t, domain.RuleType, verr.Violations[0].Rule)
}
