package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-cdss-server/internal/domain"
)

func newCHA2DS2VASc(t *testing.T) *CHA2DS2VASc {
	t.Helper()
	def, err := LoadDefinition("", domain.CHA2DS2VASC)
	require.NoError(t, err)
	calc, err := NewCHA2DS2VASc(def)
	require.NoError(t, err)
	return calc
}

func cha2ds2vascInputs(overrides domain.Inputs) domain.Inputs {
	in := domain.Inputs{
		"age":                        50.0,
		"sex":                        "male",
		"congestive_heart_failure":   false,
		"hypertension":               false,
		"diabetes":                   false,
		"stroke_tia_thromboembolism": false,
		"vascular_disease":           false,
	}
	for k, v := range overrides {
		in[k] = v
	}
	return in
}

func TestCHA2DS2VASc_Compute_Age70Male(t *testing.T) {
	calc := newCHA2DS2VASc(t)
	in := cha2ds2vascInputs(domain.Inputs{"age": 70.0})

	require.Nil(t, calc.Validate(in))

	// Act
	comp, err := calc.Compute(in)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1.0, comp.TotalScore)
	require.Equal(t, 1, comp.Breakdown.Len())
	assert.Equal(t, "age_65_74", comp.Breakdown.Entries()[0].Factor)
	assert.Equal(t, 1.0, comp.Breakdown.Entries()[0].Points)

	category, err := calc.Categorize(comp)
	require.NoError(t, err)
	assert.Equal(t, domain.RISK_CONSIDER_ANTICOAGULATION, category)
	assert.Equal(t, "Consider oral anticoagulation.", calc.Recommend(category, comp))
}

func TestCHA2DS2VASc_Compute_Age80FemaleWithStroke(t *testing.T) {
	calc := newCHA2DS2VASc(t)
	in := cha2ds2vascInputs(domain.Inputs{
		"age":                        80.0,
		"sex":                        "female",
		"stroke_tia_thromboembolism": true,
	})

	comp, err := calc.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, 5.0, comp.TotalScore)

	// Canonical factor order: age before stroke before female sex.
	factors := make([]string, 0, comp.Breakdown.Len())
	for _, e := range comp.Breakdown.Entries() {
		factors = append(factors, e.Factor)
	}
	assert.Equal(t, []string{"age_75_plus", "stroke_tia_thromboembolism", "female_sex"}, factors)

	category, err := calc.Categorize(comp)
	require.NoError(t, err)
	assert.Equal(t, domain.RISK_ANTICOAGULATION_RECOMMENDED, category)
	assert.Equal(t, "Oral anticoagulation recommended.", calc.Recommend(category, comp))
}

func TestCHA2DS2VASc_FemaleSexAloneTreatedAsZero(t *testing.T) {
	calc := newCHA2DS2VASc(t)
	in := cha2ds2vascInputs(domain.Inputs{"sex": "female"})

	comp, err := calc.Compute(in)
	require.NoError(t, err)

	// Raw score stays 1; only the treatment category collapses to zero.
	assert.Equal(t, 1.0, comp.TotalScore)

	category, err := calc.Categorize(comp)
	require.NoError(t, err)
	assert.Equal(t, domain.RISK_NO_ANTICOAGULATION, category)
	assert.Equal(t, "No anticoagulation needed.", calc.Recommend(category, comp))
}

func TestCHA2DS2VASc_FemaleSexWithOtherFactorCounts(t *testing.T) {
	calc := newCHA2DS2VASc(t)
	in := cha2ds2vascInputs(domain.Inputs{
		"sex":          "female",
		"hypertension": true,
	})

	comp, err := calc.Compute(in)
	require.NoError(t, err)
	assert.Equal(t, 2.0, comp.TotalScore)

	category, err := calc.Categorize(comp)
	require.NoError(t, err)
	assert.Equal(t, domain.RISK_ANTICOAGULATION_RECOMMENDED, category)
}

func TestCHA2DS2VASc_AgeBoundaries(t *testing.T) {
	calc := newCHA2DS2VASc(t)

	tests := []struct {
		name   string
		age    float64
		points float64
	}{
		{"age 64 scores nothing", 64, 0},
		{"age 65 scores one", 65, 1},
		{"age 74 scores one", 74, 1},
		{"age 75 scores two", 75, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := calc.Compute(cha2ds2vascInputs(domain.Inputs{"age": tt.age}))
			require.NoError(t, err)
			assert.Equal(t, tt.points, comp.TotalScore)
		})
	}
}

func TestCHA2DS2VASc_MaximumScore(t *testing.T) {
	calc := newCHA2DS2VASc(t)
	in := domain.Inputs{
		"age":                        80.0,
		"sex":                        "female",
		"congestive_heart_failure":   true,
		"hypertension":               true,
		"diabetes":                   true,
		"stroke_tia_thromboembolism": true,
		"vascular_disease":           true,
	}

	comp, err := calc.Compute(in)
	require.NoError(t, err)
	assert.Equal(t, 9.0, comp.TotalScore)
	assert.Contains(t, calc.Describe(comp), "15.2")
}

func TestCHA2DS2VASc_Validate(t *testing.T) {
	calc := newCHA2DS2VASc(t)

	t.Run("age below range", func(t *testing.T) {
		verr := calc.Validate(cha2ds2vascInputs(domain.Inputs{"age": -1.0}))
		require.NotNil(t, verr)
		require.Len(t, verr.Violations, 1)
		assert.Equal(t, "age", verr.Violations[0].Field)
		assert.Equal(t, domain.RuleRange, verr.Violations[0].Rule)
	})

	t.Run("age above range", func(t *testing.T) {
		verr := calc.Validate(cha2ds2vascInputs(domain.Inputs{"age": 150.0}))
		require.NotNil(t, verr)
		assert.Equal(t, domain.RuleRange, verr.Violations[0].Rule)
	})

	t.Run("missing boolean is reported, not defaulted", func(t *testing.T) {
		in := cha2ds2vascInputs(nil)
		delete(in, "diabetes")

		verr := calc.Validate(in)
		require.NotNil(t, verr)
		require.Len(t, verr.Violations, 1)
		assert.Equal(t, "diabetes", verr.Violations[0].Field)
		assert.Equal(t, domain.RuleRequired, verr.Violations[0].Rule)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		in := cha2ds2vascInputs(domain.Inputs{"smoking": true})
		verr := calc.Validate(in)
		require.NotNil(t, verr)
		assert.Equal(t, domain.RuleUnknown, verr.Violations[0].Rule)
	})

	t.Run("invalid sex enum", func(t *testing.T) {
		verr := calc.Validate(cha2ds2vascInputs(domain.Inputs{"sex": "other"}))
		require.NotNil(t, verr)
		assert.Equal(t, domain.RuleEnum, verr.Violations[0].Rule)
	})

	t.Run("all violations reported together", func(t *testing.T) {
		in := cha2ds2vascInputs(domain.Inputs{"age": 200.0, "sex": "x"})
		delete(in, "hypertension")

		verr := calc.Validate(in)
		require.NotNil(t, verr)
		assert.Len(t, verr.Violations, 3)
	})
}

func TestCHA2DS2VASc_ComputeIsDeterministic(t *testing.T) {
	calc := newCHA2DS2VASc(t)
	in := cha2ds2vascInputs(domain.Inputs{
		"age":          70.0,
		"sex":          "female",
		"hypertension": true,
	})

	first, err := calc.Compute(in)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := calc.Compute(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
