package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreBreakdown_PreservesInsertionOrder(t *testing.T) {
	var b ScoreBreakdown
	b.Add("congestive_heart_failure", 1)
	b.Add("age_75_plus", 2)
	b.Add("female_sex", 1)

	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "congestive_heart_failure", entries[0].Factor)
	assert.Equal(t, "age_75_plus", entries[1].Factor)
	assert.Equal(t, "female_sex", entries[2].Factor)
	assert.Equal(t, 4.0, b.Sum())
}

func TestScoreBreakdown_EntriesReturnsACopy(t *testing.T) {
	var b ScoreBreakdown
	b.Add("hypertension", 1)

	entries := b.Entries()
	entries[0].Points = 99

	points, ok := b.Points("hypertension")
	require.True(t, ok)
	assert.Equal(t, 1.0, points)
}

func TestScoreBreakdown_JSONRoundTripKeepsOrder(t *testing.T) {
	var b ScoreBreakdown
	b.Add("stroke_history", 1)
	b.Add("labile_inr", 1)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"factor":"stroke_history","points":1},{"factor":"labile_inr","points":1}]`, string(data))

	var restored ScoreBreakdown
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, b.Entries(), restored.Entries())
}

func TestScoreBreakdown_EmptyMarshalsAsArray(t *testing.T) {
	var b ScoreBreakdown
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestCalculationRequest_PatientLinked(t *testing.T) {
	anonymous := &CalculationRequest{CalculatorID: HASBLED, ActorID: "dr.jones"}
	assert.False(t, anonymous.PatientLinked())

	linked := &CalculationRequest{CalculatorID: HASBLED, ActorID: "dr.jones", PatientID: "pt-1001"}
	assert.True(t, linked.PatientLinked())
}

func TestCalculationRequest_CorrelationIDNeverFromBody(t *testing.T) {
	body := []byte(`{"calculator_id":"hasbled","actor_id":"x","CorrelationID":"spoofed"}`)

	var req CalculationRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Empty(t, req.CorrelationID)
}
