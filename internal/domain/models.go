package domain

import (
	"encoding/json"
	"time"
)

// Core Enums and Types

// CalculatorID identifies a single clinical risk-scoring instrument.
type CalculatorID string

const (
	CHA2DS2VASC CalculatorID = "cha2ds2vasc"
	HASBLED     CalculatorID = "hasbled"
	GRACE       CalculatorID = "grace"
	PREVENT     CalculatorID = "prevent"
	EUROSCORE2  CalculatorID = "euroscore2"
)

// String returns the identifier as a plain string
func (id CalculatorID) String() string {
	return string(id)
}

// RiskCategory represents a discrete risk bucket derived from a numeric
// score or probability via threshold bands.
type RiskCategory string

const (
	RISK_LOW          RiskCategory = "LOW"
	RISK_BORDERLINE   RiskCategory = "BORDERLINE"
	RISK_MODERATE     RiskCategory = "MODERATE"
	RISK_INTERMEDIATE RiskCategory = "INTERMEDIATE"
	RISK_HIGH         RiskCategory = "HIGH"

	// CHA2DS2-VASc treatment categories
	RISK_NO_ANTICOAGULATION          RiskCategory = "NO_ANTICOAGULATION"
	RISK_CONSIDER_ANTICOAGULATION    RiskCategory = "CONSIDER_ANTICOAGULATION"
	RISK_ANTICOAGULATION_RECOMMENDED RiskCategory = "ANTICOAGULATION_RECOMMENDED"
)

// String returns the category as a plain string
func (c RiskCategory) String() string {
	return string(c)
}

// Inputs holds the caller-supplied clinical observations for one calculation.
// Field order carries no meaning; calculators must be order-independent.
type Inputs map[string]interface{}

// BreakdownEntry is one factor's contribution to a score.
type BreakdownEntry struct {
	Factor string  `json:"factor"`
	Points float64 `json:"points"`
}

// ScoreBreakdown is the itemized per-factor ledger behind a total score.
// Insertion order is the canonical factor order for display and auditing;
// it is stable across identical inputs and never depends on map iteration.
type ScoreBreakdown struct {
	entries []BreakdownEntry
}

// Add appends a factor contribution, preserving insertion order.
func (b *ScoreBreakdown) Add(factor string, points float64) {
	b.entries = append(b.entries, BreakdownEntry{Factor: factor, Points: points})
}

// Entries returns the ordered factor contributions.
func (b *ScoreBreakdown) Entries() []BreakdownEntry {
	out := make([]BreakdownEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Points returns the contribution recorded for a factor, if present.
func (b *ScoreBreakdown) Points(factor string) (float64, bool) {
	for _, e := range b.entries {
		if e.Factor == factor {
			return e.Points, true
		}
	}
	return 0, false
}

// Has reports whether a factor contributed to the score.
func (b *ScoreBreakdown) Has(factor string) bool {
	_, ok := b.Points(factor)
	return ok
}

// Sum returns the arithmetic total of all entries. For additive instruments
// this is the total score; for logistic instruments the entries are log-odds
// terms and the sum is the linear predictor, not the reported probability.
func (b *ScoreBreakdown) Sum() float64 {
	var sum float64
	for _, e := range b.entries {
		sum += e.Points
	}
	return sum
}

// Len returns the number of recorded factors.
func (b *ScoreBreakdown) Len() int {
	return len(b.entries)
}

// MarshalJSON encodes the breakdown as an ordered array of entries so the
// canonical factor order survives serialization.
func (b ScoreBreakdown) MarshalJSON() ([]byte, error) {
	if b.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.entries)
}

// UnmarshalJSON restores a breakdown from its ordered array form.
func (b *ScoreBreakdown) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &b.entries)
}

// Computation holds the deterministic numeric outputs of one compute pass,
// before categorization and recommendation are applied.
type Computation struct {
	Breakdown ScoreBreakdown `json:"breakdown"`

	// TotalScore is the authoritative integer-style score for additive
	// instruments, or the primary probability (0..1) for logistic ones.
	TotalScore float64 `json:"total_score"`

	// Probabilities holds named probabilities (0..1) for instruments that
	// report more than one outcome, e.g. PREVENT's ascvd/heart_failure/cvd.
	Probabilities map[string]float64 `json:"probabilities,omitempty"`

	// ModifiableFactors lists the clinically modifiable factors that
	// contributed points, in breakdown order.
	ModifiableFactors []string `json:"modifiable_factors,omitempty"`

	// CategoryShift moves the categorized band up (positive) without
	// touching the raw numeric result. Used by PREVENT risk enhancers.
	CategoryShift int `json:"category_shift,omitempty"`
}

// CalculationRequest is one caller invocation of a calculator.
type CalculationRequest struct {
	CalculatorID CalculatorID `json:"calculator_id"`
	Inputs       Inputs       `json:"inputs"`
	ActorID      string       `json:"actor_id"`
	PatientID    string       `json:"patient_id,omitempty"`
	DedupKey     string       `json:"dedup_key,omitempty"`

	// CorrelationID ties the audit record to the originating request. It is
	// assigned by the transport layer, never by the caller.
	CorrelationID string `json:"-"`
}

// PatientLinked reports whether the calculation is tied to a patient record,
// which makes audit persistence a precondition of success.
func (r *CalculationRequest) PatientLinked() bool {
	return r.PatientID != ""
}

// CalculationResult is the immutable outcome of one calculation.
type CalculationResult struct {
	CalculatorID      CalculatorID       `json:"calculator_id"`
	CalculatorVersion string             `json:"calculator_version"`
	TotalScore        float64            `json:"total_score"`
	AdjustedScore     float64            `json:"adjusted_score"`
	Probabilities     map[string]float64 `json:"probabilities,omitempty"`
	RiskCategory      RiskCategory       `json:"risk_category"`
	RiskDescription   string             `json:"risk_description"`
	Recommendation    string             `json:"recommendation"`
	Breakdown         ScoreBreakdown     `json:"score_breakdown"`
	ModifiableFactors []string           `json:"modifiable_factors,omitempty"`
	CalculatedAt      time.Time          `json:"calculated_at"`
	AuditRecordID     string             `json:"audit_record_id,omitempty"`
}

// CalculatorInfo describes one registered calculator.
type CalculatorInfo struct {
	ID      CalculatorID `json:"id"`
	Version string       `json:"version"`
	Name    string       `json:"name"`
}

// AuditRecord captures one calculation's inputs, outputs, and provenance.
// Records are write-once; the engine never updates or deletes them.
type AuditRecord struct {
	ID                string          `json:"id"`
	CalculatorID      CalculatorID    `json:"calculator_id"`
	CalculatorVersion string          `json:"calculator_version"`
	InputSnapshot     json.RawMessage `json:"input_snapshot"`
	ResultSnapshot    json.RawMessage `json:"result_snapshot"`
	ActorID           string          `json:"actor_id"`
	PatientID         string          `json:"patient_id,omitempty"`
	CorrelationID     string          `json:"correlation_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
