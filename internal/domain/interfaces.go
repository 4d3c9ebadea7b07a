package domain

import (
	"context"
)

// Calculator is the capability contract every clinical instrument implements.
// All operations are pure: given identical inputs they return byte-identical
// outputs, with no hidden state and no dependence on the wall clock.
type Calculator interface {
	// Info identifies the instrument and its definition version.
	Info() CalculatorInfo

	// Validate checks every field against its domain constraint and returns
	// a complete report of violations, or nil when the input is acceptable.
	// It never mutates the input and never silently defaults a missing field.
	Validate(in Inputs) *ValidationError

	// Compute maps a validated input to its score breakdown and numeric
	// result. It must be order-independent with respect to input field order.
	Compute(in Inputs) (*Computation, error)

	// Categorize maps the computation's authoritative numeric result to a
	// discrete risk category using half-open interval semantics, clamping
	// values outside the defined bands to the nearest bucket.
	Categorize(comp *Computation) (RiskCategory, error)

	// Describe renders the instrument's risk description for the numeric
	// result, e.g. an annualized stroke-risk percentage.
	Describe(comp *Computation) string

	// Recommend produces the deterministic recommendation text for a
	// category, optionally informed by modifiable factors in the breakdown.
	Recommend(category RiskCategory, comp *Computation) string
}

// CalculatorRegistry is the process-wide, read-only lookup from identifier to
// calculator. It is populated at boot; any reload swaps the whole set
// atomically so readers never observe a partial mix of definitions.
type CalculatorRegistry interface {
	Resolve(id CalculatorID) (Calculator, error)
	List() []CalculatorInfo
}

// AuditSink records calculation audit records to durable, append-only
// storage.
type AuditSink interface {
	Record(ctx context.Context, record *AuditRecord) error
}

// AuditReader is the query side of the audit log.
type AuditReader interface {
	GetRecord(ctx context.Context, id string) (*AuditRecord, error)
	ListRecordsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AuditRecord, error)
}
