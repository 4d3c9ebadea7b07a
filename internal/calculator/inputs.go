package calculator

import (
	"fmt"
	"sort"

	"github.com/cardio-cdss-server/internal/domain"
)

// fieldKind enumerates the value types a clinical input field may take.
type fieldKind int

const (
	fieldBool fieldKind = iota
	fieldNumber
	fieldEnum
)

// fieldSpec declares one field of a calculator's closed input set together
// with its domain constraint.
type fieldSpec struct {
	name     string
	kind     fieldKind
	required bool
	min, max float64 // numeric bounds, inclusive
	enum     []string
}

// fieldSet is the closed set of named fields a calculator accepts.
type fieldSet []fieldSpec

// validate checks every declared field against its constraint and rejects
// fields outside the closed set. Violations are reported in declaration
// order so the report is deterministic. Missing required fields are reported
// as missing, never defaulted.
func (fs fieldSet) validate(in domain.Inputs) *domain.ValidationError {
	verr := domain.NewValidationError()

	for _, spec := range fs {
		raw, present := in[spec.name]
		if !present {
			if spec.required {
				verr.Add(spec.name, domain.RuleRequired, "field is required", nil)
			}
			continue
		}

		switch spec.kind {
		case fieldBool:
			if _, ok := raw.(bool); !ok {
				verr.Add(spec.name, domain.RuleType, "expected a boolean", raw)
			}
		case fieldNumber:
			v, ok := numericValue(raw)
			if !ok {
				verr.Add(spec.name, domain.RuleType, "expected a number", raw)
				continue
			}
			if v < spec.min || v > spec.max {
				verr.Add(spec.name, domain.RuleRange,
					fmt.Sprintf("must be between %g and %g", spec.min, spec.max), raw)
			}
		case fieldEnum:
			s, ok := raw.(string)
			if !ok {
				verr.Add(spec.name, domain.RuleType, "expected a string", raw)
				continue
			}
			if !containsString(spec.enum, s) {
				verr.Add(spec.name, domain.RuleEnum,
					fmt.Sprintf("must be one of %v", spec.enum), raw)
			}
		}
	}

	// Reject fields outside the closed set, in sorted order for determinism.
	var unknown []string
	for name := range in {
		if !fs.declares(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		verr.Add(name, domain.RuleUnknown, "field is not part of this calculator's input", in[name])
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

func (fs fieldSet) declares(name string) bool {
	for _, spec := range fs {
		if spec.name == name {
			return true
		}
	}
	return false
}

// numericValue coerces the JSON and test representations of a number.
func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func containsString(set []string, s string) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

// Accessors used after validation has passed. They assume well-typed input.

func numberField(in domain.Inputs, name string) float64 {
	v, _ := numericValue(in[name])
	return v
}

func boolField(in domain.Inputs, name string) bool {
	v, _ := in[name].(bool)
	return v
}

func enumField(in domain.Inputs, name string) string {
	v, _ := in[name].(string)
	return v
}

func hasField(in domain.Inputs, name string) bool {
	_, ok := in[name]
	return ok
}
