package calculator

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/domain"
)

// Registry is the process-wide lookup from calculator identifier to
// calculator instance. It is populated once at boot and read-only afterward:
// the backing map is never mutated in place, so the read path needs no
// locking. Register and Swap install a fresh map via atomic pointer
// replacement; concurrent readers see either the old full set or the new
// one, never a partial mix.
type Registry struct {
	logger *logrus.Logger
	m      atomic.Pointer[map[domain.CalculatorID]domain.Calculator]
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	r := &Registry{logger: logger}
	empty := make(map[domain.CalculatorID]domain.Calculator)
	r.m.Store(&empty)
	return r
}

// Register adds a calculator during boot. A duplicate identifier is an
// error; the caller treats it as fatal.
func (r *Registry) Register(calc domain.Calculator) error {
	info := calc.Info()
	current := *r.m.Load()
	if _, exists := current[info.ID]; exists {
		return fmt.Errorf("duplicate calculator identifier: %s", info.ID)
	}

	next := make(map[domain.CalculatorID]domain.Calculator, len(current)+1)
	for id, c := range current {
		next[id] = c
	}
	next[info.ID] = calc
	r.m.Store(&next)

	r.logger.WithFields(logrus.Fields{
		"calculator_id": info.ID,
		"version":       info.Version,
	}).Info("Registered calculator")
	return nil
}

// Resolve looks up a calculator by identifier.
func (r *Registry) Resolve(id domain.CalculatorID) (domain.Calculator, error) {
	calc, ok := (*r.m.Load())[id]
	if !ok {
		return nil, &domain.UnknownCalculatorError{CalculatorID: id}
	}
	return calc, nil
}

// List returns all registered identifiers and versions, sorted by identifier
// for stable output.
func (r *Registry) List() []domain.CalculatorInfo {
	current := *r.m.Load()
	infos := make([]domain.CalculatorInfo, 0, len(current))
	for _, calc := range current {
		infos = append(infos, calc.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Swap atomically replaces the entire calculator set, for definition hot
// reloads. The incoming set must be internally consistent; duplicates fail
// the whole swap and leave the current set untouched.
func (r *Registry) Swap(calcs []domain.Calculator) error {
	next := make(map[domain.CalculatorID]domain.Calculator, len(calcs))
	for _, calc := range calcs {
		info := calc.Info()
		if _, exists := next[info.ID]; exists {
			return fmt.Errorf("duplicate calculator identifier in swap: %s", info.ID)
		}
		next[info.ID] = calc
	}
	r.m.Store(&next)
	r.logger.WithField("calculators", len(next)).Info("Swapped calculator registry")
	return nil
}
