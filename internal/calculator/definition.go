package calculator

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/domain"
)

// Calculator definitions are versioned external data: point tables, model
// coefficients, and category thresholds are published by medical bodies and
// revised over time. They are loaded at process start and never hand-derived
// by the engine. The files under coefficients/ are the embedded defaults; a
// deployment may override them with a directory of the same file names.

//go:embed coefficients/*.json
var defaultDefinitions embed.FS

// Definition is one calculator's versioned data artifact.
type Definition struct {
	ID      domain.CalculatorID `json:"id"`
	Version string              `json:"version"`
	Name    string              `json:"name"`
	Bands   []Band              `json:"category_bands"`
	Tables  json.RawMessage     `json:"tables,omitempty"`
}

// LoadDefinition reads the definition artifact for a calculator. When dir is
// non-empty and contains <id>.json that file wins; otherwise the embedded
// default is used.
func LoadDefinition(dir string, id domain.CalculatorID) (*Definition, error) {
	name := fmt.Sprintf("%s.json", id)

	var data []byte
	var err error
	if dir != "" {
		override := filepath.Join(dir, name)
		data, err = os.ReadFile(override)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading definition override %s: %w", override, err)
		}
	}
	if data == nil {
		data, err = defaultDefinitions.ReadFile("coefficients/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded definition for %s: %w", id, err)
		}
	}

	def := &Definition{}
	if err := json.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("parsing definition for %s: %w", id, err)
	}
	if def.ID != id {
		return nil, fmt.Errorf("definition identifier mismatch: want %s, got %s", id, def.ID)
	}
	if def.Version == "" {
		return nil, fmt.Errorf("definition for %s is missing a version", id)
	}
	return def, nil
}

// categoryTable builds the definition's threshold bands.
func (d *Definition) categoryTable() (*CategoryTable, error) {
	table, err := NewCategoryTable(d.Bands)
	if err != nil {
		return nil, fmt.Errorf("invalid category bands for %s: %w", d.ID, err)
	}
	return table, nil
}

// decodeTables unmarshals the instrument-specific coefficient payload.
func (d *Definition) decodeTables(dst interface{}) error {
	if len(d.Tables) == 0 {
		return fmt.Errorf("definition for %s has no coefficient tables", d.ID)
	}
	if err := json.Unmarshal(d.Tables, dst); err != nil {
		return fmt.Errorf("parsing coefficient tables for %s: %w", d.ID, err)
	}
	return nil
}

// NewDefaultRegistry loads the definition artifacts for all five instruments
// and registers them. Registration failures are returned to the caller,
// which treats them as fatal at boot.
func NewDefaultRegistry(definitionsDir string, logger *logrus.Logger) (*Registry, error) {
	registry := NewRegistry(logger)

	builders := []struct {
		id    domain.CalculatorID
		build func(*Definition) (domain.Calculator, error)
	}{
		{domain.CHA2DS2VASC, func(d *Definition) (domain.Calculator, error) { return NewCHA2DS2VASc(d) }},
		{domain.HASBLED, func(d *Definition) (domain.Calculator, error) { return NewHASBLED(d) }},
		{domain.GRACE, func(d *Definition) (domain.Calculator, error) { return NewGRACE(d) }},
		{domain.PREVENT, func(d *Definition) (domain.Calculator, error) { return NewPREVENT(d) }},
		{domain.EUROSCORE2, func(d *Definition) (domain.Calculator, error) { return NewEuroSCOREII(d) }},
	}

	for _, b := range builders {
		def, err := LoadDefinition(definitionsDir, b.id)
		if err != nil {
			return nil, err
		}
		calc, err := b.build(def)
		if err != nil {
			return nil, fmt.Errorf("building %s calculator: %w", b.id, err)
		}
		if err := registry.Register(calc); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
