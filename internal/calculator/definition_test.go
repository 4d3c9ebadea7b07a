package calculator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-cdss-server/internal/domain"
)

func TestLoadDefinition_EmbeddedDefaults(t *testing.T) {
	for _, id := range []domain.CalculatorID{
		domain.CHA2DS2VASC, domain.HASBLED, domain.GRACE, domain.PREVENT, domain.EUROSCORE2,
	} {
		def, err := LoadDefinition("", id)
		require.NoError(t, err, "definition for %s", id)
		assert.Equal(t, id, def.ID)
		assert.NotEmpty(t, def.Version)
		assert.NotEmpty(t, def.Bands)
	}
}

func TestLoadDefinition_DirectoryOverrideWins(t *testing.T) {
	dir := t.TempDir()
	override := `{
		"id": "hasbled",
		"version": "override.9.9",
		"name": "HAS-BLED",
		"category_bands": [
			{"lower": 0, "upper": 3, "category": "LOW"},
			{"lower": 3, "upper": 4, "category": "MODERATE"},
			{"lower": 4, "category": "HIGH"}
		],
		"tables": {"bleed_risk": {"0": "1.13"}}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hasbled.json"), []byte(override), 0644))

	def, err := LoadDefinition(dir, domain.HASBLED)
	require.NoError(t, err)
	assert.Equal(t, "override.9.9", def.Version)

	// Calculators without an override file still load the embedded default.
	def, err = LoadDefinition(dir, domain.GRACE)
	require.NoError(t, err)
	assert.Equal(t, domain.GRACE, def.ID)
}

func TestLoadDefinition_RejectsIdentifierMismatch(t *testing.T) {
	dir := t.TempDir()
	wrong := `{"id": "grace", "version": "1.0", "category_bands": [{"lower": 0, "category": "LOW"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hasbled.json"), []byte(wrong), 0644))

	_, err := LoadDefinition(dir, domain.HASBLED)
	assert.ErrorContains(t, err, "identifier mismatch")
}

func TestLoadDefinition_RejectsMissingVersion(t *testing.T) {
	dir := t.TempDir()
	unversioned := `{"id": "hasbled", "category_bands": [{"lower": 0, "category": "LOW"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hasbled.json"), []byte(unversioned), 0644))

	_, err := LoadDefinition(dir, domain.HASBLED)
	assert.ErrorContains(t, err, "missing a version")
}
