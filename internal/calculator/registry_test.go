package calculator

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-cdss-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewDefaultRegistry_RegistersAllCalculators(t *testing.T) {
	registry, err := NewDefaultRegistry("", testLogger())
	require.NoError(t, err)

	infos := registry.List()
	require.Len(t, infos, 5)

	ids := make([]domain.CalculatorID, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
		assert.NotEmpty(t, info.Version, "calculator %s must carry a version", info.ID)
	}
	assert.Equal(t, []domain.CalculatorID{
		domain.CHA2DS2VASC,
		domain.EUROSCORE2,
		domain.GRACE,
		domain.HASBLED,
		domain.PREVENT,
	}, ids)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	registry, err := NewDefaultRegistry("", testLogger())
	require.NoError(t, err)

	_, err = registry.Resolve("framingham")

	var uerr *domain.UnknownCalculatorError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, domain.CalculatorID("framingham"), uerr.CalculatorID)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry, err := NewDefaultRegistry("", testLogger())
	require.NoError(t, err)

	calc, err := registry.Resolve(domain.HASBLED)
	require.NoError(t, err)

	assert.Error(t, registry.Register(calc))
}

func TestRegistry_SwapReplacesWholeSet(t *testing.T) {
	registry, err := NewDefaultRegistry("", testLogger())
	require.NoError(t, err)

	hasbled, err := registry.Resolve(domain.HASBLED)
	require.NoError(t, err)

	require.NoError(t, registry.Swap([]domain.Calculator{hasbled}))

	assert.Len(t, registry.List(), 1)
	_, err = registry.Resolve(domain.GRACE)
	assert.Error(t, err)
}

func TestRegistry_SwapRejectsDuplicates(t *testing.T) {
	registry, err := NewDefaultRegistry("", testLogger())
	require.NoError(t, err)

	hasbled, err := registry.Resolve(domain.HASBLED)
	require.NoError(t, err)

	err = registry.Swap([]domain.Calculator{hasbled, hasbled})
	assert.Error(t, err)
	// Failed swap leaves the current set untouched.
	assert.Len(t, registry.List(), 5)
}

func TestRegistry_ConcurrentReadsDuringSwap(t *testing.T) {
	registry, err := NewDefaultRegistry("", testLogger())
	require.NoError(t, err)

	hasbled, err := registry.Resolve(domain.HASBLED)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Readers must always see a full set, never a partial one.
				n := len(registry.List())
				if n != 1 && n != 5 {
					t.Errorf("observed partial registry of size %d", n)
					return
				}
			}
		}()
	}

	full := make([]domain.Calculator, 0, 5)
	for _, info := range registry.List() {
		calc, err := registry.Resolve(info.ID)
		require.NoError(t, err)
		full = append(full, calc)
	}

	for i := 0; i < 100; i++ {
		require.NoError(t, registry.Swap([]domain.Calculator{hasbled}))
		require.NoError(t, registry.Swap(full))
	}

	close(stop)
	wg.Wait()
}
