package valuation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
)

func TestSettingsHolder_RejectsInvalidAndKeepsPrevious(t *testing.T) {
	h, err := NewSettingsHolder(DefaultSettings())
	require.NoError(t, err)

	bad := DefaultSettings()
	bad.EntrySchedule = domain.EntrySchedule{0.5, 0.9}
	assert.ErrorIs(t, h.Store(bad), domain.ErrInvalidInput)

	bad = DefaultSettings()
	bad.Elasticity = 0
	assert.Error(t, h.Store(bad))

	assert.Equal(t, DefaultSettings(), h.Load())
}

func TestSettingsHolder_StoreCopiesSchedule(t *testing.T) {
	st := DefaultSettings()
	h, err := NewSettingsHolder(st)
	require.NoError(t, err)

	st.EntrySchedule[1] = 0.1
	assert.Equal(t, 0.67, h.Load().EntrySchedule[1])
}

func TestSettingsHolder_ConcurrentReload(t *testing.T) {
	h, err := NewSettingsHolder(DefaultSettings())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			st := DefaultSettings()
			st.Elasticity = float64(i%5 + 1)
			assert.NoError(t, h.Store(st))
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Load().Validate())
		}()
	}
	wg.Wait()
}
