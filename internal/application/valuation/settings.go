package valuation

import (
	"sync/atomic"

	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
)

// Settings are the engine constants that configuration can change at runtime.
type Settings struct {
	EntrySchedule domain.EntrySchedule
	Elasticity    float64
	// Defaults seed the NPV screen of new sessions and GET /defaults.
	Defaults domain.ValuationInputs
}

func DefaultSettings() Settings {
	return Settings{
		EntrySchedule: domain.DefaultEntrySchedule(),
		Elasticity:    domain.DefaultElasticity,
		Defaults:      domain.DefaultInputs(),
	}
}

// Validate checks every constant with the engine's own validation so a bad
// reload is rejected before it is visible.
func (s Settings) Validate() error {
	if err := s.EntrySchedule.Validate(); err != nil {
		return err
	}
	lp := domain.DefaultLaunchPriceInputs()
	lp.Elasticity = s.Elasticity
	if err := lp.Validate(); err != nil {
		return err
	}
	return s.Defaults.Validate()
}

// SettingsHolder publishes Settings to concurrent readers. A calculation
// reads one snapshot for its whole duration.
type SettingsHolder struct {
	v atomic.Pointer[Settings]
}

func NewSettingsHolder(s Settings) (*SettingsHolder, error) {
	h := &SettingsHolder{}
	if err := h.Store(s); err != nil {
		return nil, err
	}
	return h, nil
}

// Load returns the current snapshot.
func (h *SettingsHolder) Load() Settings {
	return *h.v.Load()
}

// Store validates s and replaces the snapshot. On error the previous
// snapshot stays in place.
func (h *SettingsHolder) Store(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.EntrySchedule = s.EntrySchedule.Clone()
	h.v.Store(&s)
	return nil
}
