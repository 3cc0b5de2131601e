package utility

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raterudder/devicerudder/pkg/types"
)

// Utility defines the interface for a utility rate.
type Utility interface {
	// PriceAt returns the price of electricity at the given time.
	PriceAt(ctx context.Context, t time.Time) (types.Price, error)

	// ApplySettings updates the rate using the provided home settings.
	ApplySettings(ctx context.Context, settings types.Settings) error
}

// Map manages utility rates per home.
type Map struct {
	mu              sync.Mutex
	defaultLocation *time.Location
	utilities       map[string]Utility
}

// NewMap creates a new Utility Map.
func NewMap() *Map {
	return &Map{
		utilities: make(map[string]Utility),
	}
}

// Home returns the utility rate for the given home based on settings.
func (m *Map) Home(ctx context.Context, homeID string, settings types.Settings) (Utility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := homeID + "/" + settings.UtilityRate
	if u, ok := m.utilities[key]; ok {
		if err := u.ApplySettings(ctx, settings); err != nil {
			return nil, err
		}
		return u, nil
	}

	var u Utility
	switch settings.UtilityRate {
	case types.UtilityRateFixed:
		u = &fixedRate{}
	case types.UtilityRateTOU:
		u = &genericTOU{defaultLocation: m.defaultLocation}
	default:
		return nil, fmt.Errorf("unknown utility rate: %s", settings.UtilityRate)
	}
	if err := u.ApplySettings(ctx, settings); err != nil {
		return nil, err
	}
	m.utilities[key] = u
	return u, nil
}

// SetUtility sets a mock rate for testing.
func (m *Map) SetUtility(homeID, rate string, u Utility) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utilities[homeID+"/"+rate] = u
}

// fixedRate charges the same price at all times.
type fixedRate struct {
	mu            sync.Mutex
	dollarsPerKWH float64
}

func (f *fixedRate) ApplySettings(_ context.Context, settings types.Settings) error {
	if settings.FixedDollarsPerKWH < 0 {
		return fmt.Errorf("fixed price cannot be negative: %f", settings.FixedDollarsPerKWH)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dollarsPerKWH = settings.FixedDollarsPerKWH
	return nil
}

func (f *fixedRate) PriceAt(_ context.Context, t time.Time) (types.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := t.Truncate(time.Hour)
	return types.Price{
		Provider:      types.UtilityRateFixed,
		TSStart:       start,
		TSEnd:         start.Add(time.Hour),
		DollarsPerKWH: f.dollarsPerKWH,
	}, nil
}
