package utility

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raterudder/devicerudder/pkg/types"
)

// genericTOU implements a Time-Of-Use rate from the periods in the settings.
// Prices of overlapping periods are added together.
type genericTOU struct {
	mu              sync.Mutex
	periods         []types.TOUPeriod
	defaultLocation *time.Location
}

func (t *genericTOU) ApplySettings(_ context.Context, settings types.Settings) error {
	if len(settings.TOUPeriods) == 0 {
		return fmt.Errorf("tou rate: %w", types.ErrNoRate)
	}
	periods := make([]types.TOUPeriod, len(settings.TOUPeriods))
	for i, p := range settings.TOUPeriods {
		// If the period has no location, give it the default location to evaluate correctly
		if p.LocationPtr == nil && p.Location == "" && t.defaultLocation != nil {
			p.LocationPtr = t.defaultLocation
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid tou period %q: %w", p.Description, err)
		}
		periods[i] = p
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.periods = periods
	return nil
}

func (t *genericTOU) PriceAt(_ context.Context, target time.Time) (types.Price, error) {
	t.mu.Lock()
	periods := t.periods
	t.mu.Unlock()

	// Truncate to the start of the minute since periods have minute resolution
	start := target.Truncate(time.Minute)

	p := types.Price{
		Provider: types.UtilityRateTOU,
		TSStart:  start,
		TSEnd:    start.Add(time.Minute),
	}

	for _, period := range periods {
		contains, err := period.Contains(p.TSStart)
		if err != nil {
			return p, err
		}
		if contains {
			p.DollarsPerKWH += period.DollarsPerKWH
		}
	}

	return p, nil
}
