package types

import (
	"errors"
	"fmt"
	"time"
)

// Price represents the cost of electricity in a time interval.
type Price struct {
	Provider      string    `json:"provider"`
	TSStart       time.Time `json:"tsStart"`
	TSEnd         time.Time `json:"tsEnd"`
	DollarsPerKWH float64   `json:"dollarsPerKWH"`
}

// DailyWindow is a recurring time-of-day interval. The start is inclusive and
// the end is exclusive. When the end is before the start the window wraps past
// midnight, so 22:00-06:00 contains 23:30 and 00:30 but not 06:00.
type DailyWindow struct {
	StartHour     int            `json:"startHour" yaml:"startHour"`
	StartMinute   int            `json:"startMinute" yaml:"startMinute"`
	EndHour       int            `json:"endHour" yaml:"endHour"`
	EndMinute     int            `json:"endMinute" yaml:"endMinute"`
	DaysOfTheWeek []time.Weekday `json:"daysOfTheWeek,omitempty" yaml:"daysOfTheWeek,omitempty"`
	Location      string         `json:"location,omitempty" yaml:"location,omitempty"`
	LocationPtr   *time.Location `json:"-" yaml:"-"`
}

// Validate checks the bounds of the window and resolves Location.
func (w *DailyWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.StartMinute < 0 || w.StartMinute > 59 {
		return fmt.Errorf("invalid window start %02d:%02d", w.StartHour, w.StartMinute)
	}
	if w.EndHour < 0 || w.EndHour > 24 || w.EndMinute < 0 || w.EndMinute > 59 || (w.EndHour == 24 && w.EndMinute != 0) {
		return fmt.Errorf("invalid window end %02d:%02d", w.EndHour, w.EndMinute)
	}
	if w.Location != "" && w.LocationPtr == nil {
		loc, err := time.LoadLocation(w.Location)
		if err != nil {
			return fmt.Errorf("failed to load location %s: %w", w.Location, err)
		}
		w.LocationPtr = loc
	}
	return nil
}

// Contains checks if a time is within the window.
func (w *DailyWindow) Contains(t time.Time) (bool, error) {
	if w.LocationPtr != nil {
		t = t.In(w.LocationPtr)
	} else if w.Location != "" {
		loc, err := time.LoadLocation(w.Location)
		if err != nil {
			return false, fmt.Errorf("failed to load location %s: %w", w.Location, err)
		}
		t = t.In(loc)
	}

	start := w.StartHour*60 + w.StartMinute
	end := w.EndHour*60 + w.EndMinute
	m := t.Hour()*60 + t.Minute()

	// the day of the week belongs to the day the window started on
	day := t.Weekday()
	var inside bool
	switch {
	case start < end:
		inside = m >= start && m < end
	case start > end:
		inside = m >= start || m < end
		if inside && m < end {
			day = (day + 6) % 7
		}
	default:
		// empty window
		inside = false
	}
	if !inside {
		return false, nil
	}

	if len(w.DaysOfTheWeek) > 0 {
		var found bool
		for _, d := range w.DaysOfTheWeek {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

// TOUPeriod is a time-of-use rate that applies during a daily window.
type TOUPeriod struct {
	DailyWindow
	DollarsPerKWH float64 `json:"dollarsPerKWH"`
	Description   string  `json:"description"`
}

// ErrNoRate is returned when no price information is configured.
var ErrNoRate = errors.New("no rate configured")
