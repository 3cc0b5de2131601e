package types

import "fmt"

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

// HomeIDDefault is used when a deployment only manages a single home.
const HomeIDDefault = "default"

const (
	UtilityRateFixed = "fixed"
	UtilityRateTOU   = "tou"
)

// Settings represents the household configuration stored in the database.
// These are dynamic settings that can be changed without redeploying.
type Settings struct {
	// Evaluate but don't record decisions
	DryRun bool `json:"dryRun"`

	Policy Policy `json:"policy"`

	// Device Settings
	DevicePriorities DevicePriorities `json:"devicePriorities"`
	Schedules        []DeviceSchedule `json:"schedules"`

	// Price Settings
	// Energy saving mode is entered when the price is above this amount (in $/kWh)
	PriceThresholdDollarsPerKWH float64 `json:"priceThresholdDollarsPerKWH"`

	// Comfort Settings
	DesiredTemperature TemperatureRange `json:"desiredTemperature"`

	// Usage Settings
	// Non-essential devices are shed once usage today reaches this amount
	EnergyUsageLimitKWH float64 `json:"energyUsageLimitKWH"`

	// Utility Settings
	UtilityRate        string      `json:"utilityRate"`
	FixedDollarsPerKWH float64     `json:"fixedDollarsPerKWH"`
	TOUPeriods         []TOUPeriod `json:"touPeriods"`
}

// DefaultDevicePriorities returns the priorities of a typical home.
func DefaultDevicePriorities() DevicePriorities {
	return DevicePriorities{
		"Heating":      1,
		"Cooling":      1,
		"Security":     1,
		"Refrigerator": 1,
		"Lights":       2,
		"Appliances":   3,
	}
}

// Validate checks that the settings can be used for an evaluation.
func (s *Settings) Validate() error {
	if err := s.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	for device, tier := range s.DevicePriorities {
		if device == "" {
			return fmt.Errorf("device priorities cannot contain an empty device name")
		}
		if tier < EssentialTier {
			return fmt.Errorf("invalid priority for %s: %d", device, tier)
		}
	}
	for _, sch := range s.Schedules {
		if sch.Device == "" {
			return fmt.Errorf("schedule at %s is missing a device", sch.At)
		}
	}
	if s.DesiredTemperature.Min > s.DesiredTemperature.Max {
		return fmt.Errorf("desired temperature min (%.1f) is above max (%.1f)", s.DesiredTemperature.Min, s.DesiredTemperature.Max)
	}
	switch s.UtilityRate {
	case UtilityRateFixed:
	case UtilityRateTOU:
		if len(s.TOUPeriods) == 0 {
			return fmt.Errorf("tou rate requires at least one period")
		}
		for i := range s.TOUPeriods {
			if err := s.TOUPeriods[i].Validate(); err != nil {
				return fmt.Errorf("invalid tou period %q: %w", s.TOUPeriods[i].Description, err)
			}
		}
	default:
		return fmt.Errorf("unknown utility rate: %s", s.UtilityRate)
	}
	return nil
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	// Loop through versions to apply migrations sequentially
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.Policy.HeatingDevice == "" && s.Policy.CoolingDevice == "" {
				s.Policy = DefaultPolicy()
				migrated = true
			}
			if s.DevicePriorities == nil {
				s.DevicePriorities = DefaultDevicePriorities()
				migrated = true
			}
			if s.DesiredTemperature == (TemperatureRange{}) {
				s.DesiredTemperature = TemperatureRange{Min: 20, Max: 24}
				migrated = true
			}
			if s.EnergyUsageLimitKWH == 0 {
				s.EnergyUsageLimitKWH = 30
				migrated = true
			}
			if s.PriceThresholdDollarsPerKWH == 0 {
				s.PriceThresholdDollarsPerKWH = 0.20
				migrated = true
			}
		case 2:
			// version 2: add shed unit
			if s.Policy.ShedUnitKWH == 0 {
				s.Policy.ShedUnitKWH = 1.0
				migrated = true
			}
		case 3:
			// version 3: add utility rate, everyone before this had a fixed price
			if s.UtilityRate == "" {
				s.UtilityRate = UtilityRateFixed
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
