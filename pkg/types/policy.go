package types

import (
	"errors"
	"fmt"
)

// Policy holds the tuning of the evaluator that is not part of a snapshot.
type Policy struct {
	// NightWindow is when the night-off devices are forced off.
	NightWindow DailyWindow `json:"nightWindow" yaml:"nightWindow"`
	// AlwaysOnDevices are forced on in every evaluation.
	AlwaysOnDevices []string `json:"alwaysOnDevices" yaml:"alwaysOnDevices"`
	// NightOffDevices are forced off inside the NightWindow.
	NightOffDevices []string `json:"nightOffDevices" yaml:"nightOffDevices"`

	HeatingDevice string `json:"heatingDevice" yaml:"heatingDevice"`
	CoolingDevice string `json:"coolingDevice" yaml:"coolingDevice"`

	// ShedUnitKWH is subtracted from the usage for every device that load
	// shedding turns off.
	ShedUnitKWH float64 `json:"shedUnitKWH" yaml:"shedUnitKWH"`
	// ShedUntilUnderLimit stops load shedding once usage is below the limit
	// instead of shedding every non-essential device.
	ShedUntilUnderLimit bool `json:"shedUntilUnderLimit" yaml:"shedUntilUnderLimit"`
}

// DefaultPolicy returns the policy used when nothing else is configured.
func DefaultPolicy() Policy {
	return Policy{
		NightWindow: DailyWindow{
			StartHour: 22,
			EndHour:   6,
		},
		AlwaysOnDevices: []string{"Security", "Refrigerator"},
		NightOffDevices: []string{"Lights", "Appliances"},
		HeatingDevice:   "Heating",
		CoolingDevice:   "Cooling",
		ShedUnitKWH:     1.0,
	}
}

// Validate checks the policy and resolves the night window location.
func (p *Policy) Validate() error {
	if err := p.NightWindow.Validate(); err != nil {
		return fmt.Errorf("invalid night window: %w", err)
	}
	if p.HeatingDevice == "" || p.CoolingDevice == "" {
		return errors.New("heating and cooling devices must be named")
	}
	if p.HeatingDevice == p.CoolingDevice {
		return fmt.Errorf("heating and cooling cannot be the same device: %s", p.HeatingDevice)
	}
	if p.ShedUnitKWH <= 0 {
		return fmt.Errorf("shed unit must be positive: %f", p.ShedUnitKWH)
	}
	return nil
}
