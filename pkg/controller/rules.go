package controller

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raterudder/devicerudder/pkg/log"
)

// nonEssential returns the devices with a tier above essential, most
// dispensable first and then by name so the order is stable.
func (e *evaluation) nonEssential() []string {
	devices := make([]string, 0, len(e.input.DevicePriorities))
	for device := range e.input.DevicePriorities {
		if e.input.DevicePriorities.NonEssential(device) {
			devices = append(devices, device)
		}
	}
	slices.SortFunc(devices, func(a, b string) int {
		if c := cmp.Compare(e.input.DevicePriorities[b], e.input.DevicePriorities[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return devices
}

// energySaving turns off every non-essential device while the price is above
// the threshold.
func energySaving(_ context.Context, e *evaluation) (bool, string) {
	if e.input.CurrentPrice <= e.input.PriceThreshold {
		e.result.EnergySavingMode = false
		return false, fmt.Sprintf("Price OK (%.3f <= %.3f).", e.input.CurrentPrice, e.input.PriceThreshold)
	}
	e.result.EnergySavingMode = true
	for _, device := range e.nonEssential() {
		e.set(device, false)
	}
	return true, fmt.Sprintf("Price High (%.3f > %.3f). Saving energy.", e.input.CurrentPrice, e.input.PriceThreshold)
}

// nightMode keeps the always-on devices running and turns off the night-off
// devices while inside the night window. It only reports triggered inside the
// window, the always-on writes are listed in the reason either way.
func nightMode(ctx context.Context, e *evaluation) (bool, string) {
	keptOn := keepAlwaysOn(e)

	night, err := e.policy.NightWindow.Contains(e.input.CurrentTime)
	if err != nil {
		// the window is validated when the controller is created
		log.Ctx(ctx).WarnContext(ctx, "failed to check night window", slog.Any("error", err))
		return false, "Night window unavailable." + keptOn
	}
	if !night {
		return false, fmt.Sprintf("Daytime (%s).%s", e.input.CurrentTime.Format(time.Kitchen), keptOn)
	}
	for _, device := range e.policy.NightOffDevices {
		e.set(device, false)
	}
	return true, fmt.Sprintf("Night (%s).%s", e.input.CurrentTime.Format(time.Kitchen), keptOn)
}

// keepAlwaysOn turns on every always-on device and describes it for the stage
// reason.
func keepAlwaysOn(e *evaluation) string {
	if len(e.policy.AlwaysOnDevices) == 0 {
		return ""
	}
	for _, device := range e.policy.AlwaysOnDevices {
		e.set(device, true)
	}
	return fmt.Sprintf(" Always on: %v.", e.policy.AlwaysOnDevices)
}

// temperatureRegulation heats below the desired range, cools above it and
// turns both off within it.
func temperatureRegulation(_ context.Context, e *evaluation) (bool, string) {
	temp := e.input.CurrentTemperature
	desired := e.input.DesiredTemperature
	switch {
	case temp < desired.Min:
		e.set(e.policy.HeatingDevice, true)
		e.set(e.policy.CoolingDevice, false)
		e.result.TemperatureRegulationActive = true
		return true, fmt.Sprintf("Too Cold (%.1f < %.1f). Heating.", temp, desired.Min)
	case temp > desired.Max:
		e.set(e.policy.CoolingDevice, true)
		e.set(e.policy.HeatingDevice, false)
		e.result.TemperatureRegulationActive = true
		return true, fmt.Sprintf("Too Hot (%.1f > %.1f). Cooling.", temp, desired.Max)
	default:
		e.set(e.policy.HeatingDevice, false)
		e.set(e.policy.CoolingDevice, false)
		e.result.TemperatureRegulationActive = false
		return false, fmt.Sprintf("Comfortable (%.1f in %.1f-%.1f).", temp, desired.Min, desired.Max)
	}
}

// usageLimit sheds non-essential devices once usage reaches the limit. Only
// devices this stage turns off are credited against the usage.
func usageLimit(ctx context.Context, e *evaluation) (bool, string) {
	if e.input.TotalEnergyUsedToday < e.input.EnergyUsageLimit {
		return false, fmt.Sprintf("Usage OK (%.2f < %.2f).", e.input.TotalEnergyUsedToday, e.input.EnergyUsageLimit)
	}

	var shed int
	for _, device := range e.nonEssential() {
		if e.policy.ShedUntilUnderLimit && e.result.TotalEnergyUsed < e.input.EnergyUsageLimit {
			break
		}
		if on, ok := e.result.DeviceStatus.Get(device); ok && !on {
			log.Ctx(ctx).DebugContext(ctx, "device already off, not shedding", slog.String("device", device))
			continue
		}
		e.set(device, false)
		e.result.TotalEnergyUsed -= e.policy.ShedUnitKWH
		shed++
	}
	return true, fmt.Sprintf(
		"Usage Limit Reached (%.2f >= %.2f). Shed %d devices, usage now %.2f.",
		e.input.TotalEnergyUsedToday,
		e.input.EnergyUsageLimit,
		shed,
		e.result.TotalEnergyUsed,
	)
}

// scheduleOverride turns on every device scheduled for the current minute.
// Devices whose schedule doesn't match are left unaddressed.
func scheduleOverride(_ context.Context, e *evaluation) (bool, string) {
	now := e.input.CurrentTime.Truncate(time.Minute)
	var matched []string
	for _, sch := range e.input.Schedules {
		if sch.At.Truncate(time.Minute).Equal(now) {
			e.set(sch.Device, true)
			matched = append(matched, sch.Device)
		}
	}
	if len(matched) == 0 {
		return false, "No schedules due."
	}
	return true, fmt.Sprintf("Scheduled: %v.", matched)
}
