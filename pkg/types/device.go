package types

import "time"

// EssentialTier is the priority tier of devices that are never shed.
const EssentialTier = 1

// DevicePriorities maps a device name to its priority tier. 1 is essential,
// larger values are more dispensable.
type DevicePriorities map[string]int

// NonEssential reports whether the device has a tier and that tier is above
// EssentialTier. Devices missing from the map are never non-essential.
func (p DevicePriorities) NonEssential(device string) bool {
	tier, ok := p[device]
	return ok && tier > EssentialTier
}

// DeviceSchedule is a one-shot request to turn a device on at a given minute.
type DeviceSchedule struct {
	Device string    `json:"device"`
	At     time.Time `json:"at"`
}

// DeviceStates holds the on/off state of every device that a rule addressed
// during an evaluation. A missing key means no rule touched the device, which
// is not the same as off.
type DeviceStates map[string]bool

// Get returns the state of the device and whether any rule set it.
func (d DeviceStates) Get(device string) (on bool, ok bool) {
	on, ok = d[device]
	return on, ok
}

// TemperatureRange is the inclusive range the home should be kept within.
type TemperatureRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether temp is within the inclusive range.
func (r TemperatureRange) Contains(temp float64) bool {
	return temp >= r.Min && temp <= r.Max
}
