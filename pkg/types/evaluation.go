package types

import "time"

// EvaluationInput is the snapshot a single evaluation runs over. Nothing in it
// is modified by the evaluator.
type EvaluationInput struct {
	CurrentPrice         float64          `json:"currentPrice"`
	PriceThreshold       float64          `json:"priceThreshold"`
	DevicePriorities     DevicePriorities `json:"devicePriorities"`
	CurrentTime          time.Time        `json:"currentTime"`
	CurrentTemperature   float64          `json:"currentTemperature"`
	DesiredTemperature   TemperatureRange `json:"desiredTemperature"`
	EnergyUsageLimit     float64          `json:"energyUsageLimit"`
	TotalEnergyUsedToday float64          `json:"totalEnergyUsedToday"`
	Schedules            []DeviceSchedule `json:"schedules"`
}

// StageName identifies a rule stage of the evaluator.
type StageName string

const (
	StageEnergySaving          StageName = "energySaving"
	StageNightMode             StageName = "nightMode"
	StageTemperatureRegulation StageName = "temperatureRegulation"
	StageUsageLimit            StageName = "usageLimit"
	StageSchedule              StageName = "schedule"
)

// StageReport describes what a single stage did during an evaluation.
type StageReport struct {
	Stage     StageName       `json:"stage"`
	Triggered bool            `json:"triggered"`
	Writes    map[string]bool `json:"writes,omitempty"`
	Reason    string          `json:"reason"`
}

// EvaluationResult is the outcome of evaluating an EvaluationInput.
type EvaluationResult struct {
	DeviceStatus                DeviceStates `json:"deviceStatus"`
	EnergySavingMode            bool         `json:"energySavingMode"`
	TemperatureRegulationActive bool         `json:"temperatureRegulationActive"`
	// TotalEnergyUsed is the input usage minus any credit from load shedding.
	TotalEnergyUsed float64       `json:"totalEnergyUsed"`
	Stages          []StageReport `json:"stages"`
}

// Decision is a recorded evaluation.
type Decision struct {
	Timestamp time.Time        `json:"timestamp"`
	Input     EvaluationInput  `json:"input"`
	Result    EvaluationResult `json:"result"`
}
