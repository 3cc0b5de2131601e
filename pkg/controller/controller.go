package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raterudder/devicerudder/pkg/log"
	"github.com/raterudder/devicerudder/pkg/types"
)

// Controller evaluates device states from a snapshot of the home. It holds
// no state besides its Policy so a single Controller can be shared.
type Controller struct {
	policy types.Policy
}

// NewController creates a new Controller after validating the policy.
func NewController(policy types.Policy) (*Controller, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return &Controller{policy: policy}, nil
}

// evaluation is the state of a single call to Evaluate.
type evaluation struct {
	policy *types.Policy
	input  types.EvaluationInput
	result types.EvaluationResult
	report *types.StageReport
}

// set records the state of a device on behalf of the running stage,
// overwriting whatever an earlier stage decided.
func (e *evaluation) set(device string, on bool) {
	e.result.DeviceStatus[device] = on
	if e.report.Writes == nil {
		e.report.Writes = make(map[string]bool)
	}
	e.report.Writes[device] = on
}

// stage runs a single rule over the evaluation and reports whether it
// triggered along with a human readable reason.
type stage struct {
	name types.StageName
	run  func(ctx context.Context, e *evaluation) (bool, string)
}

// pipeline is ordered from lowest to highest precedence. The schedule stage
// must stay last so nothing overwrites it.
var pipeline = []stage{
	{types.StageEnergySaving, energySaving},
	{types.StageNightMode, nightMode},
	{types.StageTemperatureRegulation, temperatureRegulation},
	{types.StageUsageLimit, usageLimit},
	{types.StageSchedule, scheduleOverride},
}

// Stages returns the names of the rule stages in the order they are applied.
func Stages() []types.StageName {
	names := make([]types.StageName, len(pipeline))
	for i, s := range pipeline {
		names[i] = s.name
	}
	return names
}

// Evaluate runs every rule stage over the input and returns the resulting
// device states. It has no side effects and the same input always produces
// the same result.
func (c *Controller) Evaluate(ctx context.Context, input types.EvaluationInput) types.EvaluationResult {
	log.Ctx(ctx).DebugContext(ctx, "controller evaluate started",
		slog.Float64("currentPrice", input.CurrentPrice),
		slog.Float64("priceThreshold", input.PriceThreshold),
		slog.Time("currentTime", input.CurrentTime),
		slog.Float64("currentTemperature", input.CurrentTemperature),
		slog.Float64("energyUsed", input.TotalEnergyUsedToday),
		slog.Float64("energyLimit", input.EnergyUsageLimit),
		slog.Int("schedules", len(input.Schedules)),
	)

	e := &evaluation{
		policy: &c.policy,
		input:  input,
		result: types.EvaluationResult{
			DeviceStatus:    make(types.DeviceStates),
			TotalEnergyUsed: input.TotalEnergyUsedToday,
			Stages:          make([]types.StageReport, 0, len(pipeline)),
		},
	}
	for _, s := range pipeline {
		e.report = &types.StageReport{Stage: s.name}
		e.report.Triggered, e.report.Reason = s.run(ctx, e)
		log.Ctx(ctx).DebugContext(ctx, "stage evaluated",
			slog.String("stage", string(s.name)),
			slog.Bool("triggered", e.report.Triggered),
			slog.String("reason", e.report.Reason),
			slog.Any("writes", e.report.Writes),
		)
		e.result.Stages = append(e.result.Stages, *e.report)
	}
	e.report = nil

	log.Ctx(ctx).DebugContext(ctx, "controller evaluate finished",
		slog.Any("devices", e.result.DeviceStatus),
		slog.Bool("energySavingMode", e.result.EnergySavingMode),
		slog.Bool("temperatureRegulationActive", e.result.TemperatureRegulationActive),
		slog.Float64("totalEnergyUsed", e.result.TotalEnergyUsed),
	)
	return e.result
}
