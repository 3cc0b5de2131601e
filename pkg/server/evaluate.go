package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/raterudder/devicerudder/pkg/controller"
	"github.com/raterudder/devicerudder/pkg/log"
	"github.com/raterudder/devicerudder/pkg/types"
)

// EvaluateRequest carries the live readings for an evaluation. Every other
// field overrides the stored settings when present.
type EvaluateRequest struct {
	CurrentTemperature   *float64 `json:"currentTemperature"`
	TotalEnergyUsedToday *float64 `json:"totalEnergyUsedToday"`

	CurrentPrice       *float64                `json:"currentPrice,omitempty"`
	PriceThreshold     *float64                `json:"priceThreshold,omitempty"`
	DevicePriorities   types.DevicePriorities  `json:"devicePriorities,omitempty"`
	CurrentTime        *time.Time              `json:"currentTime,omitempty"`
	DesiredTemperature *types.TemperatureRange `json:"desiredTemperature,omitempty"`
	EnergyUsageLimit   *float64                `json:"energyUsageLimit,omitempty"`
	Schedules          []types.DeviceSchedule  `json:"schedules,omitempty"`
}

// buildInput fills in everything the request left out from the settings and
// the home's utility rate.
func (s *Server) buildInput(ctx context.Context, req EvaluateRequest, settings types.Settings, now time.Time) (types.EvaluationInput, error) {
	input := types.EvaluationInput{
		CurrentTime:          now,
		CurrentTemperature:   *req.CurrentTemperature,
		TotalEnergyUsedToday: *req.TotalEnergyUsedToday,
		PriceThreshold:       settings.PriceThresholdDollarsPerKWH,
		DevicePriorities:     settings.DevicePriorities,
		DesiredTemperature:   settings.DesiredTemperature,
		EnergyUsageLimit:     settings.EnergyUsageLimitKWH,
		Schedules:            settings.Schedules,
	}
	if req.CurrentTime != nil {
		input.CurrentTime = req.CurrentTime.In(now.Location())
	}
	if req.PriceThreshold != nil {
		input.PriceThreshold = *req.PriceThreshold
	}
	if req.DevicePriorities != nil {
		input.DevicePriorities = req.DevicePriorities
	}
	if req.DesiredTemperature != nil {
		input.DesiredTemperature = *req.DesiredTemperature
	}
	if req.EnergyUsageLimit != nil {
		input.EnergyUsageLimit = *req.EnergyUsageLimit
	}
	if req.Schedules != nil {
		input.Schedules = req.Schedules
	}

	if req.CurrentPrice != nil {
		input.CurrentPrice = *req.CurrentPrice
		return input, nil
	}
	u, err := s.utilities.Home(ctx, s.homeID, settings)
	if err != nil {
		return input, fmt.Errorf("failed to get utility rate: %w", err)
	}
	price, err := u.PriceAt(ctx, input.CurrentTime)
	if err != nil {
		return input, fmt.Errorf("failed to get current price: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "priced evaluation", slog.String("provider", price.Provider), slog.Float64("dollarsPerKWH", price.DollarsPerKWH))
	input.CurrentPrice = price.DollarsPerKWH
	return input, nil
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode evaluate request", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CurrentTemperature == nil {
		writeJSONError(w, "currentTemperature is required", http.StatusBadRequest)
		return
	}
	if req.TotalEnergyUsedToday == nil {
		writeJSONError(w, "totalEnergyUsedToday is required", http.StatusBadRequest)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	ctrl, err := controller.NewController(settings.Policy)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "stored policy is invalid", slog.Any("error", err))
		writeJSONError(w, "stored policy is invalid", http.StatusInternalServerError)
		return
	}

	input, err := s.buildInput(ctx, req, settings, now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build evaluation input", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := ctrl.Evaluate(ctx, input)
	s.metrics.observeEvaluation(result)
	log.Ctx(ctx).InfoContext(
		ctx,
		"evaluated",
		slog.Bool("energySavingMode", result.EnergySavingMode),
		slog.Bool("temperatureRegulationActive", result.TemperatureRegulationActive),
		slog.Float64("totalEnergyUsed", result.TotalEnergyUsed),
		slog.Int("devices", len(result.DeviceStatus)),
	)

	if settings.DryRun {
		log.Ctx(ctx).InfoContext(ctx, "dry run, not recording decision")
	} else if err := s.storage.InsertDecision(ctx, s.homeID, types.Decision{
		Timestamp: now,
		Input:     input,
		Result:    result,
	}); err != nil {
		// the result is still valid so don't fail the request
		log.Ctx(ctx).ErrorContext(ctx, "failed to insert decision", slog.Any("error", err))
		s.metrics.recordFailures.Inc()
	}

	writeJSON(w, result)
}
