package controller

import (
	"context"
	"testing"
	"time"

	"github.com/raterudder/devicerudder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDevice(t *testing.T, states types.DeviceStates, device string, want bool) {
	t.Helper()
	on, ok := states.Get(device)
	if assert.True(t, ok, "%s should have been addressed", device) {
		assert.Equal(t, want, on, "%s state", device)
	}
}

func TestEvaluate(t *testing.T) {
	c, err := NewController(types.DefaultPolicy())
	require.NoError(t, err)
	ctx := context.Background()

	baseInput := func() types.EvaluationInput {
		return types.EvaluationInput{
			CurrentPrice:         0.15,
			PriceThreshold:       0.20,
			DevicePriorities:     types.DefaultDevicePriorities(),
			CurrentTime:          time.Date(2024, 10, 1, 14, 0, 0, 0, time.UTC),
			CurrentTemperature:   22.0,
			DesiredTemperature:   types.TemperatureRange{Min: 20.0, Max: 24.0},
			EnergyUsageLimit:     30.0,
			TotalEnergyUsedToday: 25.0,
		}
	}

	t.Run("Saving + Night + Cooling + Schedule", func(t *testing.T) {
		input := baseInput()
		input.CurrentPrice = 0.25
		input.CurrentTime = time.Date(2024, 10, 1, 23, 30, 0, 0, time.UTC)
		input.CurrentTemperature = 26.0
		input.TotalEnergyUsedToday = 12.0
		input.Schedules = []types.DeviceSchedule{
			{Device: "Oven", At: time.Date(2024, 10, 1, 23, 30, 0, 0, time.UTC)},
			{Device: "TV", At: time.Date(2024, 10, 1, 23, 45, 0, 0, time.UTC)},
		}

		result := c.Evaluate(ctx, input)

		assertDevice(t, result.DeviceStatus, "Cooling", true)
		assertDevice(t, result.DeviceStatus, "Lights", false)
		assertDevice(t, result.DeviceStatus, "Appliances", false)
		assertDevice(t, result.DeviceStatus, "Security", true)
		assertDevice(t, result.DeviceStatus, "Refrigerator", true)
		assertDevice(t, result.DeviceStatus, "Oven", true)
		_, ok := result.DeviceStatus.Get("TV")
		assert.False(t, ok, "TV is not scheduled for now")

		assert.True(t, result.EnergySavingMode)
		assert.True(t, result.TemperatureRegulationActive)
		assert.InDelta(t, 12.0, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Low Temperature + Exceeding Usage", func(t *testing.T) {
		input := baseInput()
		input.CurrentPrice = 0.05
		input.CurrentTime = time.Date(2024, 10, 1, 11, 23, 0, 0, time.UTC)
		input.CurrentTemperature = 15.0
		input.TotalEnergyUsedToday = 31.0

		result := c.Evaluate(ctx, input)

		assertDevice(t, result.DeviceStatus, "Heating", true)
		assertDevice(t, result.DeviceStatus, "Cooling", false)
		assertDevice(t, result.DeviceStatus, "Lights", false)
		assertDevice(t, result.DeviceStatus, "Appliances", false)
		assertDevice(t, result.DeviceStatus, "Security", true)
		assertDevice(t, result.DeviceStatus, "Refrigerator", true)

		assert.False(t, result.EnergySavingMode)
		assert.True(t, result.TemperatureRegulationActive)
		// two devices turned off
		assert.InDelta(t, 29.0, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Comfortable Temperature -> No Regulation", func(t *testing.T) {
		result := c.Evaluate(ctx, baseInput())

		assert.False(t, result.TemperatureRegulationActive)
		assertDevice(t, result.DeviceStatus, "Heating", false)
		assertDevice(t, result.DeviceStatus, "Cooling", false)
		assert.False(t, result.EnergySavingMode)
		assert.InDelta(t, 25.0, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Schedule One Year Off -> Absent", func(t *testing.T) {
		input := baseInput()
		input.CurrentTime = time.Date(2024, 10, 1, 18, 0, 0, 0, time.UTC)
		input.Schedules = []types.DeviceSchedule{
			{Device: "Oven", At: time.Date(2023, 10, 1, 18, 0, 0, 0, time.UTC)},
		}

		result := c.Evaluate(ctx, input)

		_, ok := result.DeviceStatus.Get("Oven")
		assert.False(t, ok)
	})

	t.Run("Schedule Matches At Minute Granularity", func(t *testing.T) {
		input := baseInput()
		input.CurrentTime = time.Date(2024, 10, 1, 18, 0, 42, 0, time.UTC)
		input.Schedules = []types.DeviceSchedule{
			{Device: "Oven", At: time.Date(2024, 10, 1, 18, 0, 0, 0, time.UTC)},
			{Device: "Dryer", At: time.Date(2024, 10, 1, 18, 15, 0, 0, time.UTC)},
		}

		result := c.Evaluate(ctx, input)

		assertDevice(t, result.DeviceStatus, "Oven", true)
		_, ok := result.DeviceStatus.Get("Dryer")
		assert.False(t, ok, "15 minutes later should not match")
	})

	t.Run("Schedule Overrides Every Other Stage", func(t *testing.T) {
		input := baseInput()
		input.CurrentPrice = 0.50
		input.CurrentTime = time.Date(2024, 10, 1, 23, 0, 0, 0, time.UTC)
		input.CurrentTemperature = 30.0
		input.TotalEnergyUsedToday = 40.0
		input.Schedules = []types.DeviceSchedule{
			{Device: "Lights", At: input.CurrentTime},
			{Device: "Appliances", At: input.CurrentTime},
			{Device: "Heating", At: input.CurrentTime},
		}

		result := c.Evaluate(ctx, input)

		assertDevice(t, result.DeviceStatus, "Lights", true)
		assertDevice(t, result.DeviceStatus, "Appliances", true)
		assertDevice(t, result.DeviceStatus, "Heating", true)
		assertDevice(t, result.DeviceStatus, "Cooling", true)
		assert.True(t, result.EnergySavingMode)
		assert.True(t, result.TemperatureRegulationActive)
	})

	t.Run("Low Price + Daytime -> Lights Untouched", func(t *testing.T) {
		input := baseInput()
		input.CurrentPrice = 0.20 // equal is not above

		result := c.Evaluate(ctx, input)

		assert.False(t, result.EnergySavingMode)
		_, ok := result.DeviceStatus.Get("Lights")
		assert.False(t, ok)
		_, ok = result.DeviceStatus.Get("Appliances")
		assert.False(t, ok)
	})

	t.Run("Night Window Bounds", func(t *testing.T) {
		tests := []struct {
			hour, minute int
			night        bool
		}{
			{21, 59, false},
			{22, 0, true},
			{23, 30, true},
			{0, 30, true},
			{5, 59, true},
			{6, 0, false},
			{11, 23, false},
			{18, 0, false},
		}
		for _, tt := range tests {
			input := baseInput()
			input.CurrentTime = time.Date(2024, 10, 1, tt.hour, tt.minute, 0, 0, time.UTC)

			result := c.Evaluate(ctx, input)

			_, ok := result.DeviceStatus.Get("Lights")
			assert.Equal(t, tt.night, ok, "%02d:%02d", tt.hour, tt.minute)
			assertDevice(t, result.DeviceStatus, "Security", true)
			assertDevice(t, result.DeviceStatus, "Refrigerator", true)
		}
	})

	t.Run("Temperature Bounds Inclusive", func(t *testing.T) {
		for _, temp := range []float64{20.0, 24.0} {
			input := baseInput()
			input.CurrentTemperature = temp

			result := c.Evaluate(ctx, input)

			assert.False(t, result.TemperatureRegulationActive, "%.1f", temp)
			assertDevice(t, result.DeviceStatus, "Heating", false)
			assertDevice(t, result.DeviceStatus, "Cooling", false)
		}
	})

	t.Run("Usage Limit Boundary", func(t *testing.T) {
		input := baseInput()
		input.TotalEnergyUsedToday = 30.0

		result := c.Evaluate(ctx, input)
		assertDevice(t, result.DeviceStatus, "Lights", false)
		assertDevice(t, result.DeviceStatus, "Appliances", false)
		assert.InDelta(t, 28.0, result.TotalEnergyUsed, 0.005)

		input.TotalEnergyUsedToday = 29.0
		result = c.Evaluate(ctx, input)
		_, ok := result.DeviceStatus.Get("Lights")
		assert.False(t, ok)
		assert.InDelta(t, 29.0, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Already Off Devices Are Not Credited", func(t *testing.T) {
		input := baseInput()
		input.CurrentTime = time.Date(2024, 10, 1, 4, 20, 0, 0, time.UTC)
		input.TotalEnergyUsedToday = 35.0

		result := c.Evaluate(ctx, input)

		assertDevice(t, result.DeviceStatus, "Lights", false)
		assertDevice(t, result.DeviceStatus, "Appliances", false)
		// night mode already turned them off
		assert.InDelta(t, 35.0, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Unknown Devices Are Not Shed", func(t *testing.T) {
		input := baseInput()
		input.DevicePriorities = types.DevicePriorities{"Pool": 4}
		input.TotalEnergyUsedToday = 31.0

		result := c.Evaluate(ctx, input)

		assertDevice(t, result.DeviceStatus, "Pool", false)
		_, ok := result.DeviceStatus.Get("Lights")
		assert.False(t, ok)
		assert.InDelta(t, 30.0, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Empty Inputs", func(t *testing.T) {
		result := c.Evaluate(ctx, types.EvaluationInput{})

		// usage 0 >= limit 0 sheds but there is nothing to shed
		assert.InDelta(t, 0.0, result.TotalEnergyUsed, 0.005)
		assertDevice(t, result.DeviceStatus, "Heating", false)
		assertDevice(t, result.DeviceStatus, "Cooling", false)
		// midnight is inside the night window
		assertDevice(t, result.DeviceStatus, "Lights", false)
		assert.Len(t, result.DeviceStatus, 6)
	})

	t.Run("Idempotent", func(t *testing.T) {
		input := baseInput()
		input.CurrentPrice = 0.30
		input.TotalEnergyUsedToday = 31.0
		input.DevicePriorities["Pool"] = 3
		input.DevicePriorities["Dishwasher"] = 2

		first := c.Evaluate(ctx, input)
		for range 10 {
			assert.Equal(t, first, c.Evaluate(ctx, input))
		}
	})

	t.Run("Stage Reports", func(t *testing.T) {
		input := baseInput()
		input.CurrentPrice = 0.25

		result := c.Evaluate(ctx, input)

		require.Len(t, result.Stages, 5)
		for i, name := range Stages() {
			assert.Equal(t, name, result.Stages[i].Stage)
		}
		assert.True(t, result.Stages[0].Triggered)
		assert.Equal(t, map[string]bool{"Lights": false, "Appliances": false}, result.Stages[0].Writes)
		assert.Contains(t, result.Stages[0].Reason, "Price High")
		assert.False(t, result.Stages[4].Triggered)
		assert.Nil(t, result.Stages[4].Writes)
	})

	t.Run("Night Mode Reports Always On", func(t *testing.T) {
		result := c.Evaluate(ctx, baseInput())

		report := result.Stages[1]
		require.Equal(t, types.StageNightMode, report.Stage)
		assert.False(t, report.Triggered)
		assert.Equal(t, map[string]bool{"Security": true, "Refrigerator": true}, report.Writes)
		assert.Equal(t, "Daytime (2:00PM). Always on: [Security Refrigerator].", report.Reason)

		input := baseInput()
		input.CurrentTime = time.Date(2024, 10, 1, 23, 0, 0, 0, time.UTC)
		report = c.Evaluate(ctx, input).Stages[1]
		assert.True(t, report.Triggered)
		assert.Equal(t, "Night (11:00PM). Always on: [Security Refrigerator].", report.Reason)
	})
}

func TestUsageLimitShedding(t *testing.T) {
	ctx := context.Background()

	input := types.EvaluationInput{
		PriceThreshold: 1.0,
		DevicePriorities: types.DevicePriorities{
			"Heating":    1,
			"Lights":     2,
			"Dishwasher": 2,
			"Appliances": 3,
			"Pool":       4,
		},
		CurrentTime:          time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC),
		CurrentTemperature:   22.0,
		DesiredTemperature:   types.TemperatureRange{Min: 20.0, Max: 24.0},
		EnergyUsageLimit:     30.0,
		TotalEnergyUsedToday: 31.5,
	}

	t.Run("Shed Everything", func(t *testing.T) {
		c, err := NewController(types.DefaultPolicy())
		require.NoError(t, err)

		result := c.Evaluate(ctx, input)

		for _, device := range []string{"Lights", "Dishwasher", "Appliances", "Pool"} {
			assertDevice(t, result.DeviceStatus, device, false)
		}
		assert.InDelta(t, 27.5, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Shed Until Under Limit", func(t *testing.T) {
		policy := types.DefaultPolicy()
		policy.ShedUntilUnderLimit = true
		c, err := NewController(policy)
		require.NoError(t, err)

		result := c.Evaluate(ctx, input)

		// most dispensable first
		assertDevice(t, result.DeviceStatus, "Pool", false)
		assertDevice(t, result.DeviceStatus, "Appliances", false)
		_, ok := result.DeviceStatus.Get("Dishwasher")
		assert.False(t, ok)
		_, ok = result.DeviceStatus.Get("Lights")
		assert.False(t, ok)
		assert.InDelta(t, 29.5, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Ties Broken By Name", func(t *testing.T) {
		policy := types.DefaultPolicy()
		policy.ShedUntilUnderLimit = true
		c, err := NewController(policy)
		require.NoError(t, err)

		in := input
		in.TotalEnergyUsedToday = 32.5

		result := c.Evaluate(ctx, in)

		assertDevice(t, result.DeviceStatus, "Pool", false)
		assertDevice(t, result.DeviceStatus, "Appliances", false)
		assertDevice(t, result.DeviceStatus, "Dishwasher", false)
		_, ok := result.DeviceStatus.Get("Lights")
		assert.False(t, ok)
		assert.InDelta(t, 29.5, result.TotalEnergyUsed, 0.005)
	})

	t.Run("Custom Shed Unit", func(t *testing.T) {
		policy := types.DefaultPolicy()
		policy.ShedUnitKWH = 0.5
		c, err := NewController(policy)
		require.NoError(t, err)

		result := c.Evaluate(ctx, input)

		assert.InDelta(t, 29.5, result.TotalEnergyUsed, 0.005)
	})
}

func TestNewController(t *testing.T) {
	t.Run("invalid policy", func(t *testing.T) {
		policy := types.DefaultPolicy()
		policy.NightWindow.Location = "Invalid/Location"
		_, err := NewController(policy)
		assert.ErrorContains(t, err, "invalid policy")
	})

	t.Run("night window in location", func(t *testing.T) {
		policy := types.DefaultPolicy()
		policy.NightWindow.Location = "America/Chicago"
		c, err := NewController(policy)
		require.NoError(t, err)

		// 16:00 UTC is 10:00 Central
		result := c.Evaluate(context.Background(), types.EvaluationInput{
			DevicePriorities:     types.DefaultDevicePriorities(),
			CurrentTime:          time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC),
			CurrentTemperature:   22.0,
			DesiredTemperature:   types.TemperatureRange{Min: 20.0, Max: 24.0},
			EnergyUsageLimit:     30.0,
			TotalEnergyUsedToday: 10.0,
		})
		_, ok := result.DeviceStatus.Get("Lights")
		assert.False(t, ok)
	})
}

func TestStages(t *testing.T) {
	assert.Equal(t, []types.StageName{
		types.StageEnergySaving,
		types.StageNightMode,
		types.StageTemperatureRegulation,
		types.StageUsageLimit,
		types.StageSchedule,
	}, Stages())
}
