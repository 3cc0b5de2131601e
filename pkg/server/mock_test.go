package server

import (
	"context"
	"time"

	"github.com/raterudder/devicerudder/pkg/storage/storagemock"
	"github.com/raterudder/devicerudder/pkg/types"
	"github.com/raterudder/devicerudder/pkg/utility"
	"github.com/stretchr/testify/mock"
)

type mockUtility struct {
	mock.Mock
}

func (m *mockUtility) ApplySettings(ctx context.Context, settings types.Settings) error {
	args := m.Called(ctx, settings)
	if len(args) > 0 {
		return args.Error(0)
	}
	return nil
}

func (m *mockUtility) PriceAt(ctx context.Context, t time.Time) (types.Price, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(types.Price), args.Error(1)
}

// defaultSettings returns fully migrated settings as a new home would have.
func defaultSettings() types.Settings {
	s, _, _ := types.MigrateSettings(types.Settings{}, 0)
	return s
}

// newTestServer returns a server for the default home whose fixed rate is
// served by the returned mock utility.
func newTestServer() (*Server, *storagemock.MockDatabase, *mockUtility) {
	mockS := &storagemock.MockDatabase{}
	mockU := &mockUtility{}
	mockU.On("ApplySettings", mock.Anything, mock.Anything).Return(nil)

	u := utility.NewMap()
	u.SetUtility(types.HomeIDDefault, types.UtilityRateFixed, mockU)

	srv := &Server{
		utilities:  u,
		storage:    mockS,
		metrics:    newMetrics(),
		homeID:     types.HomeIDDefault,
		location:   time.UTC,
		clock:      time.Now,
		listenAddr: ":8080",
		serverName: "devicerudder-test",
	}
	return srv, mockS, mockU
}
