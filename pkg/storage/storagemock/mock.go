package storagemock

import (
	"context"
	"time"

	"github.com/raterudder/devicerudder/pkg/storage"
	"github.com/raterudder/devicerudder/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, homeID string) (types.Settings, int, error) {
	args := m.Called(ctx, homeID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, homeID string, settings types.Settings, version int) error {
	args := m.Called(ctx, homeID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) InsertDecision(ctx context.Context, homeID string, decision types.Decision) error {
	args := m.Called(ctx, homeID, decision)
	return args.Error(0)
}

func (m *MockDatabase) GetDecisionHistory(ctx context.Context, homeID string, start, end time.Time) ([]types.Decision, error) {
	args := m.Called(ctx, homeID, start, end)
	if len(args) > 0 {
		if args.Get(0) == nil {
			return nil, args.Error(1)
		}
		return args.Get(0).([]types.Decision), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetLatestDecision(ctx context.Context, homeID string) (*types.Decision, error) {
	args := m.Called(ctx, homeID)
	if len(args) > 0 {
		if args.Get(0) == nil {
			return nil, args.Error(1)
		}
		return args.Get(0).(*types.Decision), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	if len(args) > 0 {
		return args.Error(0)
	}
	return nil
}
