package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/devicerudder/pkg/types"
)

type memoryHome struct {
	settings  types.Settings
	version   int
	decisions map[string]types.Decision
}

// Memory is a Database kept in process memory. It is meant for local
// development and is lost on restart.
type Memory struct {
	mu    sync.Mutex
	homes map[string]*memoryHome
}

var _ Database = (*Memory)(nil)

// NewMemory creates an empty in-memory Database.
func NewMemory() *Memory {
	return &Memory{
		homes: make(map[string]*memoryHome),
	}
}

func (m *Memory) home(homeID string) (*memoryHome, error) {
	if homeID == "" {
		return nil, fmt.Errorf("homeID cannot be empty")
	}
	h, ok := m.homes[homeID]
	if !ok {
		h = &memoryHome{decisions: make(map[string]types.Decision)}
		m.homes[homeID] = h
	}
	return h, nil
}

func (m *Memory) GetSettings(_ context.Context, homeID string) (types.Settings, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.home(homeID)
	if err != nil {
		return types.Settings{}, 0, err
	}
	return h.settings, h.version, nil
}

func (m *Memory) SetSettings(_ context.Context, homeID string, settings types.Settings, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.home(homeID)
	if err != nil {
		return err
	}
	h.settings = settings
	h.version = version
	return nil
}

func (m *Memory) InsertDecision(_ context.Context, homeID string, decision types.Decision) error {
	if decision.Timestamp.IsZero() {
		return fmt.Errorf("decision missing timestamp")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.home(homeID)
	if err != nil {
		return err
	}
	h.decisions[decisionID(decision.Timestamp)] = decision
	return nil
}

// sortedIDs returns the decision IDs of the home in ascending order.
func (h *memoryHome) sortedIDs() []string {
	ids := make([]string, 0, len(h.decisions))
	for id := range h.decisions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Memory) GetDecisionHistory(_ context.Context, homeID string, start, end time.Time) ([]types.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.home(homeID)
	if err != nil {
		return nil, err
	}
	startID, endID := decisionID(start), decisionID(end)
	var decisions []types.Decision
	for _, id := range h.sortedIDs() {
		if strings.Compare(id, startID) >= 0 && strings.Compare(id, endID) < 0 {
			decisions = append(decisions, h.decisions[id])
		}
	}
	return decisions, nil
}

func (m *Memory) GetLatestDecision(_ context.Context, homeID string) (*types.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.home(homeID)
	if err != nil {
		return nil, err
	}
	ids := h.sortedIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	d := h.decisions[ids[len(ids)-1]]
	return &d, nil
}

func (m *Memory) Close() error {
	return nil
}
