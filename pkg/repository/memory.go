package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/botforge/scenario/pkg/models"
)

// Memory is an in-memory Repository for tests and local development.
// Scenarios are stored fully assembled; the per-entity getters slice them
// the way the SQL implementation would.
type Memory struct {
	mu        sync.RWMutex
	scenarios map[int64]*models.Scenario
	bots      map[int64]*models.Bot    // keyed by tenant id
	tenants   map[int64]*models.Tenant // keyed by tenant id
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		scenarios: make(map[int64]*models.Scenario),
		bots:      make(map[int64]*models.Bot),
		tenants:   make(map[int64]*models.Tenant),
	}
}

// AddScenario stores a fully assembled scenario.
func (m *Memory) AddScenario(s *models.Scenario) {
	m.mu.Lock()
	m.scenarios[s.ID] = s
	m.mu.Unlock()
}

// AddBot stores a tenant's bot.
func (m *Memory) AddBot(b *models.Bot) {
	m.mu.Lock()
	m.bots[b.TenantID] = b
	m.mu.Unlock()
}

// AddTenant stores a tenant.
func (m *Memory) AddTenant(t *models.Tenant) {
	m.mu.Lock()
	m.tenants[t.ID] = t
	m.mu.Unlock()
}

func (m *Memory) GetScenariosByTenant(_ context.Context, tenantID int64) ([]*models.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Scenario
	for _, s := range m.scenarios {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetTriggersByScenario(_ context.Context, scenarioID int64) ([]*models.Trigger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scenarios[scenarioID]
	if !ok {
		return nil, nil
	}
	return s.Triggers, nil
}

func (m *Memory) GetStepsByScenario(_ context.Context, scenarioID int64) ([]*models.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scenarios[scenarioID]
	if !ok {
		return nil, nil
	}
	return s.Steps, nil
}

func (m *Memory) GetTransitionsByStep(_ context.Context, stepID int64) ([]*models.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.scenarios {
		for _, step := range s.Steps {
			if step.ID == stepID {
				return step.Transitions, nil
			}
		}
	}
	return nil, nil
}

func (m *Memory) GetScheduledScenarios(_ context.Context, tenantID *int64) ([]*models.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Scenario
	for _, s := range m.scenarios {
		if !s.Scheduled() {
			continue
		}
		if tenantID != nil && s.TenantID != *tenantID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetBotByTenant(_ context.Context, tenantID int64) (*models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bots[tenantID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return b, nil
}

func (m *Memory) GetTenantByID(_ context.Context, tenantID int64) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return t, nil
}

func (m *Memory) UpdateScenarioLastRun(_ context.Context, scenarioID int64, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scenarios[scenarioID]
	if !ok {
		return models.ErrNotFound
	}
	t := ts
	s.LastRun = &t
	return nil
}
