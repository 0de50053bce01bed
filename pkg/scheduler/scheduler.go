// Package scheduler fires cron-driven scenarios. It keeps per-scenario
// metadata in memory, ticks once per minute, and gates each scenario so a
// slow run is never overlapped by the next tick.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/botforge/scenario/pkg/cache"
	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/repository"
	"github.com/botforge/scenario/pkg/value"
)

// Runner executes a scenario by name for a tenant; the engine facade
// satisfies it.
type Runner func(ctx context.Context, tenantID int64, name string, event map[string]any) (string, map[string]any)

// defaultCacheTTL bounds how long a tenant's bot id and config are served
// from the key-value cache before being re-read.
const defaultCacheTTL = time.Hour

type entry struct {
	scenarioID int64
	tenantID   int64
	name       string
	spec       string
	schedule   cron.Schedule
	lastRun    time.Time
	nextRun    time.Time
	running    bool
}

// Manager owns the scheduled-scenario table and the tick loop.
type Manager struct {
	repo     repository.Repository
	kv       cache.Store
	run      Runner
	parser   cron.Parser
	now      func() time.Time
	cacheTTL time.Duration

	mu      sync.Mutex
	entries map[int64]*entry

	stop chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCacheTTL overrides the lifetime of cached bot ids and tenant configs.
func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.cacheTTL = ttl
		}
	}
}

// New creates a scheduler over a repository, a key-value cache and a runner.
func New(repo repository.Repository, kv cache.Store, run Runner, opts ...Option) *Manager {
	m := &Manager{
		repo: repo,
		kv:   kv,
		run:  run,
		// Standard five-field crontab: minute hour dom month dow.
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		now:      time.Now,
		cacheTTL: defaultCacheTTL,
		entries:  make(map[int64]*entry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads every scheduled scenario across tenants and builds the table.
// A scenario whose cron does not parse is logged and gets no metadata.
func (m *Manager) Load(ctx context.Context) error {
	scenarios, err := m.repo.GetScheduledScenarios(ctx, nil)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scenarios {
		m.registerLocked(s)
	}
	slog.Info("Loaded scheduled scenarios", "count", len(m.entries))
	return nil
}

// ReloadTenant replaces a tenant's scheduled entries with the current
// persisted state. Surviving scenarios keep their run metadata; an entry
// mid-run keeps its gate until the run finishes.
func (m *Manager) ReloadTenant(ctx context.Context, tenantID int64) error {
	scenarios, err := m.repo.GetScheduledScenarios(ctx, &tenantID)
	if err != nil {
		return err
	}

	keep := make(map[int64]bool, len(scenarios))
	for _, s := range scenarios {
		keep[s.ID] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.tenantID == tenantID && !keep[id] {
			delete(m.entries, id)
		}
	}
	for _, s := range scenarios {
		m.registerLocked(s)
	}
	return nil
}

func (m *Manager) registerLocked(s *models.Scenario) {
	schedule, err := m.parser.Parse(s.Schedule)
	if err != nil {
		slog.Error("Unparseable cron expression, scenario will not be scheduled",
			"tenant_id", s.TenantID, "scenario_id", s.ID,
			"scenario", s.Name, "cron", s.Schedule, "error", err)
		delete(m.entries, s.ID)
		return
	}

	if existing, ok := m.entries[s.ID]; ok {
		existing.name = s.Name
		if existing.spec != s.Schedule {
			existing.spec = s.Schedule
			existing.schedule = schedule
			existing.nextRun = schedule.Next(m.now())
		}
		return
	}

	anchor := m.now()
	var lastRun time.Time
	if s.LastRun != nil {
		lastRun = *s.LastRun
		anchor = lastRun
	}
	m.entries[s.ID] = &entry{
		scenarioID: s.ID,
		tenantID:   s.TenantID,
		name:       s.Name,
		spec:       s.Schedule,
		schedule:   schedule,
		lastRun:    lastRun,
		nextRun:    schedule.Next(anchor),
	}
}

// Start launches the minute tick loop.
func (m *Manager) Start() {
	go m.loop()
}

// Stop ends the tick loop and waits for in-flight scenario runs.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
	m.wg.Wait()
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		// Sleep to the next minute boundary so every tick lands at :00.
		now := m.now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-m.stop:
			timer.Stop()
			return
		case <-timer.C:
			m.tick(context.Background(), m.now())
		}
	}
}

// tick fires every due entry that is not already running. Each run gets its
// own goroutine; the running gate stays set until the run completes.
func (m *Manager) tick(ctx context.Context, now time.Time) {
	m.mu.Lock()
	var due []*entry
	for _, e := range m.entries {
		if e.running || now.Before(e.nextRun) {
			continue
		}
		e.running = true
		due = append(due, e)
	}
	m.mu.Unlock()

	for _, e := range due {
		m.wg.Add(1)
		go func(e *entry) {
			defer m.wg.Done()
			m.runScenario(ctx, e)
		}(e)
	}
}

func (m *Manager) runScenario(ctx context.Context, e *entry) {
	m.mu.Lock()
	scheduled := e.nextRun
	m.mu.Unlock()

	slog.Info("Running scheduled scenario",
		"tenant_id", e.tenantID, "scenario_id", e.scenarioID,
		"scenario", e.name, "scheduled_at", scheduled)

	event := m.buildEvent(ctx, e, scheduled)
	result, _ := m.run(ctx, e.tenantID, e.name, event)
	if result != models.ScenarioSuccess {
		slog.Warn("Scheduled scenario did not succeed",
			"tenant_id", e.tenantID, "scenario_id", e.scenarioID, "result", result)
	}

	// last_run persists whatever the outcome, so a failing scenario is not
	// retried every tick.
	if err := m.repo.UpdateScenarioLastRun(ctx, e.scenarioID, scheduled); err != nil {
		slog.Error("Failed to persist last_run",
			"scenario_id", e.scenarioID, "error", err)
	}

	completed := m.now()
	m.mu.Lock()
	e.lastRun = scheduled
	// Next run counts from completion: ticks missed during a long run
	// collapse into the next future slot.
	e.nextRun = e.schedule.Next(completed)
	e.running = false
	next := e.nextRun
	m.mu.Unlock()

	slog.Debug("Scheduled scenario finished",
		"scenario_id", e.scenarioID, "result", result, "next_run", next)
}

// buildEvent assembles the synthetic event a scheduled run starts from.
func (m *Manager) buildEvent(ctx context.Context, e *entry, scheduled time.Time) map[string]any {
	system := map[string]any{models.KeyTenantID: e.tenantID}
	if botID, ok := m.botID(ctx, e.tenantID); ok {
		system[models.KeyBotID] = botID
	}

	event := map[string]any{
		models.KeySystem:            system,
		models.KeyScheduledAt:       scheduled,
		models.KeyScheduledScenario: e.scenarioID,
	}
	if cfg, ok := m.tenantConfig(ctx, e.tenantID); ok {
		event[models.KeyConfig] = cfg
	}
	return event
}

func (m *Manager) botID(ctx context.Context, tenantID int64) (int64, bool) {
	key := cache.BotIDKey(tenantID)
	if raw, ok := m.kv.Get(ctx, key); ok {
		if f, ok := value.AsFloat(raw); ok {
			return int64(f), true
		}
	}

	bot, err := m.repo.GetBotByTenant(ctx, tenantID)
	if err != nil {
		slog.Debug("No bot for tenant", "tenant_id", tenantID, "error", err)
		return 0, false
	}
	if err := m.kv.Set(ctx, key, bot.ID, m.cacheTTL); err != nil {
		slog.Warn("Failed to cache bot id", "tenant_id", tenantID, "error", err)
	}
	return bot.ID, true
}

func (m *Manager) tenantConfig(ctx context.Context, tenantID int64) (map[string]any, bool) {
	key := cache.TenantConfigKey(tenantID)
	if raw, ok := m.kv.Get(ctx, key); ok {
		if cfg, ok := raw.(map[string]any); ok {
			return cfg, true
		}
	}

	tenant, err := m.repo.GetTenantByID(ctx, tenantID)
	if err != nil || len(tenant.Config) == 0 {
		return nil, false
	}
	if err := m.kv.Set(ctx, key, tenant.Config, m.cacheTTL); err != nil {
		slog.Warn("Failed to cache tenant config", "tenant_id", tenantID, "error", err)
	}
	return tenant.Config, true
}
