package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/scenario/pkg/cache"
	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type runRecord struct {
	tenantID int64
	name     string
	event    map[string]any
}

type runCapture struct {
	mu   sync.Mutex
	runs []runRecord
	wait chan struct{} // when set, runs block until it closes
}

func (c *runCapture) run(_ context.Context, tenantID int64, name string, event map[string]any) (string, map[string]any) {
	c.mu.Lock()
	c.runs = append(c.runs, runRecord{tenantID: tenantID, name: name, event: event})
	wait := c.wait
	c.mu.Unlock()
	if wait != nil {
		<-wait
	}
	return models.ScenarioSuccess, nil
}

func (c *runCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

func (c *runCapture) last() runRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[len(c.runs)-1]
}

func hourlyScenario(lastRun time.Time) *models.Scenario {
	return &models.Scenario{
		ID: 1, TenantID: 1, Name: "hourly_report",
		Schedule: "0 * * * *",
		LastRun:  &lastRun,
	}
}

// waitForRuns polls until the capture has seen n runs; scheduled runs happen
// on their own goroutines.
func waitForRuns(t *testing.T, c *runCapture, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d runs, saw %d", n, c.count())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTickFiresDueScenarioOnce(t *testing.T) {
	lastRun := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: time.Date(2026, 8, 24, 11, 0, 30, 0, time.UTC)}

	repo := repository.NewMemory()
	repo.AddScenario(hourlyScenario(lastRun))

	capture := &runCapture{}
	m := New(repo, cache.NewMemory(), capture.run, WithClock(clock.Now))
	require.NoError(t, m.Load(context.Background()))

	m.tick(context.Background(), clock.Now())
	waitForRuns(t, capture, 1)
	m.wg.Wait()

	run := capture.last()
	assert.Equal(t, int64(1), run.tenantID)
	assert.Equal(t, "hourly_report", run.name)
	assert.Equal(t, int64(1), run.event[models.KeyScheduledScenario])

	// last_run persisted as the 11:00 slot, next run at 12:00.
	stored, err := repo.GetScenariosByTenant(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, stored[0].LastRun)
	assert.Equal(t, time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC), *stored[0].LastRun)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), m.entries[1].nextRun)

	// The next minute's tick must not re-fire it.
	clock.Set(time.Date(2026, 8, 24, 11, 1, 0, 0, time.UTC))
	m.tick(context.Background(), clock.Now())
	m.wg.Wait()
	assert.Equal(t, 1, capture.count())
}

func TestRunningGatePreventsOverlap(t *testing.T) {
	lastRun := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: time.Date(2026, 8, 24, 11, 0, 5, 0, time.UTC)}

	repo := repository.NewMemory()
	repo.AddScenario(hourlyScenario(lastRun))

	release := make(chan struct{})
	capture := &runCapture{wait: release}
	m := New(repo, cache.NewMemory(), capture.run, WithClock(clock.Now))
	require.NoError(t, m.Load(context.Background()))

	m.tick(context.Background(), clock.Now())
	waitForRuns(t, capture, 1)

	// Second tick while the first run is still in flight.
	m.tick(context.Background(), clock.Now())
	assert.Equal(t, 1, capture.count())

	close(release)
	m.wg.Wait()
}

func TestMissedTicksCollapse(t *testing.T) {
	// Last run four hours ago; only one catch-up run fires, then the next
	// run counts from completion.
	lastRun := time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: time.Date(2026, 8, 24, 11, 0, 10, 0, time.UTC)}

	repo := repository.NewMemory()
	repo.AddScenario(hourlyScenario(lastRun))

	capture := &runCapture{}
	m := New(repo, cache.NewMemory(), capture.run, WithClock(clock.Now))
	require.NoError(t, m.Load(context.Background()))

	m.tick(context.Background(), clock.Now())
	waitForRuns(t, capture, 1)
	m.wg.Wait()

	assert.Equal(t, 1, capture.count())
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), m.entries[1].nextRun)
}

func TestUnparseableCronSkipped(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "broken", Schedule: "not a cron",
	})

	m := New(repo, cache.NewMemory(), (&runCapture{}).run)
	require.NoError(t, m.Load(context.Background()))
	assert.Empty(t, m.entries)
}

func TestScheduledEventCarriesBotAndConfig(t *testing.T) {
	lastRun := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)}

	repo := repository.NewMemory()
	repo.AddScenario(hourlyScenario(lastRun))
	repo.AddBot(&models.Bot{ID: 77, TenantID: 1, Name: "support"})
	repo.AddTenant(&models.Tenant{ID: 1, Name: "acme", Config: map[string]any{"lang": "en"}})

	capture := &runCapture{}
	m := New(repo, cache.NewMemory(), capture.run, WithClock(clock.Now))
	require.NoError(t, m.Load(context.Background()))

	m.tick(context.Background(), clock.Now())
	waitForRuns(t, capture, 1)
	m.wg.Wait()

	event := capture.last().event
	system, ok := event[models.KeySystem].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), system[models.KeyTenantID])
	assert.Equal(t, int64(77), system[models.KeyBotID])
	assert.Equal(t, map[string]any{"lang": "en"}, event[models.KeyConfig])
}

func TestReloadTenantDropsRemovedScenarios(t *testing.T) {
	lastRun := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	repo := repository.NewMemory()
	repo.AddScenario(hourlyScenario(lastRun))
	repo.AddScenario(&models.Scenario{
		ID: 2, TenantID: 1, Name: "daily", Schedule: "0 0 * * *",
	})

	m := New(repo, cache.NewMemory(), (&runCapture{}).run)
	require.NoError(t, m.Load(context.Background()))
	require.Len(t, m.entries, 2)

	// The daily scenario loses its schedule.
	repo.AddScenario(&models.Scenario{ID: 2, TenantID: 1, Name: "daily"})
	require.NoError(t, m.ReloadTenant(context.Background(), 1))

	assert.Contains(t, m.entries, int64(1))
	assert.NotContains(t, m.entries, int64(2))
}

func TestStartStop(t *testing.T) {
	m := New(repository.NewMemory(), cache.NewMemory(), (&runCapture{}).run)
	m.Start()
	m.Stop()
}
