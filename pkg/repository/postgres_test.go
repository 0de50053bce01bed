package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/botforge/scenario/pkg/database"
	"github.com/botforge/scenario/pkg/models"
)

// setupPostgres starts a throwaway container, applies migrations and returns
// a pooled connection. Skipped under -short.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed repository test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("scenario_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.MigrateDSN(dsn, "scenario_test"))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedTenant(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var tenantID int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO tenants (name, config) VALUES ('acme', '{"lang":"en"}') RETURNING id`,
	).Scan(&tenantID)
	require.NoError(t, err)
	return tenantID
}

func TestPostgresScenarioRoundTrip(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	tenantID := seedTenant(t, pool)

	var scenarioID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO scenarios (tenant_id, name, description, schedule)
		 VALUES ($1, 'greet', 'say hi', '') RETURNING id`, tenantID).Scan(&scenarioID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO triggers (scenario_id, condition) VALUES ($1, '$text == "/hi"')`,
		scenarioID)
	require.NoError(t, err)

	var stepID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO steps (scenario_id, step_order, action_name, params, is_async, action_id)
		 VALUES ($1, 1, 'reply', '{"text":"hello {user.name}"}', false, '') RETURNING id`,
		scenarioID).Scan(&stepID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO transitions (step_id, action_result, transition_action, transition_value)
		 VALUES ($1, 'error', 'move_steps', '2')`, stepID)
	require.NoError(t, err)

	repo := NewPostgres(pool)

	scenarios, err := repo.GetScenariosByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "greet", scenarios[0].Name)
	assert.Nil(t, scenarios[0].LastRun)

	triggers, err := repo.GetTriggersByScenario(ctx, scenarioID)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, `$text == "/hi"`, triggers[0].Condition)

	steps, err := repo.GetStepsByScenario(ctx, scenarioID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "reply", steps[0].ActionName)
	assert.Equal(t, map[string]any{"text": "hello {user.name}"}, steps[0].Params)
	assert.False(t, steps[0].IsAsync)

	transitions, err := repo.GetTransitionsByStep(ctx, stepID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "error", transitions[0].ActionResult)
	assert.Equal(t, models.TransitionMoveSteps, transitions[0].Action)
	assert.Equal(t, float64(2), transitions[0].Value)
}

func TestPostgresScheduledAndLastRun(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	tenantID := seedTenant(t, pool)

	var scheduledID, plainID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO scenarios (tenant_id, name, schedule)
		 VALUES ($1, 'hourly', '0 * * * *') RETURNING id`, tenantID).Scan(&scheduledID)
	require.NoError(t, err)
	err = pool.QueryRow(ctx,
		`INSERT INTO scenarios (tenant_id, name, schedule)
		 VALUES ($1, 'manual', '') RETURNING id`, tenantID).Scan(&plainID)
	require.NoError(t, err)

	repo := NewPostgres(pool)

	scheduled, err := repo.GetScheduledScenarios(ctx, nil)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, scheduledID, scheduled[0].ID)

	other := tenantID + 1
	none, err := repo.GetScheduledScenarios(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, none)

	ts := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateScenarioLastRun(ctx, scheduledID, ts))

	scheduled, err = repo.GetScheduledScenarios(ctx, &tenantID)
	require.NoError(t, err)
	require.NotNil(t, scheduled[0].LastRun)
	assert.True(t, ts.Equal(*scheduled[0].LastRun))

	assert.ErrorIs(t, repo.UpdateScenarioLastRun(ctx, 99999, ts), models.ErrNotFound)
}

func TestPostgresBotAndTenant(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	tenantID := seedTenant(t, pool)

	_, err := pool.Exec(ctx,
		`INSERT INTO bots (tenant_id, name, platform) VALUES ($1, 'support', 'telegram')`,
		tenantID)
	require.NoError(t, err)

	repo := NewPostgres(pool)

	bot, err := repo.GetBotByTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "support", bot.Name)
	assert.Equal(t, "telegram", bot.Platform)

	_, err = repo.GetBotByTenant(ctx, tenantID+1)
	assert.ErrorIs(t, err, models.ErrNotFound)

	tenant, err := repo.GetTenantByID(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Name)
	assert.Equal(t, map[string]any{"lang": "en"}, tenant.Config)

	_, err = repo.GetTenantByID(ctx, tenantID+1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
