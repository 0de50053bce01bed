package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botforge/scenario/pkg/models"
)

// Postgres is the pgx-backed Repository.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a repository over a pgx connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetScenariosByTenant(ctx context.Context, tenantID int64) ([]*models.Scenario, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, tenant_id, name, description, schedule, last_run
		 FROM scenarios WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	var out []*models.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetTriggersByScenario(ctx context.Context, scenarioID int64) ([]*models.Trigger, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, scenario_id, condition FROM triggers WHERE scenario_id = $1 ORDER BY id`,
		scenarioID)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var out []*models.Trigger
	for rows.Next() {
		t := &models.Trigger{}
		if err := rows.Scan(&t.ID, &t.ScenarioID, &t.Condition); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) GetStepsByScenario(ctx context.Context, scenarioID int64) ([]*models.Step, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, scenario_id, step_order, action_name, params, is_async, action_id
		 FROM steps WHERE scenario_id = $1 ORDER BY step_order, id`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []*models.Step
	for rows.Next() {
		s := &models.Step{}
		if err := rows.Scan(&s.ID, &s.ScenarioID, &s.StepOrder, &s.ActionName,
			&s.Params, &s.IsAsync, &s.ActionID); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetTransitionsByStep(ctx context.Context, stepID int64) ([]*models.Transition, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, step_id, action_result, transition_action, transition_value
		 FROM transitions WHERE step_id = $1 ORDER BY id`, stepID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transition
	for rows.Next() {
		t := &models.Transition{}
		if err := rows.Scan(&t.ID, &t.StepID, &t.ActionResult, &t.Action, &t.Value); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) GetScheduledScenarios(ctx context.Context, tenantID *int64) ([]*models.Scenario, error) {
	query := `SELECT id, tenant_id, name, description, schedule, last_run
	          FROM scenarios WHERE schedule <> ''`
	args := []any{}
	if tenantID != nil {
		query += ` AND tenant_id = $1`
		args = append(args, *tenantID)
	}
	query += ` ORDER BY id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scheduled scenarios: %w", err)
	}
	defer rows.Close()

	var out []*models.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetBotByTenant(ctx context.Context, tenantID int64) (*models.Bot, error) {
	b := &models.Bot{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, platform FROM bots WHERE tenant_id = $1 ORDER BY id LIMIT 1`,
		tenantID).Scan(&b.ID, &b.TenantID, &b.Name, &b.Platform)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query bot: %w", err)
	}
	return b, nil
}

func (p *Postgres) GetTenantByID(ctx context.Context, tenantID int64) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, config FROM tenants WHERE id = $1`,
		tenantID).Scan(&t.ID, &t.Name, &t.Config)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant: %w", err)
	}
	return t, nil
}

func (p *Postgres) UpdateScenarioLastRun(ctx context.Context, scenarioID int64, ts time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE scenarios SET last_run = $2 WHERE id = $1`, scenarioID, ts)
	if err != nil {
		return fmt.Errorf("update last_run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanScenario(rows pgx.Rows) (*models.Scenario, error) {
	s := &models.Scenario{}
	if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.Description, &s.Schedule, &s.LastRun); err != nil {
		return nil, fmt.Errorf("scan scenario: %w", err)
	}
	return s, nil
}
