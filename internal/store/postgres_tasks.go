package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/engagely/points-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `
	id, creator_id, title, url, platform, action, duration_seconds,
	points_per_completion, max_completions, completions_count, fund,
	status, promoted, promoted_at, created_at, updated_at`

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var duration int32
	err := row.Scan(
		&t.ID, &t.CreatorID, &t.Title, &t.URL, &t.Platform, &t.Action, &duration,
		&t.PointsPerCompletion, &t.MaxCompletions, &t.CompletionsCount, &t.Fund,
		&t.Status, &t.Promoted, &t.PromotedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	t.DurationSeconds = int(duration)
	return &t, nil
}

func (r *PostgresRepository) FindTaskByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT`+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// buildTaskListQuery renders the listing query for a filter. Promoted tasks sort first.
func buildTaskListQuery(filter domain.TaskFilter) (string, []any) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filter.ActiveOnly {
		conditions = append(conditions, "status = 'active'")
	}
	if filter.PromotedOnly {
		conditions = append(conditions, "promoted = TRUE")
	}
	if platform := strings.ToLower(strings.TrimSpace(filter.Platform)); platform != "" {
		args = append(args, platform)
		conditions = append(conditions, fmt.Sprintf("platform = $%d", len(args)))
	}
	if action := strings.ToLower(strings.TrimSpace(filter.Action)); action != "" {
		args = append(args, action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}

	query := `SELECT` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, NormalizeLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY promoted DESC, created_at DESC LIMIT $%d", len(args))
	return query, args
}

func (r *PostgresRepository) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	query, args := buildTaskListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// MarkExhaustedTasks flips active tasks that can no longer pay out to exhausted.
func (r *PostgresRepository) MarkExhaustedTasks(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tasks
		SET status = 'exhausted', updated_at = NOW()
		WHERE status = 'active'
		  AND (fund < points_per_completion OR completions_count >= max_completions)`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) GetPromotionSettings(ctx context.Context) (domain.PromotionSettings, error) {
	settings := domain.DefaultPromotionSettings()
	var platformCosts, actionCosts string
	err := r.db.QueryRow(ctx, `
		SELECT global_cost, platform_costs::text, action_costs::text, updated_at
		FROM promotion_settings WHERE id = 1`).Scan(&settings.GlobalCost, &platformCosts, &actionCosts, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings, nil
		}
		return settings, err
	}
	if err := decodeCosts(platformCosts, &settings.PlatformCosts); err != nil {
		return settings, err
	}
	if err := decodeCosts(actionCosts, &settings.ActionCosts); err != nil {
		return settings, err
	}
	return settings, nil
}

func (r *PostgresRepository) UpdatePromotionSettings(ctx context.Context, settings domain.PromotionSettings) (domain.PromotionSettings, error) {
	platformCosts, err := json.Marshal(nonNilCosts(settings.PlatformCosts))
	if err != nil {
		return settings, err
	}
	actionCosts, err := json.Marshal(nonNilCosts(settings.ActionCosts))
	if err != nil {
		return settings, err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO promotion_settings (id, global_cost, platform_costs, action_costs, updated_at)
		VALUES (1, $1, $2::jsonb, $3::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE
		SET global_cost = EXCLUDED.global_cost,
		    platform_costs = EXCLUDED.platform_costs,
		    action_costs = EXCLUDED.action_costs,
		    updated_at = NOW()
		RETURNING updated_at`, settings.GlobalCost, string(platformCosts), string(actionCosts)).Scan(&settings.UpdatedAt)
	if err != nil {
		return settings, err
	}
	return settings, nil
}

func decodeCosts(raw string, dst *map[string]int64) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	costs := map[string]int64{}
	if err := json.Unmarshal([]byte(raw), &costs); err != nil {
		return fmt.Errorf("failed to decode promotion costs: %w", err)
	}
	*dst = costs
	return nil
}

func nonNilCosts(costs map[string]int64) map[string]int64 {
	if costs == nil {
		return map[string]int64{}
	}
	return costs
}

// LockTask reads a task and holds its row lock until the transaction ends.
func (t *pgTx) LockTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return scanTask(t.tx.QueryRow(ctx, `SELECT`+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) InsertTask(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (
			id, creator_id, title, url, platform, action, duration_seconds,
			points_per_completion, max_completions, completions_count, fund,
			status, promoted, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`
	_, err := t.tx.Exec(ctx, query,
		task.ID, task.CreatorID, task.Title, task.URL, task.Platform, task.Action, task.DurationSeconds,
		task.PointsPerCompletion, task.MaxCompletions, task.CompletionsCount, task.Fund,
		task.Status, task.Promoted, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// UpdateTask persists the escrow counters, status and promotion flag of a locked task.
func (t *pgTx) UpdateTask(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET max_completions = $1,
		    completions_count = $2,
		    fund = $3,
		    status = $4,
		    promoted = $5,
		    promoted_at = $6,
		    updated_at = NOW()
		WHERE id = $7`
	tag, err := t.tx.Exec(ctx, query,
		task.MaxCompletions, task.CompletionsCount, task.Fund, task.Status,
		task.Promoted, task.PromotedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (t *pgTx) HasCompletion(ctx context.Context, taskID, accountID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM task_completions WHERE task_id = $1 AND account_id = $2)`,
		taskID, accountID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing completion: %w", err)
	}
	return exists, nil
}

func (t *pgTx) InsertCompletion(ctx context.Context, taskID, accountID uuid.UUID, payout int64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO task_completions (task_id, account_id, payout, completed_at) VALUES ($1, $2, $3, NOW())`,
		taskID, accountID, payout,
	)
	if err != nil {
		return classifyError(fmt.Errorf("failed to insert completion record: %w", err))
	}
	return nil
}
