package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/engagely/points-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema and seeds the default promotion settings.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	defaults := domain.DefaultPromotionSettings()
	platformCosts, err := json.Marshal(defaults.PlatformCosts)
	if err != nil {
		return err
	}
	actionCosts, err := json.Marshal(defaults.ActionCosts)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO promotion_settings (id, global_cost, platform_costs, action_costs)
		VALUES (1, $1, $2::jsonb, $3::jsonb)
		ON CONFLICT (id) DO NOTHING`, defaults.GlobalCost, string(platformCosts), string(actionCosts))
	if err != nil {
		return fmt.Errorf("failed to seed promotion settings: %w", err)
	}
	return nil
}
