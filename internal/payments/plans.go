package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"motionmaker/billing/pkg/models"
)

// PlanCatalog reads the purchasable plan catalogue
type PlanCatalog struct {
	db *sql.DB
}

// NewPlanCatalog creates a plan catalogue backed by the given database
func NewPlanCatalog(db *sql.DB) *PlanCatalog {
	return &PlanCatalog{db: db}
}

// Get returns a plan by id, ErrInvalidPurchase when it does not exist
func (p *PlanCatalog) Get(ctx context.Context, planID string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, currency, credits_included, is_active,
		       sort_order, created_at, updated_at
		FROM bursar.subscription_plans
		WHERE id = $1
	`, planID).Scan(
		&plan.ID, &plan.Name, &plan.PriceCents, &plan.Currency,
		&plan.CreditsIncluded, &plan.IsActive, &plan.SortOrder,
		&plan.CreatedAt, &plan.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidPurchase
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

// ListActive returns the active plans in display order
func (p *PlanCatalog) ListActive(ctx context.Context) ([]models.SubscriptionPlan, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, price_cents, currency, credits_included, is_active,
		       sort_order, created_at, updated_at
		FROM bursar.subscription_plans
		WHERE is_active = true
		ORDER BY price_cents ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.SubscriptionPlan
	for rows.Next() {
		var plan models.SubscriptionPlan
		if err := rows.Scan(
			&plan.ID, &plan.Name, &plan.PriceCents, &plan.Currency,
			&plan.CreditsIncluded, &plan.IsActive, &plan.SortOrder,
			&plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}
