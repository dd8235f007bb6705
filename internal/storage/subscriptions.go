package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// GetSubscription satisfies tier.SubscriptionStore.
func (c *Client) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	row := c.Pool.QueryRow(ctx,
		`SELECT user_id, tier, status, period_end FROM subscriptions WHERE user_id = $1`, userID)

	var sub models.Subscription
	var tier string
	if err := row.Scan(&sub.UserID, &tier, &sub.Status, &sub.PeriodEnd); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sub.Tier = models.Tier(tier)
	return &sub, nil
}
