// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription model.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// ActiveSubscription returns the most recent active subscription for a
// profile, or (nil, nil) when the profile has none. Absence of a
// subscription is a normal state for demo and legacy accounts, not an
// error.
func ActiveSubscription(ctx context.Context, db *gorm.DB, profileID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Where("profile_id = ? AND status = ?", profileID, "active").
		Order("created_at desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// AddSubscriptionMinutes accrues consumed minutes against a subscription.
func AddSubscriptionMinutes(ctx context.Context, db *gorm.DB, subscriptionID string, minutes float64) error {
	return db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("minutes_used", gorm.Expr("minutes_used + ?", minutes)).Error
}
