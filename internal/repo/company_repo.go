// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Company
// model. Companies are deduplicated by exact name; the unique index on the
// name column is the correctness mechanism, the lookup before insert is an
// optimization that saves a round-trip in the common case.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

// FindCompanyByName fetches a company by exact (case-sensitive) name, or
// ErrNotFound.
func FindCompanyByName(ctx context.Context, db *gorm.DB, name string) (*domain.Company, error) {
	var c domain.Company
	err := db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCompany inserts a new Company row. Returns ErrDuplicate when a
// company with the same name already exists.
func CreateCompany(ctx context.Context, db *gorm.DB, c *domain.Company) (*domain.Company, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetCompany fetches a company by id, or ErrNotFound.
func GetCompany(ctx context.Context, db *gorm.DB, id string) (*domain.Company, error) {
	var c domain.Company
	err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
