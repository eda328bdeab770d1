// Package repo implements the data persistence layer for the identity
// directory, backed by GORM. This file provides repository functions for the
// Domain model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a domain is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// DomainSummary is a domain row together with the number of users that
// reference it.
type DomainSummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	UserCount int64  `json:"user_count"`
}

// FindDomainID returns the id of the domain whose name matches exactly, or
// ErrNotFound.
func FindDomainID(ctx context.Context, db *gorm.DB, name string) (uint, error) {
	var d domain.Domain
	err := db.WithContext(ctx).
		Select("id").
		Where("name = ?", name).
		Take(&d).Error
	if err != nil {
		return 0, err
	}
	return d.ID, nil
}

// CreateDomain inserts a new domain row and returns it with its assigned id.
func CreateDomain(ctx context.Context, db *gorm.DB, name string) (*domain.Domain, error) {
	d := &domain.Domain{Name: name}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDomain fetches a domain by id, or ErrNotFound.
func GetDomain(ctx context.Context, db *gorm.DB, id uint) (*domain.Domain, error) {
	var d domain.Domain
	if err := db.WithContext(ctx).Take(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDomains returns the number of domain rows.
func CountDomains(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Domain{}).Count(&n).Error
	return n, err
}

// ListDomainsPage returns a page of domains ordered by name, each with the
// count of users referencing it.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListDomainsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]DomainSummary, error) {
	var out []DomainSummary
	err := db.WithContext(ctx).
		Model(&domain.Domain{}).
		Select("domains.id AS id, domains.name AS name, COUNT(users.id) AS user_count").
		Joins("LEFT JOIN users ON users.domain_id = domains.id").
		Group("domains.id, domains.name").
		Order("domains.name ASC").
		Offset(offset).
		Limit(limit).
		Scan(&out).Error
	return out, err
}
