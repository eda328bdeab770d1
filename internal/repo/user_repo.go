// Package repo implements the data persistence layer for the identity
// directory. This file provides repository functions for the User model.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// CreateUser inserts u. The Domain association is never written; DomainID
// must reference an existing row. A duplicate mail surfaces as the raw
// driver error (or gorm.ErrDuplicatedKey when the dialector translates it).
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(u).Error
}

// CountUsers returns the number of user rows.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n, err
}

// CountUsersByDomain returns the number of users referencing domainID.
func CountUsersByDomain(ctx context.Context, db *gorm.DB, domainID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("domain_id = ?", domainID).
		Count(&n).Error
	return n, err
}

// ListUsersByDomainPage returns a page of the users of a domain in insertion
// order. Use CountUsersByDomain for pagination metadata.
func ListUsersByDomainPage(ctx context.Context, db *gorm.DB, domainID uint, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("domain_id = ?", domainID).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FindUserByMail fetches the user owning mail, or ErrNotFound.
func FindUserByMail(ctx context.Context, db *gorm.DB, mail string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("mail = ?", mail).Take(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
