// Package repo implements the data persistence layer for the identity
// directory. This file provides small aggregate queries used by the
// directory API and by the ingest run summary.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// LicenseCount is the number of users holding one license state.
type LicenseCount struct {
	License string `json:"license"`
	Users   int64  `json:"users"`
}

// Stats summarizes the contents of a store.
type Stats struct {
	Domains  int64          `json:"domains"`
	Users    int64          `json:"users"`
	Licenses []LicenseCount `json:"licenses"`
}

// DirectoryStats returns row counts for both tables and the number of users
// per license, ordered by license name.
func DirectoryStats(ctx context.Context, db *gorm.DB) (Stats, error) {
	var s Stats
	var err error
	if s.Domains, err = CountDomains(ctx, db); err != nil {
		return Stats{}, err
	}
	if s.Users, err = CountUsers(ctx, db); err != nil {
		return Stats{}, err
	}
	err = db.WithContext(ctx).
		Model(&domain.User{}).
		Select("license, COUNT(*) AS users").
		Group("license").
		Order("license ASC").
		Scan(&s.Licenses).Error
	if err != nil {
		return Stats{}, err
	}
	return s, nil
}
