// Package services – DirectoryService
//
// This file implements the read side of the directory: paginated listings of
// domains (with user counts) and of the users belonging to a domain, plus
// aggregate statistics. The one-to-many association between a domain and its
// users is reconstructed by query; no association is stored on the domain.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/entra-ingest/internal/domain"
	"github.com/tbourn/entra-ingest/internal/repo"
	"github.com/tbourn/entra-ingest/internal/utils"
)

// DirectoryRepo defines the repository contract required by DirectoryService.
type DirectoryRepo interface {
	// CountDomains returns the total number of domains for pagination.
	CountDomains(ctx context.Context, db *gorm.DB) (int64, error)

	// ListDomainsPage returns a page of domains with user counts.
	ListDomainsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]repo.DomainSummary, error)

	// GetDomain fetches a domain by id.
	GetDomain(ctx context.Context, db *gorm.DB, id uint) (*domain.Domain, error)

	// CountUsersByDomain returns the number of users of a domain.
	CountUsersByDomain(ctx context.Context, db *gorm.DB, domainID uint) (int64, error)

	// ListUsersByDomainPage returns a page of users of a domain.
	ListUsersByDomainPage(ctx context.Context, db *gorm.DB, domainID uint, offset, limit int) ([]domain.User, error)

	// DirectoryStats returns aggregate counts.
	DirectoryStats(ctx context.Context, db *gorm.DB) (repo.Stats, error)
}

// DirectoryService provides read-only queries over an ingested store.
type DirectoryService struct {
	DB     *gorm.DB
	Repo   DirectoryRepo
	Paging utils.Bounds
}

// NewDirectoryService constructs a DirectoryService with default paging.
func NewDirectoryService(db *gorm.DB, r DirectoryRepo) *DirectoryService {
	return &DirectoryService{DB: db, Repo: r, Paging: utils.DefaultBounds}
}

// ListDomains returns a page of domains ordered by name and the total count.
func (s *DirectoryService) ListDomains(ctx context.Context, page, pageSize int) ([]repo.DomainSummary, int64, error) {
	p := s.Paging.Clamp(utils.Page{Number: page, Size: pageSize})

	total, err := s.Repo.CountDomains(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []repo.DomainSummary{}, 0, nil
	}

	items, err := s.Repo.ListDomainsPage(ctx, s.DB, p.Offset(), p.Size)
	return items, total, err
}

// ListUsers returns the domain, a page of its users and their total count.
// ErrDomainNotFound when the domain does not exist.
func (s *DirectoryService) ListUsers(ctx context.Context, domainID uint, page, pageSize int) (*domain.Domain, []domain.User, int64, error) {
	d, err := s.Repo.GetDomain(ctx, s.DB, domainID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, 0, ErrDomainNotFound
		}
		return nil, nil, 0, err
	}

	total, err := s.Repo.CountUsersByDomain(ctx, s.DB, domainID)
	if err != nil {
		return nil, nil, 0, err
	}
	if total == 0 {
		return d, []domain.User{}, 0, nil
	}

	p := s.Paging.Clamp(utils.Page{Number: page, Size: pageSize})
	users, err := s.Repo.ListUsersByDomainPage(ctx, s.DB, domainID, p.Offset(), p.Size)
	return d, users, total, err
}

// Stats returns domain and user counts and the per-license breakdown.
func (s *DirectoryService) Stats(ctx context.Context) (repo.Stats, error) {
	return s.Repo.DirectoryStats(ctx, s.DB)
}
