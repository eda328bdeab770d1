// Directory HTTP handlers.
//
// This file exposes read-only REST endpoints over an ingested store:
//   - GET /domains                 (list, paginated, ETag support)
//   - GET /domains/{id}/users      (users of one domain, paginated)
//   - GET /stats                   (counts and users per license)
//
// Handlers are transport-thin: they validate input, call the directory
// service, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/entra-ingest/internal/domain"
	"github.com/tbourn/entra-ingest/internal/repo"
	"github.com/tbourn/entra-ingest/internal/services"
	"github.com/tbourn/entra-ingest/internal/utils"
)

// DirectoryService defines the read operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DirectoryService interface {
	// ListDomains returns a page of domains with user counts and the total.
	ListDomains(ctx context.Context, page, pageSize int) ([]repo.DomainSummary, int64, error)
	// ListUsers returns a domain, a page of its users and their total.
	ListUsers(ctx context.Context, domainID uint, page, pageSize int) (*domain.Domain, []domain.User, int64, error)
	// Stats returns aggregate counts.
	Stats(ctx context.Context) (repo.Stats, error)
}

// Handlers groups the directory HTTP endpoints.
type Handlers struct {
	dirSvc DirectoryService
}

// New constructs and returns a Handlers instance bound to the given service.
func New(dirSvc DirectoryService) *Handlers {
	return &Handlers{dirSvc: dirSvc}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDomainsResponse wraps a page of domains and pagination information.
type ListDomainsResponse struct {
	Domains    []repo.DomainSummary `json:"domains"`
	Pagination Pagination           `json:"pagination"`
}

// ListUsersResponse wraps a domain, a page of its users and pagination
// information.
type ListUsersResponse struct {
	Domain     domain.Domain `json:"domain"`
	Users      []domain.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

func pageOf(c *gin.Context) utils.Page {
	return utils.DefaultBounds.Parse(c.Query("page"), c.Query("page_size"))
}

func paginate(p utils.Page, total int64) Pagination {
	return Pagination{
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: p.TotalPages(total),
		HasNext:    p.HasNext(total),
	}
}

//
// Handlers
//

// ListDomains returns a page of domains ordered by name, each with the
// number of users referencing it. The store is append-only, so the pair
// (domains, users) is a valid weak ETag for the whole listing.
func (h *Handlers) ListDomains(c *gin.Context) {
	ctx := c.Request.Context()
	p := pageOf(c)

	if st, err := h.dirSvc.Stats(ctx); err == nil {
		etag := fmt.Sprintf(`W/"domains:%d:%d:%d:%d"`, st.Domains, st.Users, p.Number, p.Size)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.dirSvc.ListDomains(ctx, p.Number, p.Size)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list domains")
		return
	}
	ok(c, http.StatusOK, ListDomainsResponse{
		Domains:    items,
		Pagination: paginate(p, total),
	})
}

// ListDomainUsers returns the users of one domain in insertion order.
func (h *Handlers) ListDomainUsers(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "domain id must be a positive integer")
		return
	}
	p := pageOf(c)

	d, users, total, err := h.dirSvc.ListUsers(c.Request.Context(), uint(id), p.Number, p.Size)
	if err != nil {
		if errors.Is(err, services.ErrDomainNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "domain not found")
			return
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list users")
		return
	}
	ok(c, http.StatusOK, ListUsersResponse{
		Domain:     *d,
		Users:      users,
		Pagination: paginate(p, total),
	})
}

// Stats returns the number of domains and users and the users per license.
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.dirSvc.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not compute stats")
		return
	}
	if st.Licenses == nil {
		st.Licenses = []repo.LicenseCount{}
	}
	ok(c, http.StatusOK, st)
}
