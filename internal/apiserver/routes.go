package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/biopkg/bdp/internal/blobstore"
	"github.com/biopkg/bdp/internal/config"
	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/ingest"
	"github.com/biopkg/bdp/internal/jobs"
	"github.com/biopkg/bdp/internal/models"
	"github.com/biopkg/bdp/internal/resolve"
	"github.com/biopkg/bdp/internal/search"
)

// Dependencies holds the services route handlers need: the relational
// metadata store (both the GORM handle and the raw pgx pool backing the
// search and job-status read models), the blob store, the JWT service
// used to authenticate mutating requests, and the admin credential gating
// the manual ingestion-trigger route.
type Dependencies struct {
	DB       *gorm.DB
	PG       *dbpg.PostgresDB
	Store    *blobstore.Store
	JWT      *JWTService
	GrantTTL time.Duration
	Admin    config.AdminConfig
	Ingest   *ingest.Dependencies
}

// scopeIngestWrite is the single scope the admin ingestion-trigger route
// requires; BasicAuthMiddleware authenticates the operator, grantScopes
// then grants it so RequireScope has something to check, matching how a
// real OIDC/JWT authority would set scopes on the context.
const scopeIngestWrite = "ingest:write"

// grantScopes stores a fixed scope set on the context for a route, used
// after an authentication middleware that doesn't itself carry scopes
// (HTTP Basic Auth has none) so RequireScope has a uniform place to read
// from regardless of which authentication method preceded it.
func grantScopes(scopes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			SetScopes(c, scopes)
			return next(c)
		}
	}
}

// envelope is the uniform {success, data, error} response shape used across
// the API.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c echo.Context, status int, err error) error {
	return c.JSON(status, envelope{Success: false, Error: err.Error()})
}

// statusForError maps a models.Error category onto an HTTP status code.
func statusForError(err error) int {
	var bdpErr *models.Error
	if e, ok := err.(*models.Error); ok {
		bdpErr = e
	} else {
		return http.StatusInternalServerError
	}
	switch bdpErr.Category {
	case models.CategoryNotFound:
		return http.StatusNotFound
	case models.CategoryConflict:
		return http.StatusConflict
	case models.CategoryInputInvalid:
		return http.StatusBadRequest
	case models.CategoryNotInitialized, models.CategoryAlreadyInit:
		return http.StatusUnprocessableEntity
	case models.CategoryIntegrityFailure:
		return http.StatusUnprocessableEntity
	case models.CategoryCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c echo.Context, err error) error {
	return fail(c, statusForError(err), err)
}

// RegisterRoutes wires the /api/v1 route table: organizations, manifest
// resolution, search, job/sync-status read models, and data-source
// download redirection. The server-side hash-chained audit ledger lives
// client-side only (internal/audit); state-changing routes here record
// into dbpg's AuditLogRepository instead.
func RegisterRoutes(e *echo.Echo, deps *Dependencies) {
	orgs := dbpg.NewOrganizationRepository(deps.DB)
	entries := dbpg.NewRegistryEntryRepository(deps.DB)
	versions := dbpg.NewVersionRepository(deps.DB)
	audits := dbpg.NewAuditLogRepository(deps.DB)
	resolver := resolve.NewResolver(orgs, entries, versions, deps.Store, deps.GrantTTL)

	// recordAudit captures a state-changing call's actor and request
	// metadata after the mutation commits. A mutation that succeeded is
	// never rolled back because its audit row failed to write.
	recordAudit := func(c echo.Context, action models.AuditAction, resourceType, resourceID string, before, after interface{}) {
		entry := &models.AuditLogEntry{
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IP:           c.RealIP(),
			UserAgent:    c.Request().UserAgent(),
		}
		if user, ok := GetUser(c); ok {
			entry.Actor = user.ID
		}
		if before != nil {
			if b, err := json.Marshal(before); err == nil {
				entry.Before = string(b)
			}
		}
		if after != nil {
			if b, err := json.Marshal(after); err == nil {
				entry.After = string(b)
			}
		}
		_ = audits.Record(c.Request().Context(), entry)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return ok(c, http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")

	v1.GET("/health", func(c echo.Context) error {
		return ok(c, http.StatusOK, "OK")
	})

	v1.GET("/organizations", func(c echo.Context) error {
		page, perPage := pagingParams(c)
		list, total, err := orgs.List(c.Request().Context(), page, perPage)
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, map[string]interface{}{"items": list, "total": total})
	})

	v1.GET("/organizations/:slug", func(c echo.Context) error {
		org, err := orgs.GetBySlug(c.Request().Context(), c.Param("slug"))
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, org)
	})

	v1.POST("/organizations", func(c echo.Context) error {
		var org models.Organization
		if err := c.Bind(&org); err != nil {
			return fail(c, http.StatusBadRequest, err)
		}
		if err := orgs.Create(c.Request().Context(), &org); err != nil {
			return respondError(c, err)
		}
		recordAudit(c, models.AuditCreate, "organization", org.ID, nil, org)
		return ok(c, http.StatusCreated, org)
	}, RequireJWT(deps.JWT))

	v1.PUT("/organizations/:slug", func(c echo.Context) error {
		before, err := orgs.GetBySlug(c.Request().Context(), c.Param("slug"))
		if err != nil {
			return respondError(c, err)
		}
		var org models.Organization
		if err := c.Bind(&org); err != nil {
			return fail(c, http.StatusBadRequest, err)
		}
		org.ID = before.ID
		org.Slug = before.Slug
		if err := orgs.Update(c.Request().Context(), &org); err != nil {
			return respondError(c, err)
		}
		recordAudit(c, models.AuditUpdate, "organization", org.ID, before, org)
		return ok(c, http.StatusOK, org)
	}, RequireJWT(deps.JWT))

	v1.DELETE("/organizations/:id", func(c echo.Context) error {
		if err := orgs.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return respondError(c, err)
		}
		recordAudit(c, models.AuditDelete, "organization", c.Param("id"), nil, nil)
		return c.NoContent(http.StatusNoContent)
	}, RequireJWT(deps.JWT))

	v1.POST("/resolve", func(c echo.Context) error {
		var req resolve.Request
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, err)
		}
		result, err := resolver.Resolve(c.Request().Context(), req)
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, result)
	})

	v1.GET("/search", func(c echo.Context) error {
		page, perPage := pagingParams(c)
		q := search.Query{
			Text:       c.QueryParam("query"),
			TypeFilter: c.QueryParam("type_filter"),
			Organism:   c.QueryParam("organism"),
			Format:     c.QueryParam("format"),
			Page:       page,
			PerPage:    perPage,
		}
		results, total, err := search.Search(c.Request().Context(), deps.PG, q)
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, map[string]interface{}{"items": results, "total": total})
	})

	v1.GET("/jobs", func(c echo.Context) error {
		page, perPage := pagingParams(c)
		list, total, err := jobs.ListJobs(c.Request().Context(), deps.PG, jobs.JobFilter{
			OrganizationID: c.QueryParam("organization_id"),
			Status:         c.QueryParam("status"),
			JobType:        c.QueryParam("job_type"),
			SortBy:         c.QueryParam("sort_by"),
			Page:           page,
			PerPage:        perPage,
		})
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, map[string]interface{}{"items": list, "total": total})
	})

	v1.GET("/jobs/:id", func(c echo.Context) error {
		job, err := jobs.GetJob(c.Request().Context(), deps.PG, c.Param("id"))
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, job)
	})

	v1.GET("/sync-status", func(c echo.Context) error {
		list, err := jobs.ListSyncStatus(c.Request().Context(), deps.PG)
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, map[string]interface{}{"items": list})
	})

	v1.GET("/sync-status/:org", func(c echo.Context) error {
		org, err := orgs.GetBySlug(c.Request().Context(), c.Param("org"))
		if err != nil {
			return respondError(c, err)
		}
		status, err := jobs.GetSyncStatus(c.Request().Context(), deps.PG, org.ID)
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, status)
	})

	v1.GET("/data-sources/:org/:name/:version", func(c echo.Context) error {
		_, entry, err := entries.GetByOrgAndSlug(c.Request().Context(), c.Param("org"), c.Param("name"))
		if err != nil {
			return respondError(c, err)
		}
		version, err := versions.ByVersionString(c.Request().Context(), entry.ID, c.Param("version"))
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, version)
	})

	v1.GET("/data-sources/:org/:name/:version/download", func(c echo.Context) error {
		_, entry, err := entries.GetByOrgAndSlug(c.Request().Context(), c.Param("org"), c.Param("name"))
		if err != nil {
			return respondError(c, err)
		}
		version, err := versions.ByVersionString(c.Request().Context(), entry.ID, c.Param("version"))
		if err != nil {
			return respondError(c, err)
		}
		file, err := versions.FileByFormat(c.Request().Context(), version.ID, c.QueryParam("format"))
		if err != nil {
			return respondError(c, err)
		}
		url, err := deps.Store.PresignedGet(c.Request().Context(), file.StorageKey, deps.GrantTTL)
		if err != nil {
			return respondError(c, err)
		}
		return c.Redirect(http.StatusFound, url)
	})

	basicAuth := BasicAuthMiddleware(BasicAuthConfig{
		Username:     deps.Admin.Username,
		PasswordHash: deps.Admin.PasswordHash,
		Realm:        "bdp-admin",
	})

	v1.POST("/admin/ingest", func(c echo.Context) error {
		if deps.Ingest == nil {
			return fail(c, http.StatusServiceUnavailable, models.Fatal(nil, "ingestion is not configured on this server"))
		}
		var req ingest.Request
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, err)
		}
		result, err := ingest.RunDiscoveryAndIngest(c.Request().Context(), deps.Ingest, req)
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, http.StatusOK, result)
	}, basicAuth, grantScopes(scopeIngestWrite), RequireScope(scopeIngestWrite))
}

func pagingParams(c echo.Context) (page, perPage int) {
	page, perPage = 1, 50
	if p := c.QueryParam("page"); p != "" {
		if v, err := parsePositiveInt(p); err == nil {
			page = v
		}
	}
	if p := c.QueryParam("per_page"); p != "" {
		if v, err := parsePositiveInt(p); err == nil && v <= 200 {
			perPage = v
		}
	}
	return page, perPage
}
