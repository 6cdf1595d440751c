package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"entity-links/models"
	"entity-links/services"
	"entity-links/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type api struct {
	rules       *services.RuleService
	suggestions *services.SuggestionService
	links       *services.LinkService
	reports     *services.ReportService
	log         *zap.Logger
}

type linksBody struct {
	Links []models.InstanceAuthorityLink `json:"links"`
}

type idsBody struct {
	IDs []uuid.UUID `json:"ids"`
}

type linksCount struct {
	ID         uuid.UUID `json:"id"`
	TotalLinks int64     `json:"totalLinks"`
}

// respondError maps domain errors onto status codes and the APIError body.
func (a *api) respondError(c *gin.Context, err error) {
	var (
		validation *models.ValidationError
		notFound   *models.NotFoundError
		lock       *models.OptimisticLockError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, models.APIError{
			Code: models.ErrorCodeValidation, Message: validation.Message, Parameters: validation.Parameters,
		})
	case errors.As(err, &notFound):
		params := make([]models.Parameter, 0, len(notFound.IDs))
		for _, id := range notFound.IDs {
			params = append(params, models.Parameter{Key: "id", Value: id})
		}
		c.JSON(http.StatusNotFound, models.APIError{Code: models.ErrorCodeNotFound, Message: err.Error(), Parameters: params})
	case errors.As(err, &lock):
		c.JSON(http.StatusConflict, models.APIError{Code: models.ErrorCodeOptimisticLock, Message: err.Error()})
	default:
		a.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIError{Code: models.ErrorCodeInternalServer, Message: "internal server error"})
	}
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.APIError{Code: code, Message: message})
}

func setupRuleRoutes(router *gin.Engine, a *api) {
	rg := router.Group("/linking-rules/instance-authority")

	rg.GET("", func(c *gin.Context) {
		rules, err := a.rules.Rules(c.Request.Context())
		if err != nil {
			a.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rules)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			badRequest(c, models.ErrorCodeInvalidIDFormat, "rule id must be an integer")
			return
		}
		rule, err := a.rules.Rule(c.Request.Context(), id)
		if err != nil {
			a.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rule)
	})

	rg.PATCH("/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			badRequest(c, models.ErrorCodeInvalidIDFormat, "rule id must be an integer")
			return
		}
		var patch models.LinkingRulePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, models.ErrorCodeInvalidJSON, "invalid request body")
			return
		}
		rule, err := a.rules.Patch(c.Request.Context(), id, patch)
		if err != nil {
			a.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rule)
	})
}

func setupLinkRoutes(router *gin.Engine, a *api) {
	rg := router.Group("/links")

	rg.GET("/instances/:instanceId", func(c *gin.Context) {
		instanceID, err := uuid.Parse(c.Param("instanceId"))
		if err != nil {
			badRequest(c, models.ErrorCodeInvalidIDFormat, "instance id must be a UUID")
			return
		}
		links, err := a.links.GetLinks(c.Request.Context(), instanceID)
		if err != nil {
			a.respondError(c, err)
			return
		}
		if links == nil {
			links = []models.InstanceAuthorityLink{}
		}
		c.JSON(http.StatusOK, gin.H{"links": links, "totalRecords": len(links)})
	})

	rg.PUT("/instances/:instanceId", func(c *gin.Context) {
		instanceID, err := uuid.Parse(c.Param("instanceId"))
		if err != nil {
			badRequest(c, models.ErrorCodeInvalidIDFormat, "instance id must be a UUID")
			return
		}
		var body linksBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, models.ErrorCodeInvalidJSON, "invalid request body")
			return
		}
		if _, err := a.links.UpdateLinks(c.Request.Context(), instanceID, body.Links); err != nil {
			a.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	rg.POST("/authorities/bulk/count", func(c *gin.Context) {
		var body idsBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, models.ErrorCodeInvalidJSON, "invalid request body")
			return
		}
		counts, err := a.links.CountLinksByAuthorityIDs(c.Request.Context(), body.IDs)
		if err != nil {
			a.respondError(c, err)
			return
		}
		out := make([]linksCount, 0, len(counts))
		seen := make(map[uuid.UUID]bool, len(body.IDs))
		for _, id := range body.IDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, linksCount{ID: id, TotalLinks: counts[id]})
			}
		}
		c.JSON(http.StatusOK, gin.H{"links": out})
	})

	rg.POST("/authorities/bulk/delete", func(c *gin.Context) {
		var body idsBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, models.ErrorCodeInvalidJSON, "invalid request body")
			return
		}
		n, err := a.links.DeleteByAuthorityIDs(c.Request.Context(), body.IDs)
		if err != nil {
			a.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	})

	rg.POST("/authorities/bulk/actualize", func(c *gin.Context) {
		var body idsBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, models.ErrorCodeInvalidJSON, "invalid request body")
			return
		}
		n, err := a.links.SetActualStatusByAuthorityIDs(c.Request.Context(), body.IDs)
		if err != nil {
			a.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	})

	rg.GET("/stats/instance", func(c *gin.Context) {
		q, err := parseStatsQuery(c)
		if err != nil {
			a.respondError(c, err)
			return
		}
		stats, err := a.links.LinkStats(c.Request.Context(), q)
		if err != nil {
			a.respondError(c, err)
			return
		}
		if stats.Links == nil {
			stats.Links = []models.InstanceAuthorityLink{}
		}
		c.JSON(http.StatusOK, stats)
	})
}

// parseStatsQuery reads status, fromDate, toDate and limit. Every malformed
// parameter is reported at once.
func parseStatsQuery(c *gin.Context) (models.LinkStatsQuery, error) {
	var (
		q      models.LinkStatsQuery
		params []models.Parameter
	)
	if raw := c.Query("status"); raw != "" {
		status := models.LinkStatus(raw)
		if status.Valid() {
			q.Status = &status
		} else {
			params = append(params, models.Parameter{Key: "status", Value: raw})
		}
	}
	dates := []struct {
		key string
		dst **time.Time
	}{{"fromDate", &q.From}, {"toDate", &q.To}}
	for _, d := range dates {
		raw := c.Query(d.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			params = append(params, models.Parameter{Key: d.key, Value: raw})
			continue
		}
		*d.dst = &t
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			params = append(params, models.Parameter{Key: "limit", Value: raw})
		} else {
			q.Limit = limit
		}
	}
	if len(params) > 0 {
		return q, models.NewValidationError("invalid query parameters", params...)
	}
	return q, nil
}

func setupSuggestionRoutes(router *gin.Engine, a *api) {
	router.POST("/links-suggestions/marc", func(c *gin.Context) {
		param := models.AuthoritySearchParameter(c.DefaultQuery("authoritySearchParameter", string(models.SearchByNaturalID)))
		if param != models.SearchByNaturalID && param != models.SearchByID {
			a.respondError(c, models.NewValidationError("unknown authority search parameter",
				models.Parameter{Key: "authoritySearchParameter", Value: string(param)}))
			return
		}
		ignore, err := strconv.ParseBool(c.DefaultQuery("ignoreAutoLinkingEnabled", "false"))
		if err != nil {
			a.respondError(c, models.NewValidationError("ignoreAutoLinkingEnabled must be a boolean",
				models.Parameter{Key: "ignoreAutoLinkingEnabled", Value: c.Query("ignoreAutoLinkingEnabled")}))
			return
		}
		var body models.ParsedRecordCollection
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, models.ErrorCodeInvalidJSON, "invalid request body")
			return
		}
		records, err := a.suggestions.SuggestLinks(c.Request.Context(), body.Records, param, ignore)
		if err != nil {
			a.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ParsedRecordCollection{Records: records})
	})
}

func setupReportRoutes(router *gin.Engine, a *api) {
	router.POST("/links/reports", func(c *gin.Context) {
		var reports []models.LinkUpdateReport
		if err := c.ShouldBindJSON(&reports); err != nil {
			badRequest(c, models.ErrorCodeInvalidJSON, "invalid request body")
			return
		}
		requestTenant := tenant.From(c.Request.Context())
		for i := range reports {
			if reports[i].Tenant == "" {
				reports[i].Tenant = requestTenant
			}
		}
		if err := a.reports.Apply(c.Request.Context(), reports); err != nil {
			a.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
