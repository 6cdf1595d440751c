package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"entity-links/models"
	"entity-links/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of authorities requested per search page.
const DefaultPageSize = 100

// Fetcher queries the authority search API. Results are paged through until
// the index reports no more hits.
type Fetcher struct {
	BaseURL  string
	PageSize int
	Logger   *zap.Logger
	client   *http.Client
}

// NewFetcher creates a fetcher for the search API at baseURL.
func NewFetcher(baseURL string, timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		PageSize: DefaultPageSize,
		Logger:   logger,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the name of the provider.
func (f *Fetcher) Name() string {
	return "search"
}

// SearchByNaturalIDs fetches the authorities with any of the natural ids.
func (f *Fetcher) SearchByNaturalIDs(ctx context.Context, tenantID string, naturalIDs []string) ([]models.Authority, error) {
	if len(naturalIDs) == 0 {
		return nil, nil
	}
	return f.search(ctx, tenantID, cqlAnyOf("naturalId", naturalIDs))
}

// SearchByIDs fetches the authorities with the given ids.
func (f *Fetcher) SearchByIDs(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.Authority, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return f.search(ctx, tenantID, cqlAnyOf("id", values))
}

func (f *Fetcher) search(ctx context.Context, tenantID, query string) ([]models.Authority, error) {
	log := f.Logger.With(zap.String("tenant", tenantID))
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var authorities []models.Authority
	for offset := 0; ; offset += pageSize {
		page, err := f.fetchPage(ctx, tenantID, query, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Authorities {
			authorities = append(authorities, mapRecordToModel(rec))
		}
		log.Debug("Authority search page received", zap.Int("count", len(page.Authorities)), zap.Int("offset", offset))

		// natural ids are not unique, every hit counts for ambiguity
		if len(page.Authorities) < pageSize || offset+len(page.Authorities) >= page.TotalRecords {
			break
		}
	}
	log.Info("Authority search finished", zap.Int("found_authorities", len(authorities)))
	return authorities, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, tenantID, query string, limit, offset int) (*AuthorityResponse, error) {
	searchURL := fmt.Sprintf("%s/search/authorities?query=%s&limit=%d&offset=%d",
		f.BaseURL, url.QueryEscape(query), limit, offset)
	f.Logger.Debug("Calling authority search API", zap.String("tenant", tenantID), zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(tenant.HeaderName, tenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authority search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authority search request failed with status: %d", resp.StatusCode)
	}

	var searchResponse AuthorityResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, fmt.Errorf("decode authority search response: %w", err)
	}
	return &searchResponse, nil
}

// cqlAnyOf builds `field==("a" or "b")`.
func cqlAnyOf(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return fmt.Sprintf("%s==(%s)", field, strings.Join(quoted, " or "))
}
