package services

import (
	"context"
	"errors"
	"fmt"

	"entity-links/models"
	"entity-links/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportLinkRepository is the link persistence the report service needs.
type ReportLinkRepository interface {
	FindAllByID(ctx context.Context, ids []int64) ([]models.InstanceAuthorityLink, error)
	SaveAll(ctx context.Context, links []models.InstanceAuthorityLink) ([]models.InstanceAuthorityLink, error)
}

// ReportService applies job completion reports to persisted links.
type ReportService struct {
	links   ReportLinkRepository
	tx      Transactor
	metrics *Metrics
	logger  *zap.Logger
}

func NewReportService(links ReportLinkRepository, tx Transactor, metrics *Metrics, logger *zap.Logger) *ReportService {
	return &ReportService{links: links, tx: tx, metrics: metrics, logger: logger}
}

type reportGroup struct {
	tenant  string
	jobID   uuid.UUID
	reports []models.LinkUpdateReport
}

// Apply processes reports grouped by tenant and then by job id. An invalid
// batch is rejected as a whole before anything is written. A failing group
// does not stop the others; all group errors are returned joined.
func (s *ReportService) Apply(ctx context.Context, reports []models.LinkUpdateReport) error {
	if err := models.ValidateReports(reports); err != nil {
		s.logger.Warn("Rejected link update reports", zap.Error(err))
		return err
	}
	var errs []error
	for _, g := range groupReports(reports) {
		log := s.logger.With(zap.String("tenant", g.tenant), zap.Stringer("jobId", g.jobID))
		updated, err := s.applyGroup(tenant.With(ctx, g.tenant), g)
		if err != nil {
			log.Error("Failed to apply link update reports", zap.Error(err))
			errs = append(errs, fmt.Errorf("apply reports of job %s for tenant %s: %w", g.jobID, g.tenant, err))
			continue
		}
		log.Info("Link update reports applied", zap.Int("reports", len(g.reports)), zap.Int("updatedLinks", updated))
	}
	return errors.Join(errs...)
}

func (s *ReportService) applyGroup(ctx context.Context, g reportGroup) (int, error) {
	var ids []int64
	seen := map[int64]bool{}
	for _, r := range g.reports {
		for _, id := range r.LinkIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var updated int
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		links, err := s.links.FindAllByID(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[int64]*models.InstanceAuthorityLink, len(links))
		for i := range links {
			byID[links[i].ID] = &links[i]
		}

		changed := map[int64]bool{}
		for _, r := range g.reports {
			status, cause := r.LinkStatus(), r.ErrorCause()
			for _, id := range r.LinkIDs {
				link, ok := byID[id]
				if !ok {
					continue
				}
				if link.Status != status || !sameCause(link.ErrorCause, cause) {
					link.Status = status
					link.ErrorCause = cause
					changed[id] = true
				}
			}
		}

		var toSave []models.InstanceAuthorityLink
		for _, l := range links {
			if changed[l.ID] {
				toSave = append(toSave, l)
			}
		}
		if _, err := s.links.SaveAll(ctx, toSave); err != nil {
			return err
		}
		updated = len(toSave)
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, r := range g.reports {
		if len(r.LinkIDs) > 0 {
			s.metrics.reportApplied(string(r.Status))
		}
	}
	return updated, nil
}

// groupReports keeps the order in which tenants and jobs first appear.
func groupReports(reports []models.LinkUpdateReport) []reportGroup {
	var groups []reportGroup
	index := map[string]map[uuid.UUID]int{}
	for _, r := range reports {
		jobs, ok := index[r.Tenant]
		if !ok {
			jobs = map[uuid.UUID]int{}
			index[r.Tenant] = jobs
		}
		i, ok := jobs[r.JobID]
		if !ok {
			i = len(groups)
			jobs[r.JobID] = i
			groups = append(groups, reportGroup{tenant: r.Tenant, jobID: r.JobID})
		}
		groups[i].reports = append(groups[i].reports, r)
	}

	// tenant-major order
	ordered := make([]reportGroup, 0, len(groups))
	done := map[string]bool{}
	for _, g := range groups {
		if done[g.tenant] {
			continue
		}
		done[g.tenant] = true
		for _, other := range groups {
			if other.tenant == g.tenant {
				ordered = append(ordered, other)
			}
		}
	}
	return ordered
}

func sameCause(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
