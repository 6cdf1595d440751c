package services

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"entity-links/models"
	"entity-links/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultStatsLimit = 100
	maxStatsLimit     = 1000
)

// LinkRepository is the link persistence the linking service needs.
type LinkRepository interface {
	FindByInstanceID(ctx context.Context, instanceID uuid.UUID) ([]models.InstanceAuthorityLink, error)
	FindAllByID(ctx context.Context, ids []int64) ([]models.InstanceAuthorityLink, error)
	SaveAll(ctx context.Context, links []models.InstanceAuthorityLink) ([]models.InstanceAuthorityLink, error)
	DeleteAllInBatch(ctx context.Context, links []models.InstanceAuthorityLink) error
	CountByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error)
	FindStats(ctx context.Context, q models.LinkStatsQuery, limit int) ([]models.InstanceAuthorityLink, error)
	DeleteByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	UpdateStatusByAuthorityIDs(ctx context.Context, ids []uuid.UUID, status models.LinkStatus) (int64, error)
}

// Transactor runs fn atomically. Repository calls made with the context
// passed to fn join the transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuthorityVerifier looks up authorities across the local and central tenant.
type AuthorityVerifier interface {
	Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Authority, error)
	IsConsortiumMember(ctx context.Context) bool
	CentralTenant() string
}

// LinkService maintains the persisted links of instances.
type LinkService struct {
	links       LinkRepository
	tx          Transactor
	authorities AuthorityVerifier
	metrics     *Metrics
	logger      *zap.Logger
}

func NewLinkService(links LinkRepository, tx Transactor, authorities AuthorityVerifier, metrics *Metrics, logger *zap.Logger) *LinkService {
	return &LinkService{links: links, tx: tx, authorities: authorities, metrics: metrics, logger: logger}
}

// GetLinks returns the links of an instance. Natural ids missing on links
// to shared authorities are filled from the central tenant.
func (s *LinkService) GetLinks(ctx context.Context, instanceID uuid.UUID) ([]models.InstanceAuthorityLink, error) {
	links, err := s.links.FindByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !s.authorities.IsConsortiumMember(ctx) {
		return links, nil
	}

	var missing []uuid.UUID
	for _, l := range links {
		if l.AuthorityNaturalID == "" {
			missing = append(missing, l.AuthorityID)
		}
	}
	if len(missing) == 0 {
		return links, nil
	}
	shared, err := s.authorities.Existing(tenant.With(ctx, s.authorities.CentralTenant()), missing)
	if err != nil {
		return nil, err
	}
	for i := range links {
		if a, ok := shared[links[i].AuthorityID]; ok && links[i].AuthorityNaturalID == "" {
			links[i].AuthorityNaturalID = a.NaturalID
		}
	}
	return links, nil
}

// UpdateLinks replaces the links of an instance with incoming. Creates,
// updates and deletes are committed together or not at all.
func (s *LinkService) UpdateLinks(ctx context.Context, instanceID uuid.UUID, incoming []models.InstanceAuthorityLink) (ReconcilePlan, error) {
	log := s.logger.With(zap.String("tenant", tenant.From(ctx)), zap.Stringer("instanceId", instanceID))
	log.Info("Updating instance links", zap.Int("incoming", len(incoming)))

	if err := validateIncomingLinks(instanceID, incoming); err != nil {
		log.Warn("Rejected instance links", zap.Error(err))
		return ReconcilePlan{}, err
	}

	var plan ReconcilePlan
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		links, err := s.verifyAuthorities(ctx, incoming)
		if err != nil {
			return err
		}

		existing, err := s.links.FindByInstanceID(ctx, instanceID)
		if err != nil {
			return err
		}
		plan = Reconcile(existing, links)

		if err := s.links.DeleteAllInBatch(ctx, plan.ToDelete); err != nil {
			return err
		}
		toSave := append(append([]models.InstanceAuthorityLink{}, plan.ToCreate...), plan.ToUpdate...)
		saved, err := s.links.SaveAll(ctx, toSave)
		if err != nil {
			return err
		}
		copy(plan.ToCreate, saved[:len(plan.ToCreate)])
		return nil
	})
	if err != nil {
		return ReconcilePlan{}, err
	}

	s.metrics.reconciliation("create", len(plan.ToCreate))
	s.metrics.reconciliation("update", len(plan.ToUpdate))
	s.metrics.reconciliation("delete", len(plan.ToDelete))
	log.Info("Instance links updated",
		zap.Int("created", len(plan.ToCreate)),
		zap.Int("updated", len(plan.ToUpdate)),
		zap.Int("deleted", len(plan.ToDelete)))
	return plan, nil
}

var bibTagRE = regexp.MustCompile(`^\d{3}$`)

// validateIncomingLinks reports every link that belongs to another instance
// or carries a malformed tag, rule id or status.
func validateIncomingLinks(instanceID uuid.UUID, incoming []models.InstanceAuthorityLink) error {
	var params []models.Parameter
	for _, l := range incoming {
		if l.InstanceID != instanceID {
			params = append(params, models.Parameter{Key: "instanceId", Value: l.InstanceID.String()})
		}
		if !bibTagRE.MatchString(l.BibRecordTag) {
			params = append(params, models.Parameter{Key: "bibRecordTag", Value: l.BibRecordTag})
		}
		if l.LinkingRuleID <= 0 {
			params = append(params, models.Parameter{Key: "linkingRuleId", Value: strconv.Itoa(l.LinkingRuleID)})
		}
		if l.Status != "" && !l.Status.Valid() {
			params = append(params, models.Parameter{Key: "status", Value: string(l.Status)})
		}
	}
	if len(params) == 0 {
		return nil
	}
	return models.NewValidationError("Invalid links for instance "+instanceID.String(), params...)
}

// verifyAuthorities fails with a NotFoundError naming every unknown
// authority and fills natural ids missing on incoming links.
func (s *LinkService) verifyAuthorities(ctx context.Context, incoming []models.InstanceAuthorityLink) ([]models.InstanceAuthorityLink, error) {
	if len(incoming) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, l := range incoming {
		if !seen[l.AuthorityID] {
			seen[l.AuthorityID] = true
			ids = append(ids, l.AuthorityID)
		}
	}

	found, err := s.authorities.Existing(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, &models.NotFoundError{Entity: "authority", IDs: missing}
	}

	links := make([]models.InstanceAuthorityLink, len(incoming))
	for i, l := range incoming {
		if l.AuthorityNaturalID == "" {
			l.AuthorityNaturalID = found[l.AuthorityID].NaturalID
		}
		links[i] = l
	}
	return links, nil
}

// CountLinksByAuthorityIDs returns the number of links per authority with
// zero for authorities without links. Consortium members also count the
// links held by the central tenant.
func (s *LinkService) CountLinksByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts, err := s.links.CountByAuthorityIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if s.authorities.IsConsortiumMember(ctx) {
		central, err := s.links.CountByAuthorityIDs(tenant.With(ctx, s.authorities.CentralTenant()), ids)
		if err != nil {
			return nil, err
		}
		for id, n := range central {
			counts[id] += n
		}
	}
	for _, id := range ids {
		if _, ok := counts[id]; !ok {
			counts[id] = 0
		}
	}
	return counts, nil
}

// LinkStats returns one page of links ordered by update time, newest first.
// Next is the update time to pass as To for the following page.
func (s *LinkService) LinkStats(ctx context.Context, q models.LinkStatsQuery) (models.LinkStats, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return models.LinkStats{}, models.NewValidationError("'to' date should be not less than 'from' date",
			models.Parameter{Key: "from", Value: q.From.Format(time.RFC3339)},
			models.Parameter{Key: "to", Value: q.To.Format(time.RFC3339)})
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultStatsLimit
	}
	if limit > maxStatsLimit {
		limit = maxStatsLimit
	}

	links, err := s.links.FindStats(ctx, q, limit+1)
	if err != nil {
		return models.LinkStats{}, err
	}
	stats := models.LinkStats{Links: links}
	if len(links) > limit {
		next := links[limit].UpdatedAt
		stats.Next = &next
		stats.Links = links[:limit]
	}
	return stats, nil
}

// DeleteByAuthorityIDs removes every link to the given authorities.
func (s *LinkService) DeleteByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	n, err := s.links.DeleteByAuthorityIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.metrics.reconciliation("delete", int(n))
	return n, nil
}

// SetActualStatusByAuthorityIDs marks every link to the given authorities ACTUAL.
func (s *LinkService) SetActualStatusByAuthorityIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return s.links.UpdateStatusByAuthorityIDs(ctx, ids, models.LinkStatusActual)
}
