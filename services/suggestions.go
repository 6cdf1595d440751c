package services

import (
	"context"

	"entity-links/models"
	"entity-links/tenant"

	"go.uber.org/zap"
)

// RuleSource provides the linking rules of the current tenant.
type RuleSource interface {
	Rules(ctx context.Context) ([]models.LinkingRule, error)
}

// CandidateResolver maps identifiers to authority candidates.
type CandidateResolver interface {
	Resolve(ctx context.Context, param models.AuthoritySearchParameter, ids []string) (map[string][]models.AuthorityCandidate, error)
}

// SuggestionService fills link details of bib fields with suggested authorities.
type SuggestionService struct {
	rules    RuleSource
	resolver CandidateResolver
	metrics  *Metrics
	logger   *zap.Logger
}

func NewSuggestionService(rules RuleSource, resolver CandidateResolver, metrics *Metrics, logger *zap.Logger) *SuggestionService {
	return &SuggestionService{rules: rules, resolver: resolver, metrics: metrics, logger: logger}
}

type linkableField struct {
	record, field int
	ids           []string
}

// SuggestLinks processes every field of records in order and writes the
// outcome into the fields. Outcome errors are data; the returned error is
// only set for infrastructure failures.
func (s *SuggestionService) SuggestLinks(ctx context.Context, records []models.ParsedRecord, param models.AuthoritySearchParameter, ignoreAutoLinking bool) ([]models.ParsedRecord, error) {
	log := s.logger.With(zap.String("tenant", tenant.From(ctx)), zap.String("searchParameter", string(param)))
	log.Info("Links suggestion started", zap.Int("records", len(records)))

	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}
	rulesByTag := groupRulesByBibField(rules)

	var (
		linkable []linkableField
		allIDs   []string
	)
	for r := range records {
		for f := range records[r].Fields {
			field := &records[r].Fields[f]
			tagRules := rulesByTag[field.Tag]
			if len(tagRules) == 0 {
				continue
			}
			if !ignoreAutoLinking && !anyAutoLinking(tagRules) {
				MarkError(field, models.ErrorCauseDisabledAutoLinking)
				s.metrics.suggestion(string(models.LinkStatusError), models.ErrorCauseDisabledAutoLinking.Name())
				continue
			}
			ids := fieldIdentifiers(*field, param)
			if len(ids) == 0 {
				continue
			}
			linkable = append(linkable, linkableField{record: r, field: f, ids: ids})
			allIDs = append(allIDs, ids...)
		}
	}
	if len(linkable) == 0 {
		log.Info("No linkable fields found")
		return records, nil
	}

	candidates, err := s.resolver.Resolve(ctx, param, dedupe(allIDs))
	if err != nil {
		return nil, err
	}
	log.Debug("Authority candidates resolved", zap.Int("ids", len(allIDs)), zap.Int("matched", len(candidates)))

	for _, lf := range linkable {
		field := &records[lf.record].Fields[lf.field]
		s.suggestField(field, rulesByTag[field.Tag], uniqueCandidates(lf.ids, candidates), ignoreAutoLinking)
	}
	log.Info("Links suggestion finished", zap.Int("linkableFields", len(linkable)))
	return records, nil
}

func (s *SuggestionService) suggestField(field *models.Field, tagRules []models.LinkingRule, candidates []models.AuthorityCandidate, ignoreAutoLinking bool) {
	switch {
	case len(candidates) == 0:
		s.markError(field, models.ErrorCauseNoSuggestions)
		return
	case len(candidates) > 1:
		s.markError(field, models.ErrorCauseMoreThanOneSuggestions)
		return
	}

	candidate := candidates[0]
	rule, authorityField, ok := matchRule(tagRules, candidate, ignoreAutoLinking)
	if !ok || !ValidateAuthorityField(rule, authorityField) {
		s.markError(field, models.ErrorCauseNoSuggestions)
		return
	}
	ApplyLink(field, rule, candidate, authorityField)
	s.metrics.suggestion(string(field.LinkDetails.Status), "")
}

func (s *SuggestionService) markError(field *models.Field, cause models.ErrorCause) {
	MarkError(field, cause)
	s.metrics.suggestion(string(models.LinkStatusError), cause.Name())
}

// matchRule picks the first eligible rule whose authority field occurs
// exactly once on the candidate.
func matchRule(tagRules []models.LinkingRule, candidate models.AuthorityCandidate, ignoreAutoLinking bool) (models.LinkingRule, models.Field, bool) {
	for _, rule := range tagRules {
		if !ignoreAutoLinking && !rule.AutoLinkingEnabled {
			continue
		}
		fields := candidate.FieldsByTag(rule.AuthorityField)
		if len(fields) == 1 {
			return rule, fields[0], true
		}
	}
	return models.LinkingRule{}, models.Field{}, false
}

// uniqueCandidates merges the candidates of all identifiers of one field.
func uniqueCandidates(ids []string, resolved map[string][]models.AuthorityCandidate) []models.AuthorityCandidate {
	var out []models.AuthorityCandidate
	for _, id := range ids {
		for _, c := range resolved[id] {
			dup := false
			for _, existing := range out {
				if existing.ID == c.ID {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, c)
			}
		}
	}
	return out
}

func groupRulesByBibField(rules []models.LinkingRule) map[string][]models.LinkingRule {
	byTag := make(map[string][]models.LinkingRule)
	for _, r := range rules {
		byTag[r.BibField] = append(byTag[r.BibField], r)
	}
	return byTag
}

func anyAutoLinking(rules []models.LinkingRule) bool {
	for _, r := range rules {
		if r.AutoLinkingEnabled {
			return true
		}
	}
	return false
}
