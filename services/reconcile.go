package services

import (
	"entity-links/models"
)

// ReconcilePlan is the set of writes that turns the existing links of an
// instance into the incoming ones.
type ReconcilePlan struct {
	ToCreate []models.InstanceAuthorityLink
	// ToUpdate holds matched existing links whose subfields or natural id changed.
	ToUpdate []models.InstanceAuthorityLink
	ToDelete []models.InstanceAuthorityLink
	// Matched counts existing links that are also present in the incoming set.
	Matched int
}

// Empty reports whether applying the plan writes nothing.
func (p ReconcilePlan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdate) == 0 && len(p.ToDelete) == 0
}

// Reconcile diffs existing against incoming by link identity. Incoming
// duplicates of the same identity collapse onto the first occurrence.
// Neither input slice is modified.
func Reconcile(existing, incoming []models.InstanceAuthorityLink) ReconcilePlan {
	incomingByKey := make(map[models.LinkKey]models.InstanceAuthorityLink, len(incoming))
	incomingOrder := make([]models.LinkKey, 0, len(incoming))
	for _, l := range incoming {
		key := l.Key()
		if _, ok := incomingByKey[key]; ok {
			continue
		}
		incomingByKey[key] = l
		incomingOrder = append(incomingOrder, key)
	}

	var plan ReconcilePlan
	existingKeys := make(map[models.LinkKey]bool, len(existing))
	for _, e := range existing {
		key := e.Key()
		in, ok := incomingByKey[key]
		if !ok || existingKeys[key] {
			plan.ToDelete = append(plan.ToDelete, e)
			continue
		}
		existingKeys[key] = true
		plan.Matched++
		if e.BibRecordSubfields != in.BibRecordSubfields || e.AuthorityNaturalID != in.AuthorityNaturalID {
			e.BibRecordSubfields = in.BibRecordSubfields
			e.AuthorityNaturalID = in.AuthorityNaturalID
			plan.ToUpdate = append(plan.ToUpdate, e)
		}
	}

	for _, key := range incomingOrder {
		if existingKeys[key] {
			continue
		}
		link := incomingByKey[key]
		link.ID = 0
		if link.Status == "" {
			link.Status = models.LinkStatusActual
		}
		plan.ToCreate = append(plan.ToCreate, link)
	}
	return plan
}
