package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkStatus is the lifecycle state of a persisted link.
type LinkStatus string

const (
	LinkStatusNew    LinkStatus = "NEW"
	LinkStatusActual LinkStatus = "ACTUAL"
	LinkStatusError  LinkStatus = "ERROR"
)

// Valid reports whether s is one of the known statuses.
func (s LinkStatus) Valid() bool {
	switch s {
	case LinkStatusNew, LinkStatusActual, LinkStatusError:
		return true
	}
	return false
}

// InstanceAuthorityLink ties one bib field of an instance to an authority.
type InstanceAuthorityLink struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`

	TenantID string `json:"-" gorm:"size:64;not null;index:idx_links_tenant_instance"`

	InstanceID  uuid.UUID `json:"instanceId" gorm:"type:uuid;not null;index:idx_links_tenant_instance"`
	AuthorityID uuid.UUID `json:"authorityId" gorm:"type:uuid;not null;index"`
	// AuthorityNaturalID is denormalized from the authority and refreshed on every reconciliation.
	AuthorityNaturalID string `json:"authorityNaturalId" gorm:"size:255"`

	BibRecordTag       string `json:"bibRecordTag" gorm:"size:3;not null"`
	BibRecordSubfields string `json:"bibRecordSubfields" gorm:"size:64"`
	LinkingRuleID      int    `json:"linkingRuleId" gorm:"not null"`

	Status     LinkStatus `json:"status" gorm:"size:16;not null;index"`
	ErrorCause *string    `json:"errorCause,omitempty" gorm:"type:text"`
}

func (InstanceAuthorityLink) TableName() string {
	return "instance_authority_links"
}

// LinkKey is the identity used to decide whether two links are the same.
// Subfields are deliberately not part of it.
type LinkKey struct {
	InstanceID    uuid.UUID
	AuthorityID   uuid.UUID
	BibRecordTag  string
	LinkingRuleID int
}

// Key returns the identity of the link.
func (l InstanceAuthorityLink) Key() LinkKey {
	return LinkKey{
		InstanceID:    l.InstanceID,
		AuthorityID:   l.AuthorityID,
		BibRecordTag:  l.BibRecordTag,
		LinkingRuleID: l.LinkingRuleID,
	}
}

// IsSameLink compares links by identity.
func (l InstanceAuthorityLink) IsSameLink(other InstanceAuthorityLink) bool {
	return l.Key() == other.Key()
}

// LinkStatsQuery filters the link statistics listing.
type LinkStatsQuery struct {
	Status *LinkStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

// LinkStats is one page of the link statistics listing.
type LinkStats struct {
	Links []InstanceAuthorityLink `json:"stats"`
	Next  *time.Time              `json:"next,omitempty"`
}
