package models

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ReportStatus is the outcome a job reports for its links.
type ReportStatus string

const (
	ReportStatusSuccess ReportStatus = "SUCCESS"
	ReportStatusFail    ReportStatus = "FAIL"
)

// Valid reports whether s is one of the known report statuses.
func (s ReportStatus) Valid() bool {
	return s == ReportStatusSuccess || s == ReportStatusFail
}

// LinkUpdateReport is a job-completion signal for the links of one instance.
type LinkUpdateReport struct {
	Tenant     string       `json:"tenant"`
	JobID      uuid.UUID    `json:"jobId"`
	InstanceID uuid.UUID    `json:"instanceId"`
	Status     ReportStatus `json:"status"`
	LinkIDs    []int64      `json:"linkIds"`
	FailCause  string       `json:"failCause,omitempty"`
}

// LinkStatus maps the report status onto the persisted link status.
func (r LinkUpdateReport) LinkStatus() LinkStatus {
	if r.Status == ReportStatusFail {
		return LinkStatusError
	}
	return LinkStatusActual
}

// ErrorCause returns the trimmed fail cause, nil when blank or on success.
func (r LinkUpdateReport) ErrorCause() *string {
	if r.Status != ReportStatusFail {
		return nil
	}
	cause := strings.TrimSpace(r.FailCause)
	if cause == "" {
		return nil
	}
	return &cause
}

// ValidateReports rejects reports that cannot be routed to a tenant and job
// or carry an unknown status. Parameter values are the report positions.
func ValidateReports(reports []LinkUpdateReport) error {
	var params []Parameter
	for i, r := range reports {
		idx := strconv.Itoa(i)
		if r.Tenant == "" {
			params = append(params, Parameter{Key: "tenant", Value: idx})
		}
		if r.JobID == uuid.Nil {
			params = append(params, Parameter{Key: "jobId", Value: idx})
		}
		if !r.Status.Valid() {
			params = append(params, Parameter{Key: "status", Value: idx})
		}
	}
	if len(params) == 0 {
		return nil
	}
	return NewValidationError("Invalid link update reports", params...)
}
