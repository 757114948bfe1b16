package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NoSourcesAttemptedReason is recorded when no abstract source produced an attempt.
const NoSourcesAttemptedReason = "No enrichment sources attempted"

// EnrichmentReport is the structured trace of one enrichment run.
type EnrichmentReport struct {
	RecordTitle       string            `json:"record_title"`
	DOI               string            `json:"doi"`
	PreprintDetection PreprintDetection `json:"preprint_detection"`
	AbstractAttempts  []Attempt         `json:"abstract_attempts"`
	OACheck           OACheck           `json:"oa_check"`
	FinalStatus       FinalStatus       `json:"final_status"`
}

// Attempt records the outcome of one source for one record.
type Attempt struct {
	Source SourceType    `json:"source"`
	Name   string        `json:"name"`
	Status AttemptStatus `json:"status"`
	Reason string        `json:"reason"`
}

// PreprintDetection describes the preprint classification and any published
// version discovered for it.
type PreprintDetection struct {
	IsPreprint       bool                     `json:"is_preprint"`
	Source           SourceType               `json:"source,omitempty"`
	Status           string                   `json:"status"`
	PublishedVersion *PublishedVersionOutcome `json:"published_version,omitempty"`
}

// PublishedVersionOutcome is the result of linking a preprint to its published version.
type PublishedVersionOutcome struct {
	DOI                      string     `json:"doi"`
	Journal                  string     `json:"journal,omitempty"`
	Status                   string     `json:"status"`
	DiscoverySource          SourceType `json:"discovery_source"`
	PublishedVersionRecordID *uuid.UUID `json:"published_version_record_id,omitempty"`
	Success                  bool       `json:"success"`
	LinkCreated              bool       `json:"link_created"`
	RecordCreated            bool       `json:"record_created"`
	Message                  string     `json:"message"`
}

// OACheck is the outcome of the open-access lookup.
type OACheck struct {
	Status   AttemptStatus `json:"status"`
	IsOA     *bool         `json:"is_oa,omitempty"`
	OAStatus string        `json:"oa_status,omitempty"`
	HasPDF   bool          `json:"has_pdf"`
	Reason   string        `json:"reason"`
}

// FinalStatus summarises the record state after enrichment.
type FinalStatus struct {
	AbstractFound             bool       `json:"abstract_found"`
	AbstractSource            string     `json:"abstract_source,omitempty"`
	AbstractNoRetrievalReason string     `json:"abstract_no_retrieval_reason,omitempty"`
	IsOA                      *bool      `json:"is_oa,omitempty"`
	OAStatus                  string     `json:"oa_status,omitempty"`
	IsPreprint                bool       `json:"is_preprint"`
	PreprintSource            SourceType `json:"preprint_source,omitempty"`
	HasPublishedVersion       bool       `json:"has_published_version"`
}

// NewEnrichmentReport starts a report for rec. Titles longer than 80
// characters are shortened with an ellipsis.
func NewEnrichmentReport(rec *Record) *EnrichmentReport {
	title := rec.Title
	if r := []rune(title); len(r) > 80 {
		title = string(r[:80]) + "..."
	}
	return &EnrichmentReport{
		RecordTitle:      title,
		DOI:              rec.DOINorm,
		AbstractAttempts: []Attempt{},
	}
}

// FailureSummary joins every failed attempt as "{name}: {reason}" with "; ".
// It returns NoSourcesAttemptedReason when nothing failed.
func (r *EnrichmentReport) FailureSummary() string {
	var reasons []string
	for _, a := range r.AbstractAttempts {
		if a.Status == AttemptStatusFailed {
			reasons = append(reasons, a.Name+": "+a.Reason)
		}
	}
	if len(reasons) == 0 {
		return NoSourcesAttemptedReason
	}
	return strings.Join(reasons, "; ")
}
