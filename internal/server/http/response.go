package httpserver

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/enrich"
	"github.com/helixir/enrichment-service/internal/temporal"
)

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

type identifiersResponse struct {
	DOI        string `json:"doi,omitempty"`
	ArXivID    string `json:"arxiv_id,omitempty"`
	PMID       string `json:"pmid,omitempty"`
	OpenAlexID string `json:"openalex_id,omitempty"`
	S2PaperID  string `json:"s2_paper_id,omitempty"`
}

type openAccessResponse struct {
	IsOA    *bool  `json:"is_oa,omitempty"`
	Status  string `json:"status,omitempty"`
	License string `json:"license,omitempty"`
	PDFURL  string `json:"pdf_url,omitempty"`
}

type publishedVersionResponse struct {
	DOI         string `json:"doi"`
	Journal     string `json:"journal,omitempty"`
	URL         string `json:"url,omitempty"`
	FulltextURL string `json:"fulltext_url,omitempty"`
}

type recordResponse struct {
	ID                        string                    `json:"id"`
	Title                     string                    `json:"title"`
	PubDate                   string                    `json:"pub_date,omitempty"`
	SourceTitle               string                    `json:"source_title,omitempty"`
	Authors                   []authorResponse          `json:"authors,omitempty"`
	Identifiers               identifiersResponse       `json:"identifiers"`
	Abstract                  string                    `json:"abstract,omitempty"`
	AbstractSource            string                    `json:"abstract_source,omitempty"`
	AbstractNoRetrievalReason string                    `json:"abstract_no_retrieval_reason,omitempty"`
	OpenAccess                openAccessResponse        `json:"open_access"`
	IsPreprint                bool                      `json:"is_preprint"`
	PreprintSource            string                    `json:"preprint_source,omitempty"`
	PublishedVersion          *publishedVersionResponse `json:"published_version,omitempty"`
	ProvenanceSources         []string                  `json:"provenance_sources"`
	EnrichmentReport          *domain.EnrichmentReport  `json:"enrichment_report,omitempty"`
	ImportedAt                time.Time                 `json:"imported_at"`
	EnrichedAt                *time.Time                `json:"enriched_at,omitempty"`
}

type listRecordsResponse struct {
	Records    []recordResponse `json:"records"`
	TotalCount int64            `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

type versionResponse struct {
	ID                string          `json:"id"`
	PreprintID        string          `json:"preprint_id"`
	PublishedID       string          `json:"published_id"`
	Role              string          `json:"role"`
	DiscoveredAt      time.Time       `json:"discovered_at"`
	DiscoverySource   string          `json:"discovery_source"`
	DiscoveryMetadata json.RawMessage `json:"discovery_metadata,omitempty"`
}

type listVersionsResponse struct {
	RecordID string            `json:"record_id"`
	Versions []versionResponse `json:"versions"`
}

type enrichResultResponse struct {
	Persisted     bool `json:"persisted"`
	AbstractFound bool `json:"abstract_found"`
	LinkCreated   bool `json:"link_created"`
	RecordCreated bool `json:"record_created"`
}

type enrichRecordResponse struct {
	Record recordResponse       `json:"record"`
	Result enrichResultResponse `json:"result"`
}

type startEnrichmentResponse struct {
	WorkflowID string `json:"workflow_id"`
	Records    int    `json:"records"`
	SecondPass bool   `json:"second_pass"`
	Message    string `json:"message"`
}

type enrichmentStatusResponse struct {
	*temporal.WorkflowDescription
	Progress *temporal.BatchProgress         `json:"progress,omitempty"`
	Result   *temporal.EnrichmentBatchResult `json:"result,omitempty"`
}

// Roles of the requested record in a version relation.
const (
	rolePreprint  = "preprint"
	rolePublished = "published"
)

func domainRecordToResponse(r *domain.Record) recordResponse {
	authors := make([]authorResponse, len(r.Authors))
	for i, a := range r.Authors {
		authors[i] = authorResponse{Name: a.Name, Affiliation: a.Affiliation, ORCID: a.ORCID}
	}

	sources := make([]string, 0, len(r.Provenance))
	for k := range r.Provenance {
		sources = append(sources, k)
	}
	sort.Strings(sources)

	resp := recordResponse{
		ID:          r.ID.String(),
		Title:       r.Title,
		PubDate:     r.PubDate,
		SourceTitle: r.SourceTitle,
		Authors:     authors,
		Identifiers: identifiersResponse{
			DOI:        r.DOIRaw,
			ArXivID:    r.ArXivID,
			PMID:       r.PMID,
			OpenAlexID: r.OpenAlexID,
			S2PaperID:  r.S2PaperID,
		},
		Abstract:                  r.AbstractText,
		AbstractSource:            r.AbstractSource,
		AbstractNoRetrievalReason: r.AbstractNoRetrievalReason,
		OpenAccess: openAccessResponse{
			IsOA:    r.IsOA,
			Status:  r.OAStatus,
			License: r.License,
			PDFURL:  r.OAPDFURL,
		},
		IsPreprint:        r.IsPreprint,
		PreprintSource:    r.PreprintSource,
		ProvenanceSources: sources,
		EnrichmentReport:  r.EnrichmentReport,
		ImportedAt:        r.ImportedAt,
		EnrichedAt:        r.EnrichedAt,
	}
	if r.PublishedDOI != "" {
		resp.PublishedVersion = &publishedVersionResponse{
			DOI:         r.PublishedDOI,
			Journal:     r.PublishedJournal,
			URL:         r.PublishedURL,
			FulltextURL: r.PublishedFulltextURL,
		}
	}
	return resp
}

func domainVersionToResponse(rel *domain.ArticleVersionRelation, recordIDStr string) versionResponse {
	role := rolePublished
	if rel.PreprintID.String() == recordIDStr {
		role = rolePreprint
	}
	return versionResponse{
		ID:                rel.ID.String(),
		PreprintID:        rel.PreprintID.String(),
		PublishedID:       rel.PublishedID.String(),
		Role:              role,
		DiscoveredAt:      rel.DiscoveredAt,
		DiscoverySource:   string(rel.DiscoverySource),
		DiscoveryMetadata: rel.DiscoveryMetadata,
	}
}

func recordResultToResponse(res enrich.RecordResult) enrichResultResponse {
	return enrichResultResponse{
		Persisted:     res.Persisted,
		AbstractFound: res.AbstractFound,
		LinkCreated:   res.LinkCreated,
		RecordCreated: res.RecordCreated,
	}
}
