package enrich

import (
	"encoding/json"
	"strings"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources/crossref"
	"github.com/helixir/enrichment-service/internal/papersources/europepmc"
	"github.com/helixir/enrichment-service/internal/papersources/openalex"
	"github.com/helixir/enrichment-service/internal/papersources/pubmed"
)

// versionExtractor looks for a published-version DOI in one source's payload.
type versionExtractor struct {
	source  domain.SourceType
	extract func(raw json.RawMessage) (doi, journal string)
}

// versionExtractors are consulted in order; the first usable DOI wins.
var versionExtractors = []versionExtractor{
	{domain.SourceTypeCrossref, crossrefPublishedVersion},
	{domain.SourceTypeOpenAlex, openalexPublishedVersion},
	{domain.SourceTypeEuropePMC, europepmcPublishedVersion},
	{domain.SourceTypePubMed, pubmedPublishedVersion},
}

// discoverFromProvenance searches stored abstract-source payloads for a
// published version of preprint rec. DOIs equal to the record's own DOI are
// ignored.
func discoverFromProvenance(rec *domain.Record, prov domain.Provenance) *publishedCandidate {
	for _, ex := range versionExtractors {
		raw, ok := prov[string(ex.source)]
		if !ok || len(raw) == 0 {
			continue
		}
		doi, journal := ex.extract(raw)
		if !domain.IsMeaningfulPublishedDOI(doi) {
			continue
		}
		norm := domain.NormalizeDOI(doi)
		if norm == "" || norm == rec.DOINorm {
			continue
		}
		metadata, _ := json.Marshal(map[string]string{
			"discovered_in":     string(ex.source),
			"published_doi":     norm,
			"published_journal": journal,
		})
		return &publishedCandidate{
			doi:      norm,
			journal:  journal,
			source:   ex.source,
			metadata: metadata,
		}
	}
	return nil
}

// crossrefVersionTypes are has-version targets that denote a published version.
var crossrefVersionTypes = map[string]bool{"vor": true, "am": true, "published": true}

func crossrefPublishedVersion(raw json.RawMessage) (string, string) {
	var resp crossref.WorkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", ""
	}
	rel := resp.Message.Relation
	for _, item := range rel["is-preprint-of"] {
		if item.ID != "" {
			return item.ID, ""
		}
	}
	for _, item := range rel["has-version"] {
		if item.ID != "" && crossrefVersionTypes[strings.ToLower(item.Type)] {
			return item.ID, ""
		}
	}
	return "", ""
}

func openalexPublishedVersion(raw json.RawMessage) (string, string) {
	var work openalex.Work
	if err := json.Unmarshal(raw, &work); err != nil {
		return "", ""
	}
	for _, loc := range work.Locations {
		if loc.Version != "publishedVersion" || loc.Source == nil || loc.Source.Type != "journal" {
			continue
		}
		if doi := domain.DOIFromURL(loc.LandingPageURL); doi != "" {
			return doi, loc.Source.DisplayName
		}
	}
	for _, related := range work.RelatedWorks {
		if doi := domain.DOIFromURL(related); doi != "" {
			return doi, ""
		}
	}
	return "", ""
}

func europepmcPublishedVersion(raw json.RawMessage) (string, string) {
	var resp europepmc.SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.ResultList.Result) == 0 {
		return "", ""
	}
	for _, r := range resp.ResultList.Result[0].RelationshipList.Relationship {
		kind := strings.ToLower(r.Type)
		if r.DOI != "" && (strings.Contains(kind, "published") || strings.Contains(kind, "version")) {
			return r.DOI, ""
		}
	}
	return "", ""
}

// pubmedVersionMarkers are CommentsCorrections types linking an article to
// another version of itself.
var pubmedVersionMarkers = map[string]bool{
	"PublishedInto":   true,
	"RepublishedFrom": true,
	"RepublishedIn":   true,
	"UpdateOf":        true,
}

func pubmedPublishedVersion(raw json.RawMessage) (string, string) {
	var p pubmed.Provenance
	if err := json.Unmarshal(raw, &p); err != nil || p.XML == "" {
		return "", ""
	}
	set, err := pubmed.ParseArticleSet([]byte(p.XML))
	if err != nil {
		return "", ""
	}
	for _, article := range set.Articles {
		linked := strings.Contains(p.XML, "PublishedInto")
		if cc := article.MedlineCitation.CommentsCorrectionsList; cc != nil {
			for _, c := range cc.CommentsCorrections {
				if pubmedVersionMarkers[c.RefType] {
					linked = true
				}
			}
		}
		if linked {
			if doi := pubmed.ArticleDOI(article); doi != "" {
				return doi, ""
			}
		}
	}
	return "", ""
}
