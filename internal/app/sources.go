package app

import (
	"github.com/helixir/enrichment-service/internal/config"
	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
	"github.com/helixir/enrichment-service/internal/papersources/arxiv"
	"github.com/helixir/enrichment-service/internal/papersources/biorxiv"
	"github.com/helixir/enrichment-service/internal/papersources/crossref"
	"github.com/helixir/enrichment-service/internal/papersources/europepmc"
	"github.com/helixir/enrichment-service/internal/papersources/openalex"
	"github.com/helixir/enrichment-service/internal/papersources/preprintsorg"
	"github.com/helixir/enrichment-service/internal/papersources/pubmed"
	"github.com/helixir/enrichment-service/internal/papersources/scopus"
	"github.com/helixir/enrichment-service/internal/papersources/semanticscholar"
	"github.com/helixir/enrichment-service/internal/papersources/unpaywall"
)

// BuildRegistry registers one adapter per configured source. Disabled
// sources are registered too; the registry filters them on lookup so the
// report can still name them. bioRxiv and medRxiv share one limiter because
// both talk to api.biorxiv.org.
func BuildRegistry(cfg config.SourcesConfig) *papersources.Registry {
	reg := papersources.NewRegistry()

	s := cfg.SemanticScholar
	reg.Register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    s.BaseURL,
		APIKey:     s.APIKey,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}, nil))

	s = cfg.Crossref
	reg.Register(crossref.NewClient(crossref.Config{
		BaseURL:    s.BaseURL,
		Email:      cfg.ContactEmail,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}, nil))

	s = cfg.OpenAlex
	reg.Register(openalex.New(openalex.Config{
		BaseURL:    s.BaseURL,
		Email:      cfg.ContactEmail,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}))

	s = cfg.EuropePMC
	reg.Register(europepmc.New(europepmc.Config{
		BaseURL:    s.BaseURL,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}))

	s = cfg.PubMed
	reg.Register(pubmed.New(pubmed.Config{
		BaseURL:    s.BaseURL,
		APIKey:     s.APIKey,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}))

	s = cfg.Scopus
	reg.Register(scopus.New(scopus.Config{
		BaseURL:    s.BaseURL,
		APIKey:     s.APIKey,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}))

	s = cfg.Unpaywall
	reg.Register(unpaywall.New(unpaywall.Config{
		BaseURL:    s.BaseURL,
		Email:      cfg.ContactEmail,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}))

	s = cfg.ArXiv
	reg.Register(arxiv.New(arxiv.Config{
		BaseURL:    s.BaseURL,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}))

	rxivRate := cfg.BioRxiv.RateLimit
	if rxivRate <= 0 {
		rxivRate = biorxiv.DefaultRateLimit
	}
	rxivLimiter := papersources.NewRateLimiter(rxivRate)
	for _, rx := range []struct {
		source domain.SourceType
		cfg    config.SourceConfig
	}{
		{domain.SourceTypeBioRxiv, cfg.BioRxiv},
		{domain.SourceTypeMedRxiv, cfg.MedRxiv},
	} {
		reg.Register(biorxiv.New(biorxiv.Config{
			BaseURL:    rx.cfg.BaseURL,
			SourceType: rx.source,
			Timeout:    rx.cfg.Timeout,
			Limiter:    rxivLimiter,
			MaxRetries: rx.cfg.MaxRetries,
			RetryDelay: rx.cfg.RetryDelay,
			Enabled:    rx.cfg.Enabled,
		}))
	}

	s = cfg.Preprints
	reg.Register(preprintsorg.New(preprintsorg.Config{
		BaseURL:    s.BaseURL,
		Timeout:    s.Timeout,
		RateLimit:  s.RateLimit,
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay,
		Enabled:    s.Enabled,
	}))

	return reg
}

// AbstractOrder converts configured source keys into source types.
func AbstractOrder(keys []string) []domain.SourceType {
	if len(keys) == 0 {
		return nil
	}
	order := make([]domain.SourceType, len(keys))
	for i, k := range keys {
		order[i] = domain.SourceType(k)
	}
	return order
}
