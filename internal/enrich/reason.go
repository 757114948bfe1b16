package enrich

import (
	"context"
	"errors"

	"github.com/helixir/enrichment-service/internal/domain"
)

// reasonClass maps an adapter error onto a low-cardinality metric label.
func reasonClass(err error) string {
	var (
		apiErr   *domain.ExternalAPIError
		parseErr *domain.ParseError
	)
	switch {
	case errors.Is(err, domain.ErrNoDOI), errors.Is(err, domain.ErrNoIdentifier):
		return "precondition"
	case errors.Is(err, domain.ErrNoAbstract):
		return "no_abstract"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.As(err, &apiErr):
		return "http"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrRetriesExhausted):
		return "retries_exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
