package enrich

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/papersources"
)

const reasonOANotConfigured = "open-access source not configured"

// OpenAccessEnricher looks up open-access status from a single source. It
// runs for every record regardless of the abstract outcome.
type OpenAccessEnricher struct {
	adapter papersources.Adapter
	caller  caller
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewOpenAccessEnricher creates an enricher backed by adapter, which may be nil.
func NewOpenAccessEnricher(adapter papersources.Adapter, logger zerolog.Logger, metrics *observability.Metrics) *OpenAccessEnricher {
	return &OpenAccessEnricher{
		adapter: adapter,
		caller:  caller{logger: logger, metrics: metrics},
		logger:  logger,
		metrics: metrics,
	}
}

// Enrich fetches the open-access status of rec. On success the OA fields of
// rec are replaced; on failure they are left untouched.
func (e *OpenAccessEnricher) Enrich(ctx context.Context, rec *domain.Record, prov domain.Provenance) domain.OACheck {
	check := e.enrich(ctx, rec, prov)
	if e.metrics != nil {
		e.metrics.RecordOACheck(string(check.Status))
	}
	return check
}

func (e *OpenAccessEnricher) enrich(ctx context.Context, rec *domain.Record, prov domain.Provenance) domain.OACheck {
	if e.adapter == nil || !e.adapter.IsEnabled() {
		return domain.OACheck{Status: domain.AttemptStatusFailed, Reason: reasonOANotConfigured}
	}
	if skipped(e.adapter) {
		return domain.OACheck{Status: domain.AttemptStatusSkipped, Reason: reasonMissingCredential}
	}

	key := string(e.adapter.SourceType())
	res := e.caller.call(ctx, e.adapter, rec)
	prov.Set(key, res.Raw)

	if res.Err != nil || res.OpenAccess == nil {
		reason := papersources.Reason(res.Err)
		if res.Err == nil {
			reason = "no open-access data in response"
		}
		e.logger.Debug().Str("source", key).Str("reason", reason).Msg("oa_check_failed")
		return domain.OACheck{Status: domain.AttemptStatusFailed, Reason: reason}
	}

	oa := res.OpenAccess
	isOA := oa.IsOA
	rec.IsOA = &isOA
	rec.OAStatus = oa.OAStatus
	rec.License = oa.License
	if oa.PDFURL != "" {
		rec.OAPDFURL = oa.PDFURL
	}

	return domain.OACheck{
		Status:   domain.AttemptStatusSuccess,
		IsOA:     rec.IsOA,
		OAStatus: oa.OAStatus,
		HasPDF:   rec.OAPDFURL != "",
		Reason:   fmt.Sprintf("is_oa=%t, oa_status=%s", oa.IsOA, oa.OAStatus),
	}
}
