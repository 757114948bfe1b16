package enrich

import (
	"fmt"
	"strings"

	"github.com/helixir/enrichment-service/internal/domain"
)

// statusMarkers label attempts in the text report.
var statusMarkers = map[domain.AttemptStatus]string{
	domain.AttemptStatusSuccess: "[OK]  ",
	domain.AttemptStatusFailed:  "[FAIL]",
	domain.AttemptStatusSkipped: "[SKIP]",
}

// FormatReport renders rec's enrichment report as human-readable text.
func FormatReport(rec *domain.Record) string {
	r := rec.EnrichmentReport
	if r == nil {
		return "No enrichment report available for: " + truncateRunes(rec.Title, 60)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Enrichment report: %s\n", r.RecordTitle)
	fmt.Fprintf(&b, "DOI: %s\n", valueOr(r.DOI, "(none)"))

	b.WriteString("\nPreprint detection:\n")
	pd := r.PreprintDetection
	if pd.IsPreprint {
		fmt.Fprintf(&b, "  preprint on %s (%s)\n", pd.Source.DisplayName(), pd.Status)
	} else {
		b.WriteString("  not a preprint\n")
	}
	if pv := pd.PublishedVersion; pv != nil {
		fmt.Fprintf(&b, "  published version: %s", pv.DOI)
		if pv.Journal != "" {
			fmt.Fprintf(&b, " in %s", pv.Journal)
		}
		fmt.Fprintf(&b, " (via %s)\n", pv.DiscoverySource.DisplayName())
		fmt.Fprintf(&b, "  link: %s, %s\n", pv.Status, pv.Message)
		if pv.PublishedVersionRecordID != nil {
			fmt.Fprintf(&b, "  published record: %s (new record: %t, new link: %t)\n",
				pv.PublishedVersionRecordID, pv.RecordCreated, pv.LinkCreated)
		}
	}

	b.WriteString("\nAbstract sources:\n")
	if len(r.AbstractAttempts) == 0 {
		b.WriteString("  none attempted\n")
	}
	for _, a := range r.AbstractAttempts {
		fmt.Fprintf(&b, "  %s %s: %s\n", statusMarkers[a.Status], a.Name, a.Reason)
	}

	b.WriteString("\nOpen access:\n")
	fmt.Fprintf(&b, "  %s %s\n", statusMarkers[r.OACheck.Status], r.OACheck.Reason)

	fs := r.FinalStatus
	b.WriteString("\nResult:\n")
	if fs.AbstractFound {
		fmt.Fprintf(&b, "  abstract: found via %s\n", fs.AbstractSource)
	} else {
		fmt.Fprintf(&b, "  abstract: not found (%s)\n", fs.AbstractNoRetrievalReason)
	}
	switch {
	case fs.IsOA == nil:
		b.WriteString("  open access: unknown\n")
	case *fs.IsOA:
		fmt.Fprintf(&b, "  open access: yes (%s)\n", valueOr(fs.OAStatus, "unspecified"))
	default:
		b.WriteString("  open access: no\n")
	}
	if fs.IsPreprint {
		fmt.Fprintf(&b, "  preprint: %s, published version: %t\n", fs.PreprintSource.DisplayName(), fs.HasPublishedVersion)
	}

	return b.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
