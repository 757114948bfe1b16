package papersources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/helixir/enrichment-service/internal/domain"
)

// Reason converts an adapter error into the short reason stored in
// enrichment reports. It returns "" for a nil error.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var (
		apiErr   *domain.ExternalAPIError
		parseErr *domain.ParseError
		netErr   net.Error
	)

	switch {
	case errors.Is(err, domain.ErrNoDOI):
		return domain.ErrNoDOI.Error()
	case errors.Is(err, domain.ErrNoIdentifier):
		return domain.ErrNoIdentifier.Error()
	case errors.Is(err, domain.ErrNoAbstract):
		return "No abstract field in response"
	case errors.As(err, &parseErr):
		return "malformed response"
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return "not found (HTTP 404)"
		}
		return fmt.Sprintf("HTTP %d", apiErr.StatusCode)
	case errors.Is(err, domain.ErrRateLimited):
		return "rate limited, retries exhausted"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "service unavailable, retries exhausted"
	case errors.Is(err, domain.ErrRetriesExhausted):
		return "transient failure, retries exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	default:
		return err.Error()
	}
}

// RawJSON returns body as a raw JSON message, encoding it as a JSON string
// when it is not valid JSON.
func RawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	encoded, _ := json.Marshal(string(body))
	return encoded
}

// WrapText records a non-JSON payload (XML, HTML) together with the request URL.
func WrapText(rawURL, format string, body []byte) json.RawMessage {
	encoded, _ := json.Marshal(map[string]string{
		"url":    rawURL,
		"format": format,
		"body":   string(body),
	})
	return encoded
}

// Diagnostic builds the provenance entry for a call that produced no payload.
func Diagnostic(rawURL string, err error) json.RawMessage {
	entry := map[string]string{"url": rawURL}
	if err != nil {
		entry["error"] = Reason(err)
		entry["detail"] = err.Error()
	}
	encoded, _ := json.Marshal(entry)
	return encoded
}
