package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/enrich"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/repository"
	"github.com/helixir/enrichment-service/internal/temporal"
)

const (
	maxRequestBodySize = 1 << 20
	maxBatchRecordIDs  = 10000

	// batchResultTimeout bounds the result read of a completed batch.
	batchResultTimeout = 2 * time.Second
)

// startEnrichmentRequest is the JSON body of POST /enrichments. An empty
// record_ids list enriches every unenriched record.
type startEnrichmentRequest struct {
	RecordIDs   []string `json:"record_ids" validate:"max=10000,dive,uuid"`
	SecondPass  *bool    `json:"second_pass"`
	RequestedBy string   `json:"requested_by" validate:"max=200"`
}

// listRecords handles GET /records?is_preprint=&enriched=&has_abstract=&limit=&offset=.
func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.RecordFilter{}

	for name, dst := range map[string]**bool{
		"is_preprint":  &filter.IsPreprint,
		"enriched":     &filter.Enriched,
		"has_abstract": &filter.HasAbstract,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a boolean", name))
			return
		}
		*dst = &b
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	if err := filter.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, total, err := s.deps.Records.GetRecords(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, err, "failed to list records")
		return
	}

	resp := listRecordsResponse{
		Records:    make([]recordResponse, 0, len(records)),
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, domainRecordToResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// getRecord handles GET /records/{recordID}.
func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domainRecordToResponse(rec))
}

// getRecordReport handles GET /records/{recordID}/report and renders the
// human-readable enrichment report as plain text.
func (s *Server) getRecordReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, enrich.FormatReport(rec))
}

// getRecordVersions handles GET /records/{recordID}/versions.
func (s *Server) getRecordVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := recordIDParam(w, r)
	if !ok {
		return
	}
	if _, err := s.deps.Records.GetRecord(r.Context(), id); err != nil {
		s.recordError(w, r, err, id)
		return
	}

	rels, err := s.deps.Records.ListVersions(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err, "failed to list versions")
		return
	}

	resp := listVersionsResponse{RecordID: id.String(), Versions: make([]versionResponse, 0, len(rels))}
	for _, rel := range rels {
		resp.Versions = append(resp.Versions, domainVersionToResponse(rel, resp.RecordID))
	}
	writeJSON(w, http.StatusOK, resp)
}

// enrichRecord handles POST /records/{recordID}/enrich. The record is
// enriched synchronously and persisted; a persistence failure answers 500.
func (s *Server) enrichRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.enrichTimeout)
	defer cancel()

	res := s.deps.Enricher.EnrichOne(ctx, rec, time.Now().UTC())
	if !res.Persisted {
		writeError(w, http.StatusInternalServerError, "enrichment could not be persisted")
		return
	}

	writeJSON(w, http.StatusOK, enrichRecordResponse{
		Record: domainRecordToResponse(rec),
		Result: recordResultToResponse(res),
	})
}

// startEnrichment handles POST /enrichments by starting a durable batch.
func (s *Server) startEnrichment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batches == nil {
		writeError(w, http.StatusServiceUnavailable, "batch enrichment is not configured")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startEnrichmentRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	payload := domain.EnrichmentRequestedPayload{
		SecondPass:  s.deps.DefaultSecondPass,
		RequestedBy: req.RequestedBy,
	}
	if req.SecondPass != nil {
		payload.SecondPass = *req.SecondPass
	}
	for _, raw := range req.RecordIDs {
		payload.RecordIDs = append(payload.RecordIDs, uuid.MustParse(raw))
	}

	workflowID, err := s.deps.Batches.StartEnrichmentBatch(r.Context(), payload)
	if err != nil {
		if temporal.IsWorkflowAlreadyStarted(err) {
			writeError(w, http.StatusConflict, "an identical batch is already running")
			return
		}
		s.internalError(w, r, err, "failed to start enrichment batch")
		return
	}

	msg := "enrichment of all unenriched records started"
	if len(payload.RecordIDs) > 0 {
		msg = fmt.Sprintf("enrichment of %d records started", len(payload.RecordIDs))
	}
	writeJSON(w, http.StatusAccepted, startEnrichmentResponse{
		WorkflowID: workflowID,
		Records:    len(payload.RecordIDs),
		SecondPass: payload.SecondPass,
		Message:    msg,
	})
}

// getEnrichment handles GET /enrichments/{workflowID}. Progress is included
// while the batch can still answer queries.
func (s *Server) getEnrichment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batches == nil {
		writeError(w, http.StatusServiceUnavailable, "batch enrichment is not configured")
		return
	}

	workflowID := chi.URLParam(r, "workflowID")
	desc, err := s.deps.Batches.DescribeBatch(r.Context(), workflowID)
	if err != nil {
		if temporal.IsWorkflowNotFound(err) {
			writeError(w, http.StatusNotFound, "enrichment batch not found")
			return
		}
		s.internalError(w, r, err, "failed to describe enrichment batch")
		return
	}

	resp := enrichmentStatusResponse{WorkflowDescription: desc}
	if progress, err := s.deps.Batches.BatchProgress(r.Context(), workflowID); err == nil {
		resp.Progress = progress
	}
	if desc.Completed() {
		ctx, cancel := context.WithTimeout(r.Context(), batchResultTimeout)
		result, err := s.deps.Batches.BatchResult(ctx, workflowID)
		cancel()
		if err != nil {
			logger := observability.LoggerFromContext(r.Context())
			logger.Warn().Err(err).Str("workflow_id", workflowID).Msg("batch result unavailable")
		} else {
			resp.Result = result
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// cancelEnrichment requests cancellation of a batch. Records already saved
// by the batch stay saved.
func (s *Server) cancelEnrichment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batches == nil {
		writeError(w, http.StatusServiceUnavailable, "batch enrichment is not configured")
		return
	}

	workflowID := chi.URLParam(r, "workflowID")
	if err := s.deps.Batches.CancelBatch(r.Context(), workflowID); err != nil {
		if temporal.IsWorkflowNotFound(err) {
			writeError(w, http.StatusNotFound, "enrichment batch not found")
			return
		}
		s.internalError(w, r, err, "failed to cancel enrichment batch")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"workflow_id": workflowID,
		"status":      "cancel_requested",
	})
}

func (s *Server) loadRecord(w http.ResponseWriter, r *http.Request) (*domain.Record, bool) {
	id, ok := recordIDParam(w, r)
	if !ok {
		return nil, false
	}
	rec, err := s.deps.Records.GetRecord(r.Context(), id)
	if err != nil {
		s.recordError(w, r, err, id)
		return nil, false
	}
	return rec, true
}

func (s *Server) recordError(w http.ResponseWriter, r *http.Request, err error, id uuid.UUID) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("record %s not found", id))
		return
	}
	s.internalError(w, r, err, "failed to load record")
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logger := observability.LoggerFromContext(r.Context())
	logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func recordIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// validationMessage turns validator errors into a short client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "uuid":
		return fmt.Sprintf("record_ids contains an invalid id: %v", fe.Value())
	case "max":
		if fe.Field() == "RecordIDs" {
			return fmt.Sprintf("record_ids must have at most %d entries", maxBatchRecordIDs)
		}
		return fmt.Sprintf("%s is too long", strings.ToLower(fe.Field()))
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}
