package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/enrichment-service/internal/domain"
)

// Compile-time interface verification.
var _ RecordRepository = (*PgRecordRepository)(nil)

// recordColumns is the column list read by every record query, in scan order.
const recordColumns = `id, title, doi_raw, doi_norm, pub_date, authors, source_title,
			arxiv_id, pmid, openalex_id, s2_paper_id,
			abstract_text, abstract_source, abstract_no_retrieval_reason,
			is_oa, oa_status, license, oa_pdf_url,
			is_preprint, preprint_source,
			published_doi, published_journal, published_url, published_fulltext_url,
			provenance, enrichment_report,
			imported_at, enrichment_datetime, created_at, updated_at`

// PgRecordRepository is a PostgreSQL implementation of RecordRepository.
type PgRecordRepository struct {
	db DBTX
}

// NewPgRecordRepository creates a new PostgreSQL record repository.
func NewPgRecordRepository(db DBTX) *PgRecordRepository {
	return &PgRecordRepository{db: db}
}

// GetRecords lists records matching filter.
func (r *PgRecordRepository) GetRecords(ctx context.Context, filter RecordFilter) ([]*domain.Record, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.IsPreprint != nil {
		conditions = append(conditions, fmt.Sprintf("is_preprint = $%d", argIndex))
		args = append(args, *filter.IsPreprint)
		argIndex++
	}

	if filter.Enriched != nil {
		if *filter.Enriched {
			conditions = append(conditions, "enrichment_datetime IS NOT NULL")
		} else {
			conditions = append(conditions, "enrichment_datetime IS NULL")
		}
	}

	if filter.HasAbstract != nil {
		if *filter.HasAbstract {
			conditions = append(conditions, "abstract_text IS NOT NULL AND abstract_text <> ''")
		} else {
			conditions = append(conditions, "(abstract_text IS NULL OR abstract_text = '')")
		}
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM records %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM records
		%s
		ORDER BY imported_at DESC, id
		LIMIT $%d OFFSET $%d`,
		recordColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	records, err := r.queryRecords(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// GetRecord returns a record by identity.
func (r *PgRecordRepository) GetRecord(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("record", id.String())
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// FindRecordByDOI returns the record owning a normalized DOI.
func (r *PgRecordRepository) FindRecordByDOI(ctx context.Context, doiNorm string) (*domain.Record, error) {
	if doiNorm == "" {
		return nil, domain.NewValidationError("doi_norm", "normalized DOI is required")
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE doi_norm = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, doiNorm))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("record", doiNorm)
		}
		return nil, fmt.Errorf("failed to find record by DOI: %w", err)
	}
	return rec, nil
}

// InsertRecord persists rec. A DOI collision is reported without raising a
// database error so an enclosing transaction stays usable, and leaves rec.ID
// as the caller passed it.
func (r *PgRecordRepository) InsertRecord(ctx context.Context, rec *domain.Record) (uuid.UUID, error) {
	if rec == nil {
		return uuid.Nil, domain.NewValidationError("record", "record cannot be nil")
	}

	authorsJSON, provenanceJSON, reportJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return uuid.Nil, err
	}

	callerID := rec.ID
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO records (
			id, title, doi_raw, doi_norm, pub_date, authors, source_title,
			arxiv_id, pmid, openalex_id, s2_paper_id,
			abstract_text, abstract_source, abstract_no_retrieval_reason,
			is_oa, oa_status, license, oa_pdf_url,
			is_preprint, preprint_source,
			published_doi, published_journal, published_url, published_fulltext_url,
			provenance, enrichment_report, imported_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		ON CONFLICT (doi_norm) WHERE doi_norm IS NOT NULL AND doi_norm <> '' DO NOTHING
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		rec.ID,
		rec.Title,
		nullIfEmpty(rec.DOIRaw),
		nullIfEmpty(rec.DOINorm),
		nullIfEmpty(rec.PubDate),
		authorsJSON,
		nullIfEmpty(rec.SourceTitle),
		nullIfEmpty(rec.ArXivID),
		nullIfEmpty(rec.PMID),
		nullIfEmpty(rec.OpenAlexID),
		nullIfEmpty(rec.S2PaperID),
		nullIfEmpty(rec.AbstractText),
		nullIfEmpty(rec.AbstractSource),
		nullIfEmpty(rec.AbstractNoRetrievalReason),
		rec.IsOA,
		nullIfEmpty(rec.OAStatus),
		nullIfEmpty(rec.License),
		nullIfEmpty(rec.OAPDFURL),
		rec.IsPreprint,
		nullIfEmpty(rec.PreprintSource),
		nullIfEmpty(rec.PublishedDOI),
		nullIfEmpty(rec.PublishedJournal),
		nullIfEmpty(rec.PublishedURL),
		nullIfEmpty(rec.PublishedFulltextURL),
		provenanceJSON,
		reportJSON,
		rec.ImportedAt,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			rec.ID = callerID
			return uuid.Nil, domain.NewAlreadyExistsError("record", rec.DOINorm)
		}
		rec.ID = callerID
		return uuid.Nil, fmt.Errorf("failed to insert record: %w", err)
	}

	return rec.ID, nil
}

// UpdateEnrichedRecord writes back everything enrichment may have changed.
func (r *PgRecordRepository) UpdateEnrichedRecord(ctx context.Context, rec *domain.Record) error {
	if rec == nil || !rec.IsPersisted() {
		return domain.ErrNotPersisted
	}

	_, provenanceJSON, reportJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return err
	}

	if rec.EnrichedAt == nil {
		now := time.Now().UTC()
		rec.EnrichedAt = &now
	}

	query := `
		UPDATE records SET
			arxiv_id = $2,
			pmid = $3,
			openalex_id = $4,
			s2_paper_id = $5,
			abstract_text = $6,
			abstract_source = $7,
			abstract_no_retrieval_reason = $8,
			is_oa = $9,
			oa_status = $10,
			license = $11,
			oa_pdf_url = $12,
			is_preprint = $13,
			preprint_source = $14,
			published_doi = $15,
			published_journal = $16,
			published_url = $17,
			published_fulltext_url = $18,
			provenance = $19,
			enrichment_report = $20,
			enrichment_datetime = $21,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err = r.db.QueryRow(ctx, query,
		rec.ID,
		nullIfEmpty(rec.ArXivID),
		nullIfEmpty(rec.PMID),
		nullIfEmpty(rec.OpenAlexID),
		nullIfEmpty(rec.S2PaperID),
		nullIfEmpty(rec.AbstractText),
		nullIfEmpty(rec.AbstractSource),
		nullIfEmpty(rec.AbstractNoRetrievalReason),
		rec.IsOA,
		nullIfEmpty(rec.OAStatus),
		nullIfEmpty(rec.License),
		nullIfEmpty(rec.OAPDFURL),
		rec.IsPreprint,
		nullIfEmpty(rec.PreprintSource),
		nullIfEmpty(rec.PublishedDOI),
		nullIfEmpty(rec.PublishedJournal),
		nullIfEmpty(rec.PublishedURL),
		nullIfEmpty(rec.PublishedFulltextURL),
		provenanceJSON,
		reportJSON,
		*rec.EnrichedAt,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("record", rec.ID.String())
		}
		return fmt.Errorf("failed to update enriched record: %w", err)
	}

	return nil
}

// ListUnenriched returns records without an enrichment timestamp.
func (r *PgRecordRepository) ListUnenriched(ctx context.Context, limit int) ([]*domain.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM records
		WHERE enrichment_datetime IS NULL
		ORDER BY imported_at, id`

	if limit > 0 {
		return r.queryRecords(ctx, query+` LIMIT $1`, limit)
	}
	return r.queryRecords(ctx, query)
}

func (r *PgRecordRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*domain.Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// marshalRecordJSON encodes the JSONB columns of rec. A nil report encodes
// as SQL NULL.
func marshalRecordJSON(rec *domain.Record) (authors, provenance, report []byte, err error) {
	authorList := rec.Authors
	if authorList == nil {
		authorList = []domain.Author{}
	}
	if authors, err = json.Marshal(authorList); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal authors: %w", err)
	}

	prov := rec.Provenance
	if prov == nil {
		prov = domain.Provenance{}
	}
	if provenance, err = json.Marshal(prov); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal provenance: %w", err)
	}

	if rec.EnrichmentReport != nil {
		if report, err = json.Marshal(rec.EnrichmentReport); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal enrichment report: %w", err)
		}
	}
	return authors, provenance, report, nil
}

// recordScanDest holds the destination pointers for scanning a record row.
type recordScanDest struct {
	rec domain.Record

	doiRaw, doiNorm, pubDate, sourceTitle           *string
	arxivID, pmid, openAlexID, s2PaperID            *string
	abstractText, abstractSource, noRetrievalReason *string
	oaStatus, license, oaPDFURL, preprintSource     *string
	publishedDOI, publishedJournal                  *string
	publishedURL, publishedFulltextURL              *string

	authorsJSON    []byte
	provenanceJSON []byte
	reportJSON     []byte
}

// destinations returns the Scan targets in recordColumns order.
func (d *recordScanDest) destinations() []interface{} {
	return []interface{}{
		&d.rec.ID, &d.rec.Title, &d.doiRaw, &d.doiNorm, &d.pubDate, &d.authorsJSON, &d.sourceTitle,
		&d.arxivID, &d.pmid, &d.openAlexID, &d.s2PaperID,
		&d.abstractText, &d.abstractSource, &d.noRetrievalReason,
		&d.rec.IsOA, &d.oaStatus, &d.license, &d.oaPDFURL,
		&d.rec.IsPreprint, &d.preprintSource,
		&d.publishedDOI, &d.publishedJournal, &d.publishedURL, &d.publishedFulltextURL,
		&d.provenanceJSON, &d.reportJSON,
		&d.rec.ImportedAt, &d.rec.EnrichedAt, &d.rec.CreatedAt, &d.rec.UpdatedAt,
	}
}

// finalize copies nullable columns and decodes the JSONB fields.
func (d *recordScanDest) finalize() (*domain.Record, error) {
	rec := &d.rec
	rec.DOIRaw = deref(d.doiRaw)
	rec.DOINorm = deref(d.doiNorm)
	rec.PubDate = deref(d.pubDate)
	rec.SourceTitle = deref(d.sourceTitle)
	rec.ArXivID = deref(d.arxivID)
	rec.PMID = deref(d.pmid)
	rec.OpenAlexID = deref(d.openAlexID)
	rec.S2PaperID = deref(d.s2PaperID)
	rec.AbstractText = deref(d.abstractText)
	rec.AbstractSource = deref(d.abstractSource)
	rec.AbstractNoRetrievalReason = deref(d.noRetrievalReason)
	rec.OAStatus = deref(d.oaStatus)
	rec.License = deref(d.license)
	rec.OAPDFURL = deref(d.oaPDFURL)
	rec.PreprintSource = deref(d.preprintSource)
	rec.PublishedDOI = deref(d.publishedDOI)
	rec.PublishedJournal = deref(d.publishedJournal)
	rec.PublishedURL = deref(d.publishedURL)
	rec.PublishedFulltextURL = deref(d.publishedFulltextURL)

	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &rec.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	rec.Provenance = make(domain.Provenance)
	if len(d.provenanceJSON) > 0 {
		if err := json.Unmarshal(d.provenanceJSON, &rec.Provenance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provenance: %w", err)
		}
	}

	if len(d.reportJSON) > 0 {
		rec.EnrichmentReport = &domain.EnrichmentReport{}
		if err := json.Unmarshal(d.reportJSON, rec.EnrichmentReport); err != nil {
			return nil, fmt.Errorf("failed to unmarshal enrichment report: %w", err)
		}
	}

	return rec, nil
}

// scanRecord scans a single row (pgx.Row or the current pgx.Rows row).
func scanRecord(row pgx.Row) (*domain.Record, error) {
	var dest recordScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
