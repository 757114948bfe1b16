package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/enrichment-service/internal/domain"
)

// Compile-time interface verification.
var _ VersionRepository = (*PgVersionRepository)(nil)

// PgVersionRepository is a PostgreSQL implementation of VersionRepository.
type PgVersionRepository struct {
	db DBTX
}

// NewPgVersionRepository creates a new PostgreSQL version repository.
func NewPgVersionRepository(db DBTX) *PgVersionRepository {
	return &PgVersionRepository{db: db}
}

// CreateArticleVersionRelation inserts rel, or returns the existing relation
// for the same pair.
func (r *PgVersionRepository) CreateArticleVersionRelation(ctx context.Context, rel *domain.ArticleVersionRelation) (uuid.UUID, bool, error) {
	if rel == nil {
		return uuid.Nil, false, domain.NewValidationError("relation", "relation cannot be nil")
	}
	if rel.PreprintID == uuid.Nil || rel.PublishedID == uuid.Nil {
		return uuid.Nil, false, domain.ErrNotPersisted
	}
	if rel.PreprintID == rel.PublishedID {
		return uuid.Nil, false, domain.NewValidationError("published_id", "a record cannot be its own published version")
	}

	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	if rel.DiscoveredAt.IsZero() {
		rel.DiscoveredAt = time.Now().UTC()
	}
	metadata := rel.DiscoveryMetadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}

	insert := `
		INSERT INTO article_version_relations (
			id, preprint_id, published_id, discovered_at, discovery_source, discovery_metadata
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT article_version_relations_pair_key DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, insert,
		rel.ID, rel.PreprintID, rel.PublishedID, rel.DiscoveredAt, string(rel.DiscoverySource), []byte(metadata),
	).Scan(&id)
	switch {
	case err == nil:
		return id, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Pair already present.
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return uuid.Nil, false, domain.NewNotFoundError("record", fmt.Sprintf("%s/%s", rel.PreprintID, rel.PublishedID))
		}
		return uuid.Nil, false, fmt.Errorf("failed to create version relation: %w", err)
	}

	existing := `
		SELECT id FROM article_version_relations
		WHERE preprint_id = $1 AND published_id = $2`
	if err := r.db.QueryRow(ctx, existing, rel.PreprintID, rel.PublishedID).Scan(&id); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to read existing version relation: %w", err)
	}
	return id, false, nil
}

// GetPublishedVersionID returns the earliest published version of a preprint.
func (r *PgVersionRepository) GetPublishedVersionID(ctx context.Context, preprintID uuid.UUID) (uuid.UUID, error) {
	query := `
		SELECT published_id FROM article_version_relations
		WHERE preprint_id = $1
		ORDER BY discovered_at, id
		LIMIT 1`

	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, preprintID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, domain.NewNotFoundError("version relation", preprintID.String())
		}
		return uuid.Nil, fmt.Errorf("failed to get published version: %w", err)
	}
	return id, nil
}

// ListVersions returns all relations touching recordID.
func (r *PgVersionRepository) ListVersions(ctx context.Context, recordID uuid.UUID) ([]*domain.ArticleVersionRelation, error) {
	query := `
		SELECT id, preprint_id, published_id, discovered_at, discovery_source, discovery_metadata
		FROM article_version_relations
		WHERE preprint_id = $1 OR published_id = $1
		ORDER BY discovered_at, id`

	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var relations []*domain.ArticleVersionRelation
	for rows.Next() {
		var (
			rel      domain.ArticleVersionRelation
			source   string
			metadata []byte
		)
		if err := rows.Scan(&rel.ID, &rel.PreprintID, &rel.PublishedID, &rel.DiscoveredAt, &source, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan version relation: %w", err)
		}
		rel.DiscoverySource = domain.SourceType(source)
		rel.DiscoveryMetadata = metadata
		relations = append(relations, &rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version relations: %w", err)
	}
	return relations, nil
}
