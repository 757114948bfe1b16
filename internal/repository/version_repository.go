package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/enrichment-service/internal/domain"
)

// VersionRepository persists preprint to published-version relations.
type VersionRepository interface {
	// CreateArticleVersionRelation inserts rel unless the (preprint,
	// published) pair already exists. It returns the identity of the stored
	// relation and whether this call created it.
	CreateArticleVersionRelation(ctx context.Context, rel *domain.ArticleVersionRelation) (uuid.UUID, bool, error)

	// GetPublishedVersionID returns the published record linked to preprintID.
	// When several exist the earliest discovered wins.
	// Returns domain.ErrNotFound if the preprint is not linked.
	GetPublishedVersionID(ctx context.Context, preprintID uuid.UUID) (uuid.UUID, error)

	// ListVersions returns every relation in which recordID is either the
	// preprint or the published version.
	ListVersions(ctx context.Context, recordID uuid.UUID) ([]*domain.ArticleVersionRelation, error)
}
