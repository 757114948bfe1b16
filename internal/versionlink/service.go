// Package versionlink links preprint records to the records of their
// published versions.
//
// The workflow is idempotent: repeating it for the same preprint and DOI
// never creates a second published record or a second relation. Each call runs
// under an advisory lock keyed on the preprint, the published record is
// looked up before it is created, and the relation table carries a unique
// (preprint, published) constraint.
package versionlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/observability"
	"github.com/helixir/enrichment-service/internal/repository"
)

// Result messages.
const (
	MessageAlreadyLinked  = "already linked"
	MessageLinkedNew      = "linked to new record"
	MessageLinkedExisting = "linked to existing record"
	MessageFailed         = "failed to link"
)

// Service runs the preprint to published-version linking workflow.
type Service struct {
	store  repository.Store
	logger zerolog.Logger
}

// NewService creates a linking service on store.
func NewService(store repository.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "versionlink").Logger(),
	}
}

// FindRecordByDOI returns the record with the given DOI, or nil when none exists.
// The DOI is normalized before lookup.
func (s *Service) FindRecordByDOI(ctx context.Context, doi string) (*domain.Record, error) {
	return findRecordByDOI(ctx, s.store, domain.NormalizeDOI(doi))
}

func findRecordByDOI(ctx context.Context, repo repository.RecordRepository, doiNorm string) (*domain.Record, error) {
	if doiNorm == "" {
		return nil, nil
	}
	rec, err := repo.FindRecordByDOI(ctx, doiNorm)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreatePublishedVersionRecord returns the record for publishedDOI, creating
// a minimal one from preprint when none exists. created reports whether a
// record was inserted.
func (s *Service) CreatePublishedVersionRecord(ctx context.Context, preprint *domain.Record, publishedDOI string) (created bool, rec *domain.Record, err error) {
	norm := domain.NormalizeDOI(publishedDOI)
	if !domain.IsMeaningfulPublishedDOI(norm) {
		return false, nil, domain.NewValidationError("published_doi", fmt.Sprintf("unusable DOI %q", publishedDOI))
	}
	return s.findOrCreatePublished(ctx, s.store, preprint, publishedDOI, norm)
}

func (s *Service) findOrCreatePublished(ctx context.Context, repo repository.RecordRepository, preprint *domain.Record, publishedDOI, norm string) (bool, *domain.Record, error) {
	existing, err := findRecordByDOI(ctx, repo, norm)
	if err != nil {
		return false, nil, fmt.Errorf("looking up published record: %w", err)
	}
	if existing != nil {
		s.logger.Debug().
			Str("published_doi", norm).
			Str("existing_id", existing.ID.String()).
			Msg("published_version_already_exists")
		return false, existing, nil
	}

	rec := domain.NewPublishedVersionRecord(preprint, publishedDOI, norm)
	if _, err := repo.InsertRecord(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return false, nil, fmt.Errorf("inserting published record: %w", err)
		}
		// Another preprint created it between the lookup and the insert.
		existing, err := findRecordByDOI(ctx, repo, norm)
		if err != nil {
			return false, nil, fmt.Errorf("reloading published record %s: %w", norm, err)
		}
		if existing == nil {
			return false, nil, domain.NewNotFoundError("record", norm)
		}
		return false, existing, nil
	}

	s.logger.Info().
		Str("published_doi", norm).
		Str("published_id", rec.ID.String()).
		Str("preprint_id", preprint.ID.String()).
		Msg("published_version_created")
	return true, rec, nil
}

// LinkPreprintToPublished records that published is the published version of
// preprint. Both records must be persisted. It reports whether the relation
// exists after the call, which is also true when it already existed.
func (s *Service) LinkPreprintToPublished(ctx context.Context, preprint, published *domain.Record, source domain.SourceType, metadata json.RawMessage) (bool, error) {
	_, err := s.link(ctx, s.store, preprint, published, source, metadata)
	if err != nil {
		return false, err
	}
	return true, nil
}

// link creates the relation and reports whether this call inserted it.
func (s *Service) link(ctx context.Context, repo repository.VersionRepository, preprint, published *domain.Record, source domain.SourceType, metadata json.RawMessage) (bool, error) {
	if preprint == nil || published == nil || !preprint.IsPersisted() || !published.IsPersisted() {
		return false, domain.ErrNotPersisted
	}
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	id, created, err := repo.CreateArticleVersionRelation(ctx, &domain.ArticleVersionRelation{
		PreprintID:        preprint.ID,
		PublishedID:       published.ID,
		DiscoveredAt:      time.Now().UTC(),
		DiscoverySource:   source,
		DiscoveryMetadata: metadata,
	})
	if err != nil {
		return false, fmt.Errorf("creating version relation: %w", err)
	}
	if created {
		s.logger.Info().
			Str("relation_id", id.String()).
			Str("preprint_id", preprint.ID.String()).
			Str("published_id", published.ID.String()).
			Str("discovery_source", string(source)).
			Msg("version_link_created")
	}
	return created, nil
}

// ProcessPreprintToPublishedLinking links preprint to the record for
// publishedDOI, creating that record if needed. It never returns an error;
// failures are reported through LinkResult.Message.
func (s *Service) ProcessPreprintToPublishedLinking(ctx context.Context, preprint *domain.Record, publishedDOI string, source domain.SourceType, metadata json.RawMessage) domain.LinkResult {
	norm := domain.NormalizeDOI(publishedDOI)
	if !domain.IsMeaningfulPublishedDOI(norm) {
		return domain.LinkResult{Message: fmt.Sprintf("%s: invalid published DOI %q", MessageFailed, publishedDOI)}
	}
	if preprint == nil || !preprint.IsPersisted() {
		return domain.LinkResult{Message: fmt.Sprintf("%s: preprint record not persisted", MessageFailed)}
	}
	if norm == preprint.DOINorm {
		return domain.LinkResult{Message: fmt.Sprintf("%s: published DOI equals preprint DOI", MessageFailed)}
	}

	logger := observability.WithRecordContext(s.logger, preprint.ID.String(), preprint.DOINorm).
		With().Str("published_doi", norm).Logger()

	if id, err := s.store.GetPublishedVersionID(ctx, preprint.ID); err == nil {
		return domain.LinkResult{PublishedID: id, Success: true, AlreadyLinked: true, Message: MessageAlreadyLinked}
	}

	var res domain.LinkResult
	err := s.store.WithPreprintLock(ctx, preprint.ID, func(ctx context.Context, tx repository.TxStore) error {
		// Re-check under the lock; a concurrent caller may have linked it.
		id, err := tx.GetPublishedVersionID(ctx, preprint.ID)
		if err == nil {
			res = domain.LinkResult{PublishedID: id, Success: true, AlreadyLinked: true, Message: MessageAlreadyLinked}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("checking existing link: %w", err)
		}

		created, published, err := s.findOrCreatePublished(ctx, tx, preprint, publishedDOI, norm)
		if err != nil {
			return err
		}
		linkCreated, err := s.link(ctx, tx, preprint, published, source, metadata)
		if err != nil {
			return err
		}

		res = domain.LinkResult{
			PublishedID:   published.ID,
			Success:       true,
			RecordCreated: created,
			LinkCreated:   linkCreated,
			Message:       MessageLinkedExisting,
		}
		if created {
			res.Message = MessageLinkedNew
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("discovery_source", string(source)).Msg("version_link_failed")
		return domain.LinkResult{Message: fmt.Sprintf("%s: %v", MessageFailed, err)}
	}
	return res
}
