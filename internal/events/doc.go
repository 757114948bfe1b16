// Package events connects the enrichment service to Kafka.
//
// # Components
//
//   - Emitter: builds domain.Event envelopes for the service
//   - Publisher: writes events to the events topic and implements enrich.Notifier
//   - Listener: consumes enrichment.requested events and starts batch runs
//
// # Event Types
//
//   - record.enriched: a record was enriched and persisted
//   - version.linked: a new preprint to published-version relation was created
//   - enrichment.batch_completed: a batch run finished
//
// Publishing is best effort. Callers log failures and carry on; the database
// remains the source of truth.
package events
