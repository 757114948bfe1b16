package enrich

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/papersources"
)

var testLogger = zerolog.Nop()

// fakeAdapter is a scripted papersources.Adapter.
type fakeAdapter struct {
	source  domain.SourceType
	enabled bool
	fetch   func(ctx context.Context, rec *domain.Record) *papersources.Result
	calls   atomic.Int32
}

func newFakeAdapter(source domain.SourceType, fetch func(ctx context.Context, rec *domain.Record) *papersources.Result) *fakeAdapter {
	return &fakeAdapter{source: source, enabled: true, fetch: fetch}
}

func (f *fakeAdapter) Fetch(ctx context.Context, rec *domain.Record) *papersources.Result {
	f.calls.Add(1)
	return f.fetch(ctx, rec)
}

func (f *fakeAdapter) SourceType() domain.SourceType { return f.source }
func (f *fakeAdapter) Name() string { return f.source.DisplayName() }
func (f *fakeAdapter) IsEnabled() bool { return f.enabled }

// credentialedFake adds HasCredential to a fakeAdapter.
type credentialedFake struct {
	*fakeAdapter
	hasCredential bool
}

func (c *credentialedFake) HasCredential() bool { return c.hasCredential }

func abstractResult(text string) func(context.Context, *domain.Record) *papersources.Result {
	return func(context.Context, *domain.Record) *papersources.Result {
		raw, _ := json.Marshal(map[string]string{"abstract": text})
		return &papersources.Result{Abstract: text, Raw: raw}
	}
}

func failedResult(err error) func(context.Context, *domain.Record) *papersources.Result {
	return func(context.Context, *domain.Record) *papersources.Result {
		return papersources.Failure(err, json.RawMessage(`{"error":"scripted"}`))
	}
}

func noDOIResult(_ context.Context, rec *domain.Record) *papersources.Result {
	if rec.DOINorm == "" {
		return papersources.Failure(domain.ErrNoDOI, nil)
	}
	return &papersources.Result{Abstract: "unused", Raw: json.RawMessage(`{}`)}
}

// fakeLinker links idempotently in memory.
type fakeLinker struct {
	mu        sync.Mutex
	links     map[uuid.UUID]uuid.UUID
	byDOI     map[string]uuid.UUID
	calls     int
	lastDOI   string
	lastSrc   domain.SourceType
	forceFail bool
}

func newFakeLinker() *fakeLinker {
	return &fakeLinker{links: map[uuid.UUID]uuid.UUID{}, byDOI: map[string]uuid.UUID{}}
}

func (l *fakeLinker) ProcessPreprintToPublishedLinking(_ context.Context, preprint *domain.Record, doi string, source domain.SourceType, _ json.RawMessage) domain.LinkResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.lastDOI = doi
	l.lastSrc = source

	if l.forceFail {
		return domain.LinkResult{Message: "failed to link"}
	}
	if id, ok := l.links[preprint.ID]; ok {
		return domain.LinkResult{PublishedID: id, Success: true, AlreadyLinked: true, Message: "already linked"}
	}
	id, existed := l.byDOI[doi]
	if !existed {
		id = uuid.New()
		l.byDOI[doi] = id
	}
	l.links[preprint.ID] = id
	msg := "linked to new record"
	if existed {
		msg = "linked to existing record"
	}
	return domain.LinkResult{PublishedID: id, Success: true, RecordCreated: !existed, LinkCreated: true, Message: msg}
}
