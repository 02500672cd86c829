package handlers

import (
	"context"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/database"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// FakeRepository is an in-memory test fake for Repository.
type FakeRepository struct {
	Events     map[string]*model.NonLocalizedEvent
	Summaries  []*database.EventSummary
	GetErr     error
	SaveErr    error
	ListErr    error
	UpdateErr  error
	SaveCalls  int
	SavedEvent *model.NonLocalizedEvent
	GetHook    func() // runs at the top of GetEvent when set
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{Events: make(map[string]*model.NonLocalizedEvent)}
}

func (f *FakeRepository) GetEvent(ctx context.Context, eventID string) (*model.NonLocalizedEvent, error) {
	if f.GetHook != nil {
		f.GetHook()
	}
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	event, ok := f.Events[eventID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return event, nil
}

func (f *FakeRepository) SaveEvent(ctx context.Context, event *model.NonLocalizedEvent) error {
	f.SaveCalls++
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.Events[event.EventID] = event
	f.SavedEvent = event
	return nil
}

func (f *FakeRepository) ListEvents(ctx context.Context, eventType, eventID string) ([]*database.EventSummary, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Summaries, nil
}

func (f *FakeRepository) GetCandidate(ctx context.Context, candidateID string) (*model.EventCandidate, string, error) {
	if f.GetErr != nil {
		return nil, "", f.GetErr
	}
	for _, event := range f.Events {
		if c := event.FindCandidate(candidateID); c != nil {
			return c, event.EventID, nil
		}
	}
	return nil, "", model.ErrCandidateNotFound
}

func (f *FakeRepository) UpdateCandidate(ctx context.Context, candidateID string, patch model.CandidatePatch) (*model.EventCandidate, error) {
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	for _, event := range f.Events {
		if c := event.FindCandidate(candidateID); c != nil {
			patch.Apply(c, time.Now())
			return c, nil
		}
	}
	return nil, model.ErrCandidateNotFound
}

func (f *FakeRepository) ListLocalizations(ctx context.Context, eventID string) ([]*model.EventLocalization, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	event, ok := f.Events[eventID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return event.Localizations, nil
}

func (f *FakeRepository) Close() error {
	return nil
}

// FakeSourceClient is a test fake for sourceclient.Client.
type FakeSourceClient struct {
	Report      *events.RawReport
	Extras      map[string]any
	ReportErr   error
	ExtrasErr   error
	ReportCalls int
	ExtrasCalls int
}

func (f *FakeSourceClient) GetCanonicalReport(ctx context.Context, externalID string) (*events.RawReport, error) {
	f.ReportCalls++
	if f.ReportErr != nil {
		return nil, f.ReportErr
	}
	return f.Report, nil
}

func (f *FakeSourceClient) GetPresentationExtras(ctx context.Context, externalID string) (map[string]any, error) {
	f.ExtrasCalls++
	if f.ExtrasErr != nil {
		return nil, f.ExtrasErr
	}
	return f.Extras, nil
}

// FakeCache is an in-memory test fake for cache.Cache.
type FakeCache struct {
	Values map[string][]byte
	GetErr error
	SetErr error
}

func NewFakeCache() *FakeCache {
	return &FakeCache{Values: make(map[string][]byte)}
}

func (f *FakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.GetErr != nil {
		return nil, false, f.GetErr
	}
	value, ok := f.Values[key]
	return value, ok, nil
}

func (f *FakeCache) Set(ctx context.Context, key string, value []byte) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	f.Values[key] = value
	return nil
}
