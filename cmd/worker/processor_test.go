package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/waggishPlayer/hot-wax/internal/activity"
)

// --- mock implementations ---

type mockStore struct {
	seen     map[string]activity.Event
	calls    int
	getCalls int
	err      error
	getErr   error
}

func newMockStore() *mockStore {
	return &mockStore{seen: map[string]activity.Event{}}
}

func (m *mockStore) Put(ctx context.Context, ev activity.Event) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.seen[ev.EventID]; ok {
		return false, nil
	}
	m.seen[ev.EventID] = ev
	return true, nil
}

func (m *mockStore) Get(ctx context.Context, eventID string) (*activity.Record, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	ev, ok := m.seen[eventID]
	if !ok {
		return nil, nil
	}
	return &activity.Record{Event: ev, RecordedAt: ev.OccurredAt}, nil
}

func sqsEvent(t *testing.T, evs ...activity.Event) events.SQSEvent {
	t.Helper()
	var out events.SQSEvent
	for i, ev := range evs {
		body, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		out.Records = append(out.Records, events.SQSMessage{MessageId: string(rune('a' + i)), Body: string(body)})
	}
	return out
}

// --- test cases ---

func TestWorkerProcess_Success(t *testing.T) {
	store := newMockStore()
	p := NewProcessor(store)

	ev := activity.NewEvent(activity.KindOrderCreated, 11, "ada", "req-1", time.Now())
	if err := p.Handle(context.Background(), sqsEvent(t, ev)); err != nil {
		t.Fatalf("unexpected worker error: %v", err)
	}
	if got, ok := store.seen[ev.EventID]; !ok || got.OrderID != 11 {
		t.Fatalf("expected event stored, got %+v", store.seen)
	}
}

func TestWorkerProcess_DuplicateIsSwallowed(t *testing.T) {
	store := newMockStore()
	p := NewProcessor(store)

	ev := activity.NewEvent(activity.KindOrderDeleted, 7, "ada", "", time.Now())
	if err := p.Handle(context.Background(), sqsEvent(t, ev, ev)); err != nil {
		t.Fatalf("duplicate delivery must not fail: %v", err)
	}
	if store.calls != 2 || len(store.seen) != 1 {
		t.Fatalf("expected two puts and one stored event, got calls=%d stored=%d", store.calls, len(store.seen))
	}
	if store.getCalls != 1 {
		t.Fatalf("expected the stored event to be looked up once, got %d", store.getCalls)
	}
}

func TestWorkerProcess_ReusedIDIsDropped(t *testing.T) {
	store := newMockStore()
	p := NewProcessor(store)

	first := activity.NewEvent(activity.KindOrderCreated, 7, "ada", "", time.Now())
	reused := first
	reused.Kind = activity.KindOrderDeleted
	if err := p.Handle(context.Background(), sqsEvent(t, first, reused)); err != nil {
		t.Fatalf("a reused id must not fail the batch: %v", err)
	}
	if got := store.seen[first.EventID]; got.Kind != activity.KindOrderCreated {
		t.Fatalf("expected the first event kept, got %+v", got)
	}
}

func TestWorkerProcess_DuplicateLookupErrorFailsBatch(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("dynamo down")
	p := NewProcessor(store)

	ev := activity.NewEvent(activity.KindOrderUpdated, 3, "ada", "", time.Now())
	if err := p.Handle(context.Background(), sqsEvent(t, ev, ev)); err == nil {
		t.Fatalf("expected error so the batch is retried")
	}
}

func TestWorkerProcess_InvalidBody(t *testing.T) {
	p := NewProcessor(newMockStore())
	ev := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "bad", Body: "not json"}}}

	if err := p.Handle(context.Background(), ev); err == nil {
		t.Fatalf("expected error for invalid body")
	}
}

func TestWorkerProcess_IncompleteEvent(t *testing.T) {
	store := newMockStore()
	p := NewProcessor(store)

	if err := p.Handle(context.Background(), sqsEvent(t, activity.Event{OrderID: 1})); err == nil {
		t.Fatalf("expected error for event without id")
	}
	if store.calls != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestWorkerProcess_StoreErrorFailsBatch(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("dynamo down")
	p := NewProcessor(store)

	ev := activity.NewEvent(activity.KindOrderUpdated, 2, "ada", "", time.Now())
	if err := p.Handle(context.Background(), sqsEvent(t, ev)); err == nil {
		t.Fatalf("expected error so the batch is retried")
	}
}
