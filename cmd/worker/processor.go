package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/waggishPlayer/hot-wax/internal/activity"
)

// EventStore persists activity events; activity.Store implements it.
type EventStore interface {
	Put(ctx context.Context, ev activity.Event) (bool, error)
	Get(ctx context.Context, eventID string) (*activity.Record, error)
}

// Processor records activity events delivered by SQS.
type Processor struct {
	store EventStore
}

// NewProcessor creates a worker processor backed by store.
func NewProcessor(store EventStore) *Processor {
	return &Processor{store: store}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Lambda retries the batch; repeated failures land in the DLQ.
			slog.Error("worker error", "message_id", rec.MessageId, "error", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev activity.Event
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ev.EventID == "" || ev.Kind == "" {
		return fmt.Errorf("incomplete event in message %s", rec.MessageId)
	}

	created, err := p.store.Put(ctx, ev)
	if err != nil {
		return fmt.Errorf("failed to store event %s: %w", ev.EventID, err)
	}
	if !created {
		return p.duplicate(ctx, ev)
	}

	slog.Info("activity recorded",
		"event_id", ev.EventID,
		"kind", ev.Kind,
		"order_id", ev.OrderID,
		"username", ev.Username,
		"request_id", ev.RequestID,
	)
	return nil
}

// duplicate handles a redelivered event ID. Replays and IDs reused for a
// different event are both dropped; only a failed lookup fails the batch.
func (p *Processor) duplicate(ctx context.Context, ev activity.Event) error {
	existing, err := p.store.Get(ctx, ev.EventID)
	if err != nil {
		return fmt.Errorf("failed to load stored event %s: %w", ev.EventID, err)
	}
	if existing == nil {
		// expired between the conditional put and the read
		slog.Info("duplicate activity event already expired", "event_id", ev.EventID)
		return nil
	}
	if existing.Kind != ev.Kind || existing.OrderID != ev.OrderID {
		slog.Error("activity event id reused",
			"event_id", ev.EventID,
			"stored_kind", existing.Kind,
			"stored_order_id", existing.OrderID,
			"kind", ev.Kind,
			"order_id", ev.OrderID,
		)
		return nil
	}
	slog.Info("duplicate activity event", "event_id", ev.EventID, "kind", ev.Kind, "recorded_at", existing.RecordedAt)
	return nil
}
