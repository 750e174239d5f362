package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/waggishPlayer/hot-wax/internal/activity"
	"github.com/waggishPlayer/hot-wax/internal/aws"
)

const retention = 30 * 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	table := os.Getenv("ACTIVITY_TABLE")
	if table == "" {
		slog.Error("ACTIVITY_TABLE is required")
		os.Exit(1)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		slog.Error("failed to create AWS clients", "error", err)
		os.Exit(1)
	}
	p := NewProcessor(activity.NewStore(clients.DynamoDB, table, retention))

	// RUN_LOCAL=true processes a single simulated message and exits.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"event_id":"local-event-1","kind":"order.created","order_id":1,"username":"local","occurred_at":"2024-01-01T00:00:00Z"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			slog.Error("local handler error", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
