package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/eventlog"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
)

type itemPutter interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// EventLogMirror copies every gateway event written to the primary log into a DynamoDB table.
// Reads are served by the primary and a failed copy never fails the write.
type EventLogMirror struct {
	eventlog.Repository
	db        itemPutter
	tableName string
	logger    *logger.Logger
}

func NewEventLogMirror(primary eventlog.Repository, client *Client, cfg *config.Configuration, logger *logger.Logger) *EventLogMirror {
	return &EventLogMirror{
		Repository: primary,
		db:         client.db,
		tableName:  cfg.DynamoDB.EventTableName,
		logger:     logger,
	}
}

type DynamoGatewayEvent struct {
	PK             string    `dynamodbav:"pk"` // TenantID#EnvironmentID
	SK             string    `dynamodbav:"sk"` // ReceivedAt#ID
	ID             string    `dynamodbav:"id"`
	Gateway        string    `dynamodbav:"gateway"`
	GatewayEventID string    `dynamodbav:"gateway_event_id"`
	Kind           string    `dynamodbav:"kind"`
	ResourceID     string    `dynamodbav:"resource_id,omitempty"`
	SubscriptionID string    `dynamodbav:"subscription_id,omitempty"`
	Outcome        string    `dynamodbav:"outcome"`
	Reason         string    `dynamodbav:"reason,omitempty"`
	Payload        string    `dynamodbav:"payload,omitempty"`
	ReceivedAt     time.Time `dynamodbav:"received_at"`
	MirroredAt     time.Time `dynamodbav:"mirrored_at"`
}

func toDynamoEvent(event *eventlog.GatewayEvent) *DynamoGatewayEvent {
	return &DynamoGatewayEvent{
		PK:             event.TenantID + "#" + event.EnvironmentID,
		SK:             event.ReceivedAt.UTC().Format(time.RFC3339Nano) + "#" + event.ID,
		ID:             event.ID,
		Gateway:        string(event.Gateway),
		GatewayEventID: event.GatewayEventID,
		Kind:           string(event.Kind),
		ResourceID:     event.ResourceID,
		SubscriptionID: event.SubscriptionID,
		Outcome:        string(event.Outcome),
		Reason:         event.Reason,
		Payload:        string(event.Payload),
		ReceivedAt:     event.ReceivedAt,
		MirroredAt:     time.Now().UTC(),
	}
}

func (m *EventLogMirror) Create(ctx context.Context, event *eventlog.GatewayEvent) error {
	if err := m.Repository.Create(ctx, event); err != nil {
		return err
	}

	if err := m.mirror(ctx, event); err != nil {
		m.logger.Warnw("failed to mirror gateway event",
			"event_id", event.ID,
			"tenant_id", event.TenantID,
			"error", err)
	}
	return nil
}

func (m *EventLogMirror) mirror(ctx context.Context, event *eventlog.GatewayEvent) error {
	item, err := attributevalue.MarshalMap(toDynamoEvent(event))
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to marshal gateway event").
			Mark(ierr.ErrSystem)
	}

	m.logger.Debugw("mirroring gateway event to dynamodb",
		"event_id", event.ID,
		"tenant_id", event.TenantID,
		"outcome", event.Outcome)

	_, err = m.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      item,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to put item in dynamodb").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
