package dynamodb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/eventlog"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*dynamodb.PutItemInput
	err    error
}

func (f *fakePutter) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.inputs = append(f.inputs, params)
	return &dynamodb.PutItemOutput{}, f.err
}

func newMirror(putter *fakePutter) (*EventLogMirror, *testutil.InMemoryEventLogStore) {
	primary := testutil.NewInMemoryEventLogStore()
	return &EventLogMirror{
		Repository: primary,
		db:         putter,
		tableName:  "events",
		logger:     logger.NewNopLogger(),
	}, primary
}

func gatewayEvent(ctx context.Context) *eventlog.GatewayEvent {
	return &eventlog.GatewayEvent{
		ID:             "gwe_1",
		TenantID:       types.GetTenantID(ctx),
		EnvironmentID:  types.GetEnvironmentID(ctx),
		Gateway:        types.GatewayTypePayPal,
		GatewayEventID: "WH-1",
		Kind:           types.GatewayEventSale,
		Outcome:        types.DispatchOutcomeProcessed,
		Payload:        json.RawMessage(`{"id":"WH-1"}`),
		ReceivedAt:     time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewClientNotInUse(t *testing.T) {
	client, err := NewClient(config.GetDefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestCreateMirrorsEvent(t *testing.T) {
	putter := &fakePutter{}
	mirror, primary := newMirror(putter)
	ctx := testutil.SetupContext()

	require.NoError(t, mirror.Create(ctx, gatewayEvent(ctx)))

	stored, err := primary.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "events", *putter.inputs[0].TableName)

	var item DynamoGatewayEvent
	require.NoError(t, attributevalue.UnmarshalMap(putter.inputs[0].Item, &item))
	assert.Equal(t, types.DefaultTenantID+"#"+types.GetEnvironmentID(ctx), item.PK)
	assert.Equal(t, "2024-06-01T12:00:00Z#gwe_1", item.SK)
	assert.Equal(t, "paypal", item.Gateway)
	assert.Equal(t, `{"id":"WH-1"}`, item.Payload)
}

func TestMirrorFailureDoesNotFailWrite(t *testing.T) {
	putter := &fakePutter{err: assert.AnError}
	mirror, primary := newMirror(putter)
	ctx := testutil.SetupContext()

	require.NoError(t, mirror.Create(ctx, gatewayEvent(ctx)))
	count, err := primary.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrimaryFailureSkipsMirror(t *testing.T) {
	putter := &fakePutter{}
	mirror, _ := newMirror(putter)
	ctx := testutil.SetupContext()

	require.NoError(t, mirror.Create(ctx, gatewayEvent(ctx)))
	require.Error(t, mirror.Create(ctx, gatewayEvent(ctx)))
	assert.Len(t, putter.inputs, 1)
}
