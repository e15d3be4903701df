package s3

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	put     *s3.PutObjectInput
	body    []byte
	headErr error
}

func (f *fakeObjects) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	received := time.Date(2024, time.June, 1, 23, 30, 0, 0, time.UTC)

	p := &GatewayPayload{TenantID: "tenant_1", Gateway: types.GatewayTypePayPal, EventID: "WH-1", ReceivedAt: received}
	assert.Equal(t, "gateway-events/tenant_1/paypal/2024/06/01/WH-1.json", p.ObjectKey("gateway-events"))
	assert.Equal(t, "tenant_1/paypal/2024/06/01/WH-1.json", p.ObjectKey(""))

	p.EventID = ""
	assert.Contains(t, p.ObjectKey(""), "unidentified-")
}

func TestNewServiceDisabled(t *testing.T) {
	svc, err := NewService(config.GetDefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestArchivePayload(t *testing.T) {
	objects := &fakeObjects{}
	svc := &s3ServiceImpl{client: objects, config: &config.S3Config{Bucket: "archive", KeyPrefix: "events"}}

	key, err := svc.ArchivePayload(context.Background(), &GatewayPayload{
		TenantID:   "tenant_1",
		Gateway:    types.GatewayTypeStripe,
		EventID:    "evt_1",
		ReceivedAt: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
		Data:       []byte(`{"id":"evt_1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "events/tenant_1/stripe/2024/01/02/evt_1.json", key)
	require.NotNil(t, objects.put)
	assert.Equal(t, "archive", *objects.put.Bucket)
	assert.Equal(t, `{"id":"evt_1"}`, string(objects.body))
	assert.Equal(t, "stripe", objects.put.Metadata["gateway"])
}

func TestExists(t *testing.T) {
	tests := []struct {
		name     string
		headErr  error
		expected bool
		wantErr  bool
	}{
		{name: "present", expected: true},
		{name: "missing", headErr: &s3types.NotFound{}, expected: false},
		{name: "no such key", headErr: &s3types.NoSuchKey{}, expected: false},
		{name: "failure", headErr: assert.AnError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &s3ServiceImpl{client: &fakeObjects{headErr: tt.headErr}, config: &config.S3Config{Bucket: "archive"}}
			ok, err := svc.Exists(context.Background(), "k")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsHTTPClient(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}
