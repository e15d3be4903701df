package s3

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
)

const (
	defaultPresignExpiryDuration = 30 * time.Minute
)

// Service archives raw gateway deliveries
type Service interface {
	ArchivePayload(ctx context.Context, payload *GatewayPayload) (string, error)
	GetPresignedUrl(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type s3ServiceImpl struct {
	client    objectAPI
	presigner *s3.PresignClient
	config    *config.S3Config
}

// NewService returns nil when the archive is disabled
func NewService(config *config.Configuration) (Service, error) {
	if !config.S3.Enabled {
		return nil, nil
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion(config.S3.Region),
	)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("failed to load aws config").
			Mark(ierr.ErrHTTPClient)
	}

	client := s3.NewFromConfig(awsCfg)
	return &s3ServiceImpl{
		config:    &config.S3,
		client:    client,
		presigner: s3.NewPresignClient(client),
	}, nil
}

// ArchivePayload implements Service and returns the object key.
func (s *s3ServiceImpl) ArchivePayload(ctx context.Context, payload *GatewayPayload) (string, error) {
	key := payload.ObjectKey(s.config.KeyPrefix)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload.Data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"tenant-id":      payload.TenantID,
			"environment-id": payload.EnvironmentID,
			"gateway":        string(payload.Gateway),
		},
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHintf("failed to archive gateway payload to %s", key).
			Mark(ierr.ErrHTTPClient)
	}

	return key, nil
}

// Exists implements Service.
func (s *s3ServiceImpl) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		var nsk *s3types.NoSuchKey
		var nske *s3types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nske) {
			return false, nil
		}
		return false, ierr.WithError(err).
			WithHint("failed to check archived payload").
			Mark(ierr.ErrHTTPClient)
	}

	return true, nil
}

// GetPresignedUrl implements Service.
func (s *s3ServiceImpl) GetPresignedUrl(ctx context.Context, key string) (string, error) {
	duration, err := time.ParseDuration(s.config.PresignExpiryDuration)
	if err != nil {
		duration = defaultPresignExpiryDuration
	}

	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(duration))
	if err != nil {
		return "", ierr.WithError(err).
			WithHintf("failed to get presigned url for %s", key).
			Mark(ierr.ErrHTTPClient)
	}

	return result.URL, nil
}
