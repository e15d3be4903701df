package dynamodb

import (
	"context"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
)

type Client struct {
	db *dynamodb.Client
}

// NewClient returns nil when the mirror is not in use
func NewClient(cfg *config.Configuration) (*Client, error) {
	if !cfg.DynamoDB.InUse {
		return nil, nil
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion(cfg.DynamoDB.Region),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("unable to load AWS SDK config").
			Mark(ierr.ErrSystem)
	}

	return &Client{
		db: dynamodb.NewFromConfig(awsCfg),
	}, nil
}
