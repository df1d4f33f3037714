// Package storage implements the object-storage adapter of §4.2/§4.5: the
// validator fetches the input CSV through it, and the aggregator writes the
// gzip-compressed result artifact through it. Grounded on
// pithecene-io-quarry's S3 client construction (default credential chain,
// optional custom endpoint/path-style) and gurre-ddb-pitr's thin
// GetObject/PutObject client-interface seam for testability.
package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"statsingest/internal/config"
)

// Client is the subset of the S3 SDK this package depends on, narrowed to
// keep S3Store unit-testable without a live bucket.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

// NewClient builds an S3 client from the default AWS credential chain,
// honoring an optional custom endpoint and path-style addressing for
// local testing against MinIO-compatible endpoints.
func NewClient(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}
