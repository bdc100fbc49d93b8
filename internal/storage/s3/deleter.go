// Package s3 implements storage.Deleter for RSEs backed by S3-compatible
// object stores. The replica's Path is used as the object key.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cull-io/cull/internal/replica"
	"github.com/cull-io/cull/internal/storage"
)

// Config configures an S3 deleter.
type Config struct {
	// Bucket is the name of the S3 bucket holding replica data.
	Bucket string

	// Region is the AWS region (e.g., "us-east-1").
	// Required for AWS S3, optional for S3-compatible endpoints.
	Region string

	// Endpoint is the S3 endpoint URL (e.g., "http://localhost:9000" for MinIO).
	// If empty, uses the default AWS endpoint for the region.
	Endpoint string

	// AccessKeyID is the AWS access key ID.
	// If empty, uses the default credential chain.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	// If empty, uses the default credential chain.
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (required for MinIO and
	// some S3-compatible stores).
	UsePathStyle bool
}

// Deleter implements storage.Deleter on an S3 bucket.
type Deleter struct {
	client *awss3.Client
	bucket string
}

// New creates an S3 deleter with the given configuration.
func New(ctx context.Context, cfg Config) (*Deleter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket name is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	} else {
		opts = append(opts, awsconfig.WithRegion("us-east-1"))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	s3Opts := []func(*awss3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Deleter{
		client: awss3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

// Delete removes the replica's object. A missing object maps to
// storage.ErrNotFound so callers can treat it as already deleted.
func (d *Deleter) Delete(ctx context.Context, r replica.Replica) error {
	if r.Path == "" {
		return &storage.OpError{Op: "Delete", Ref: r.Ref, Err: errors.New("replica has no path")}
	}

	_, err := d.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(r.Path),
	})
	if err != nil {
		return d.wrapError(r.Ref, err)
	}
	return nil
}

func (d *Deleter) wrapError(ref replica.Ref, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return &storage.OpError{Op: "Delete", Ref: ref, Err: storage.ErrNotFound}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &storage.OpError{Op: "Delete", Ref: ref, Err: storage.ErrNotFound}
	}

	return &storage.OpError{Op: "Delete", Ref: ref, Err: err}
}

var _ storage.Deleter = (*Deleter)(nil)
