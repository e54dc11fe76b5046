// ABOUTME: AWS S3 inventory source reading a topology snapshot object from a bucket.
// ABOUTME: Handles credential loading and optional role assumption like other AWS integrations.

package aws

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/jfeddern/PatchRelay/internal/providers/codec"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/sirupsen/logrus"
)

// MaxObjectSize caps the snapshot object read from S3
const MaxObjectSize = 64 << 20

// s3API is the subset of the S3 client used here
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source implements InventorySource for a snapshot object in Amazon S3
type S3Source struct {
	client s3API
	bucket string
	key    string
	region string
	logger *logrus.Logger
}

// NewS3Source creates a new S3 inventory source
func NewS3Source(ctx context.Context, bucket, key, region string, logger *logrus.Logger) (*S3Source, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("S3 bucket and key are required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(cfg.Copy())

	// Check if we need to assume a role based on AWS_IAM_ASSUME_ROLE_ARN environment variable
	if assumeRoleARN := os.Getenv("AWS_IAM_ASSUME_ROLE_ARN"); assumeRoleARN != "" {
		logger.WithField("role_arn", assumeRoleARN).Info("Assuming role from AWS_IAM_ASSUME_ROLE_ARN environment variable")
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, assumeRoleARN))
	} else {
		identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			logger.WithError(err).Warn("Could not get caller identity, proceeding with default credentials")
		} else {
			logger.WithFields(logrus.Fields{
				"account": aws.ToString(identity.Account),
				"arn":     aws.ToString(identity.Arn),
			}).Info("AWS identity information")
		}
	}

	return newS3Source(s3.NewFromConfig(cfg), bucket, key, region, logger), nil
}

func newS3Source(client s3API, bucket, key, region string, logger *logrus.Logger) *S3Source {
	return &S3Source{
		client: client,
		bucket: bucket,
		key:    key,
		region: region,
		logger: logger,
	}
}

// Name returns the inventory source name
func (s *S3Source) Name() string {
	return "aws-s3"
}

// LoadSnapshot downloads and decodes the snapshot object
func (s *S3Source) LoadSnapshot(ctx context.Context) (types.Snapshot, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"operation": "load_snapshot_s3",
		"bucket":    s.bucket,
		"key":       s.key,
	})

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close S3 object body")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectSize+1))
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	if len(data) > MaxObjectSize {
		return types.Snapshot{}, fmt.Errorf("s3://%s/%s exceeds %d bytes", s.bucket, s.key, MaxObjectSize)
	}

	snap, err := codec.Decode(s.key, data)
	if err != nil {
		return types.Snapshot{}, err
	}

	logger.WithFields(logrus.Fields{
		"assets":        len(snap.Assets),
		"links":         len(snap.Links),
		"etag":          aws.ToString(out.ETag),
		"last_modified": aws.ToTime(out.LastModified),
	}).Info("Read inventory from S3")

	return snap, nil
}
