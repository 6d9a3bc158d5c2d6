package staging

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const backendS3 = "s3"

// S3Client abstracts the S3 operations the staging store needs, enabling
// mock implementations in tests.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Config configures an S3Store. Endpoint is optional and used for
// MinIO-compatible services.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Store stages payloads as S3 objects.
type S3Store struct {
	client S3Client
	bucket string
	log    *logrus.Entry
}

// NewS3Store builds an S3 client from the config and ensures the bucket
// exists.
func NewS3Store(ctx context.Context, cfg S3Config, log *logrus.Entry) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO
			o.HTTPClient = &http.Client{}
		}
	})

	return NewS3StoreWithClient(ctx, client, cfg.Bucket, log)
}

// NewS3StoreWithClient creates an S3Store around an existing client and
// ensures the bucket exists.
func NewS3StoreWithClient(ctx context.Context, client S3Client, bucket string, log *logrus.Entry) (*S3Store, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	store := &S3Store{
		client: client,
		bucket: bucket,
		log:    log.WithField("component", "staging-s3"),
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, payload []byte) (Handle, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return Handle{}, fmt.Errorf("staging payload %s: %w", key, err)
	}

	s.log.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
		"size":   humanize.Bytes(uint64(len(payload))),
	}).Debug("Payload staged")

	return Handle{
		Backend: backendS3,
		Key:     key,
		Size:    int64(len(payload)),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, handle Handle) ([]byte, error) {
	if handle.Backend != backendS3 {
		return nil, fmt.Errorf("handle backend %q is not %s", handle.Backend, backendS3)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, handle.Size))
	downloader := manager.NewDownloader(s.client)
	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching staged payload %s: %w", handle.Key, err)
	}
	return buf.Bytes(), nil
}
