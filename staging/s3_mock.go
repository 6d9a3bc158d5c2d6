package staging

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MockS3Client is an in-memory S3Client for tests.
type MockS3Client struct {
	Objects map[string][]byte
	Buckets map[string]bool
	Err     error

	PutObjectCalled    bool
	GetObjectCalled    bool
	HeadBucketCalled   bool
	CreateBucketCalled bool
	LastBucket         string
	LastKey            string
}

// NewMockS3Client creates an empty mock client.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		Objects: make(map[string][]byte),
		Buckets: make(map[string]bool),
	}
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.PutObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if params.Key != nil {
		m.LastKey = *params.Key
	}
	if m.Err != nil {
		return nil, m.Err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.Objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.GetObjectCalled = true
	if params.Key != nil {
		m.LastKey = *params.Key
	}
	if m.Err != nil {
		return nil, m.Err
	}
	data, ok := m.Objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	size := int64(len(data))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentLength: &size,
	}, nil
}

func (m *MockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.HeadBucketCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if !m.Buckets[*params.Bucket] {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *MockS3Client) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	m.CreateBucketCalled = true
	if m.Err != nil {
		return nil, m.Err
	}
	m.Buckets[*params.Bucket] = true
	return &s3.CreateBucketOutput{}, nil
}
