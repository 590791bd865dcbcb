package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// SourceS3 claims pending requests from an S3 bucket.
//
// S3 lists keys in lexicographic order, so a MaxKeys=1 listing always
// yields the smallest outstanding key. With a single consumer per bucket
// that makes claims deterministic without any coordination.
type SourceS3 struct {
	client s3API

	bucket    string
	bucketPtr *string
	prefix    string
}

func NewS3(client s3API, bucket, prefix string) *SourceS3 {
	if client == nil {
		panic("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("bucket is required")
	}

	s := &SourceS3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	// Pointer estável (sem aws.String que aloca).
	s.bucketPtr = &s.bucket
	return s
}

func (s *SourceS3) FetchNext(ctx context.Context) (*Envelope, error) {
	maxKeys := int32(1)
	in := s3.ListObjectsV2Input{
		Bucket:  s.bucketPtr,
		MaxKeys: &maxKeys,
	}
	if s.prefix != "" {
		p := s.prefix + "/"
		in.Prefix = &p
	}

	out, err := s.client.ListObjectsV2(ctx, &in)
	if err != nil {
		return nil, fmt.Errorf("list pending objects bucket=%q: %w", s.bucket, err)
	}
	if len(out.Contents) == 0 {
		return nil, nil
	}

	key := aws.ToString(out.Contents[0].Key)
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.bucketPtr,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get pending object key=%q: %w", key, err)
	}
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read pending object key=%q: %w", key, err)
	}

	return &Envelope{Key: key, Body: body}, nil
}

func (s *SourceS3) Remove(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}

	keyVar := key
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.bucketPtr,
		Key:    &keyVar,
	})
	if err != nil {
		return fmt.Errorf("delete pending object key=%q: %w", key, err)
	}
	return nil
}
