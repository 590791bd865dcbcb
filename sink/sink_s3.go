package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/widgetops/widget-consumer/widget"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const jsonContentType = "application/json"

// SinkS3 stores each widget as one compact JSON object under
// widgets/{normalized owner}/{widget id}. Storing the same widget again
// overwrites the previous object.
type SinkS3 struct {
	client s3API

	bucket    string
	bucketPtr *string
	prefix    string
}

func NewS3(client s3API, bucket, prefix string) *SinkS3 {
	if client == nil {
		panic("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("bucket is required")
	}

	s := &SinkS3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	// Pointer estável (sem aws.String que aloca).
	s.bucketPtr = &s.bucket
	return s
}

func (s *SinkS3) Store(ctx context.Context, rec widget.Record) error {
	key := widget.StorageKey(rec["owner"], rec["widget_id"])
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode widget record: %w", err)
	}

	cl := int64(len(data))
	ct := jsonContentType

	// Evita alocação do bytes.NewReader.
	var body bytes.Reader
	body.Reset(data)

	input := s3.PutObjectInput{
		Bucket:        s.bucketPtr,
		Key:           &key,
		Body:          &body,
		ContentLength: &cl,
		ContentType:   &ct,
	}

	if _, err := s.client.PutObject(ctx, &input); err != nil {
		return fmt.Errorf("put widget object key=%q: %w", key, err)
	}
	return nil
}
