package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/widgetops/widget-consumer/widget"
)

type fakeS3API struct {
	mu sync.Mutex

	putCalls int
	lastIn   *s3.PutObjectInput
	lastBody []byte

	putErr error
}

var _ s3API = (*fakeS3API)(nil)

func (f *fakeS3API) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	f.putCalls++
	f.lastIn = in
	putErr := f.putErr
	f.mu.Unlock()

	if putErr != nil {
		return nil, putErr
	}

	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.mu.Lock()
		f.lastBody = b
		f.mu.Unlock()
	}
	return &s3.PutObjectOutput{}, nil
}

func TestSinkS3_Store_WritesCompactJSONAtWidgetKey(t *testing.T) {
	f := &fakeS3API{}
	s := NewS3(f, "bkt", "")

	rec := widget.Record{
		"widget_id": "w1",
		"owner":     "Alice Smith",
		"color":     "red",
	}
	if err := s.Store(context.Background(), rec); err != nil {
		t.Fatalf("Store: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putCalls != 1 {
		t.Fatalf("expected 1 call, got %d", f.putCalls)
	}
	if aws.ToString(f.lastIn.Bucket) != "bkt" {
		t.Fatalf("bucket: %q", aws.ToString(f.lastIn.Bucket))
	}
	if aws.ToString(f.lastIn.Key) != "widgets/alice-smith/w1" {
		t.Fatalf("key: %q", aws.ToString(f.lastIn.Key))
	}
	if aws.ToString(f.lastIn.ContentType) != "application/json" {
		t.Fatalf("content-type: %q", aws.ToString(f.lastIn.ContentType))
	}
	if f.lastIn.ContentLength == nil || *f.lastIn.ContentLength != int64(len(f.lastBody)) {
		t.Fatalf("content-length: %#v", f.lastIn.ContentLength)
	}

	// JSON key order is unspecified; compare decoded.
	var got map[string]string
	if err := json.Unmarshal(f.lastBody, &got); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]string(rec)) {
		t.Fatalf("body mismatch: %#v", got)
	}
}

func TestSinkS3_Store_PrefixesKey(t *testing.T) {
	f := &fakeS3API{}
	s := NewS3(f, "bkt", "/pfx/")

	rec := widget.Record{"widget_id": "w1", "owner": "Bob"}
	if err := s.Store(context.Background(), rec); err != nil {
		t.Fatalf("Store: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if aws.ToString(f.lastIn.Key) != "pfx/widgets/bob/w1" {
		t.Fatalf("key: %q", aws.ToString(f.lastIn.Key))
	}
}

func TestSinkS3_Store_OverwriteAllowed(t *testing.T) {
	f := &fakeS3API{}
	s := NewS3(f, "bkt", "")

	rec := widget.Record{"widget_id": "w1", "owner": "Bob"}
	for i := 0; i < 2; i++ {
		if err := s.Store(context.Background(), rec); err != nil {
			t.Fatalf("Store #%d: %v", i+1, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putCalls != 2 {
		t.Fatalf("expected 2 calls, got %d", f.putCalls)
	}
	if aws.ToString(f.lastIn.Key) != "widgets/bob/w1" {
		t.Fatalf("key: %q", aws.ToString(f.lastIn.Key))
	}
}

func TestSinkS3_Store_PropagatesPutError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeS3API{putErr: boom}
	s := NewS3(f, "bkt", "")

	err := s.Store(context.Background(), widget.Record{"widget_id": "w1", "owner": "Bob"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNewS3_PanicsOnMissingClientOrBucket(t *testing.T) {
	assertPanics := func(name string, fn func()) {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			fn()
		})
	}

	assertPanics("nil client", func() { NewS3(nil, "bkt", "") })
	assertPanics("empty bucket", func() { NewS3(&fakeS3API{}, " ", "") })
}
