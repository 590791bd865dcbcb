// Package archive keeps a best-effort audit trail of claim outcomes.
// Entries are buffered in memory and periodically uploaded as parquet
// objects; a failed flush drops the batch and never disturbs the claim
// loop.
package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"

	"github.com/widgetops/widget-consumer/metrics"
)

// Outcomes recorded per claimed request.
const (
	OutcomeStored      = "stored"
	OutcomeMalformed   = "malformed"
	OutcomeInvalid     = "invalid"
	OutcomeStoreFailed = "store_failed"
	OutcomeSkipped     = "skipped"
	OutcomeUnknown     = "unknown"
)

// Entry is one audit record per claimed request.
type Entry struct {
	ClaimedAt   int64  `parquet:"name=claimed_at"` // milliseconds since epoch
	Key         string `parquet:"name=key"`
	RequestID   string `parquet:"name=request_id"`
	RequestType string `parquet:"name=request_type"`
	Outcome     string `parquet:"name=outcome"`
	Detail      string `parquet:"name=detail"`
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const parquetContentType = "application/vnd.apache.parquet"

type Config struct {
	MaxEntries    int
	FlushInterval time.Duration
}

var DefaultConfig = Config{
	MaxEntries:    256,
	FlushInterval: time.Minute,
}

func (c Config) Validate() error {
	if c.MaxEntries <= 0 {
		return errors.New("MaxEntries must be > 0")
	}
	if c.FlushInterval <= 0 {
		return errors.New("FlushInterval must be > 0")
	}
	return nil
}

// Trail buffers audit entries for a single claim loop. Not safe for
// concurrent use. A nil Trail is valid and records nothing.
type Trail struct {
	cfg    Config
	client s3API
	log    *slog.Logger

	bucket    string
	bucketPtr *string
	prefix    string

	entries  []Entry
	deadline time.Time
	active   bool
}

func New(client s3API, bucket, prefix string, cfg Config, log *slog.Logger) (*Trail, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	t := &Trail{
		cfg:    cfg,
		client: client,
		log:    log,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	t.bucketPtr = &t.bucket
	return t, nil
}

// Record buffers one entry, flushing when the batch fills up or the flush
// interval elapsed.
func (t *Trail) Record(ctx context.Context, now time.Time, e Entry) {
	if t == nil {
		return
	}

	if !t.active {
		t.active = true
		t.deadline = now.Add(t.cfg.FlushInterval)
	}

	t.entries = append(t.entries, e)
	metrics.ArchiveEntriesBuffered.Set(float64(len(t.entries)))

	if len(t.entries) >= t.cfg.MaxEntries || !now.Before(t.deadline) {
		t.flush(ctx)
	}
}

// Tick flushes on interval expiry. The claim loop calls it once per
// iteration so idle periods still drain the buffer.
func (t *Trail) Tick(ctx context.Context, now time.Time) {
	if t == nil || !t.active || now.Before(t.deadline) {
		return
	}
	t.flush(ctx)
}

// Close flushes whatever is buffered. Callers pass a context that
// survives shutdown cancellation.
func (t *Trail) Close(ctx context.Context) {
	if t == nil || len(t.entries) == 0 {
		return
	}
	t.flush(ctx)
}

func (t *Trail) flush(ctx context.Context) {
	entries := t.entries
	t.entries = nil
	t.active = false
	t.deadline = time.Time{}
	metrics.ArchiveEntriesBuffered.Set(0)

	if len(entries) == 0 {
		return
	}

	data, err := encodeParquet(entries)
	if err != nil {
		t.log.Error("audit trail encode failed, dropping batch", "entries", len(entries), "error", err)
		metrics.ArchiveFlushesTotal.WithLabelValues("error").Inc()
		return
	}

	key, err := t.objectKey(time.Now().UTC())
	if err != nil {
		t.log.Error("audit trail key build failed, dropping batch", "entries", len(entries), "error", err)
		metrics.ArchiveFlushesTotal.WithLabelValues("error").Inc()
		return
	}

	cl := int64(len(data))
	ct := parquetContentType

	var body bytes.Reader
	body.Reset(data)

	input := s3.PutObjectInput{
		Bucket:        t.bucketPtr,
		Key:           &key,
		Body:          &body,
		ContentLength: &cl,
		ContentType:   &ct,
	}
	if _, err := t.client.PutObject(ctx, &input); err != nil {
		t.log.Error("audit trail upload failed, dropping batch", "key", key, "entries", len(entries), "error", err)
		metrics.ArchiveFlushesTotal.WithLabelValues("error").Inc()
		return
	}

	t.log.Debug("audit trail flushed", "key", key, "entries", len(entries))
	metrics.ArchiveFlushesTotal.WithLabelValues("ok").Inc()
}

func encodeParquet(entries []Entry) ([]byte, error) {
	output := &bytes.Buffer{}
	w := parquet.NewGenericWriter[Entry](output, parquet.Compression(&parquet.Snappy))

	if _, err := w.Write(entries); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

// objectKey partitions by time and avoids collisions across restarts.
func (t *Trail) objectKey(now time.Time) (string, error) {
	suffix, err := randomHex(8) // 16 chars
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%04d/%02d/%02d/%02d/%d-%s.parquet",
		now.Year(), int(now.Month()), now.Day(), now.Hour(), now.UnixNano(), suffix,
	)
	if t.prefix != "" {
		key = t.prefix + "/" + key
	}
	return key, nil
}

func randomHex(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
