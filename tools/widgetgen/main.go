package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var (
	bucket     = flag.String("bucket", "", "pending request bucket (required)")
	count      = flag.Int("count", 100, "number of requests to generate")
	region     = flag.String("region", "", "AWS region")
	interval   = flag.Duration("interval", 0, "pause between uploads")
	labelRatio = flag.Float64("label-ratio", 0.7, "fraction of requests that carry a label")
)

type widgetRequest struct {
	Type            string      `json:"type"`
	RequestID       string      `json:"requestId"`
	WidgetID        string      `json:"widgetId"`
	Owner           string      `json:"owner"`
	Label           string      `json:"label,omitempty"`
	Description     string      `json:"description,omitempty"`
	OtherAttributes []attribute `json:"otherAttributes,omitempty"`
}

type attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func main() {
	flag.Parse()

	if *bucket == "" {
		fmt.Fprintln(os.Stderr, "widgetgen: -bucket is required")
		os.Exit(1)
	}

	gofakeit.Seed(time.Now().UnixNano())

	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	if *region != "" {
		opts = append(opts, awsconfig.WithRegion(*region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "widgetgen: load AWS config: %v\n", err)
		os.Exit(1)
	}
	client := s3.NewFromConfig(awsCfg)

	log.Printf("Seeding %d widget requests into %s", *count, *bucket)

	contentType := "application/json"
	for i := 0; i < *count; i++ {
		req := generateRequest()
		body, err := json.Marshal(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "widgetgen: encode request: %v\n", err)
			os.Exit(1)
		}

		// Zero-padded keys so the consumer claims requests in creation order.
		key := fmt.Sprintf("%06d-%s.json", i, req.RequestID[:8])

		_, err = client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      bucket,
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: &contentType,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "widgetgen: put request %s: %v\n", key, err)
			os.Exit(1)
		}

		if (i+1)%100 == 0 {
			log.Printf("Progress: %d/%d requests uploaded", i+1, *count)
		}
		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("Done: %d requests uploaded", *count)
}

func generateRequest() widgetRequest {
	req := widgetRequest{
		Type:      "create",
		RequestID: uuid.NewString(),
		WidgetID:  uuid.NewString(),
		Owner:     gofakeit.Name(),
	}

	if rand.Float64() < *labelRatio {
		req.Label = gofakeit.BuzzWord()
	}
	if rand.Float64() < 0.5 {
		req.Description = gofakeit.Sentence(8)
	}

	for i := rand.Intn(4); i > 0; i-- {
		req.OtherAttributes = append(req.OtherAttributes, attribute{
			Name:  gofakeit.Word(),
			Value: gofakeit.Color(),
		})
	}
	return req
}
