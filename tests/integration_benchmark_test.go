package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/widgetops/widget-consumer/consumer"
	"github.com/widgetops/widget-consumer/sink"
	"github.com/widgetops/widget-consumer/source"
)

func BenchmarkIntegration_Consumer_BlobPipeline(b *testing.B) {
	const requests = 200

	type attr struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	type req struct {
		Type            string `json:"type"`
		RequestID       string `json:"requestId"`
		WidgetID        string `json:"widgetId"`
		Owner           string `json:"owner"`
		OtherAttributes []attr `json:"otherAttributes"`
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		// Rebuild state per run so iterations never share a drained bucket.
		store := newMemS3()
		for j := 0; j < requests; j++ {
			body, _ := json.Marshal(req{
				Type:            "create",
				RequestID:       fmt.Sprintf("r-%d", j),
				WidgetID:        fmt.Sprintf("w-%04d", j),
				Owner:           "Bench Owner",
				OtherAttributes: []attr{{Name: "seq", Value: fmt.Sprintf("%d", j)}},
			})
			store.seed("pending", fmt.Sprintf("%06d.json", j), string(body))
		}

		src := source.NewS3(store, "pending", "")
		snk := sink.NewS3(store, "widgets-bucket", "")

		c, err := consumer.New(src, snk)
		if err != nil {
			b.Fatal(err)
		}
		c.SetLogger(discardLogger())
		c.SetPollInterval(time.Millisecond)
		c.SetMaxIterations(requests)
		b.StartTimer()

		if err := c.Run(context.Background()); err != nil {
			b.Fatalf("Run: %v", err)
		}
	}
}
