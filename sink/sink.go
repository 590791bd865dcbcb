package sink

import (
	"context"

	"github.com/widgetops/widget-consumer/widget"
)

// Sink persists flattened widget records.
//
// The consumer picks exactly one Sink at startup and uses it for every
// create request. Implementations must not retry internally; a failed
// Store surfaces to the caller, which owns the loss policy.
type Sink interface {
	Store(ctx context.Context, rec widget.Record) error
}
