// Package consumer drives the widget request claim loop: poll the pending
// collection, claim the next document, interpret it, and hand the result
// to the configured sink. Failures are logged and absorbed; the loop never
// crashes on a bad request or a backend error.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/widgetops/widget-consumer/archive"
	"github.com/widgetops/widget-consumer/dlq"
	"github.com/widgetops/widget-consumer/metrics"
	"github.com/widgetops/widget-consumer/sink"
	"github.com/widgetops/widget-consumer/source"
	"github.com/widgetops/widget-consumer/widget"
)

const DefaultPollInterval = 100 * time.Millisecond

// stopDrainTimeout bounds the audit trail flush on shutdown.
const stopDrainTimeout = 10 * time.Second

// Dead letter reasons.
const (
	reasonMalformed    = "malformed"
	reasonMissingField = "missing_field"
)

type Consumer struct {
	src source.Source
	snk sink.Sink

	log           *slog.Logger
	pollInterval  time.Duration
	maxIterations int

	// optional collaborators
	trail       *archive.Trail
	deadLetters dlq.Queue
}

func New(src source.Source, snk sink.Sink) (*Consumer, error) {
	if src == nil {
		return nil, fmt.Errorf("source is nil")
	}
	if snk == nil {
		return nil, fmt.Errorf("sink is nil")
	}

	return &Consumer{
		src:          src,
		snk:          snk,
		log:          slog.Default(),
		pollInterval: DefaultPollInterval,
	}, nil
}

func (c *Consumer) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	c.log = l
}

func (c *Consumer) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// SetMaxIterations caps the number of loop iterations. 0 runs until the
// context is canceled.
func (c *Consumer) SetMaxIterations(n int) {
	if n < 0 {
		n = 0
	}
	c.maxIterations = n
}

func (c *Consumer) EnableArchiveTrail(t *archive.Trail) {
	c.trail = t
}

func (c *Consumer) EnableDeadLetterQueue(q dlq.Queue) {
	c.deadLetters = q
}

// Run drives the claim loop until ctx is canceled or the iteration limit
// is reached. Cancellation is honored between iterations only: a claimed
// request is always carried to completion. Every branch, including idle
// polls and failed fetches, counts as one iteration.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("claim loop started",
		"poll_interval", c.pollInterval,
		"max_iterations", c.maxIterations,
	)

	iterations := 0
	for {
		// Cancellation checkpoint before each fetch.
		if ctx.Err() != nil {
			c.stop(ctx, "context canceled")
			return nil
		}

		env, err := c.src.FetchNext(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				// Fetch lost to shutdown; the checkpoint handles it.
				continue
			}
			c.log.Error("fetch pending request failed", "error", err)
			metrics.FetchErrorsTotal.Inc()
			c.sleep(ctx)
		case env == nil:
			metrics.IdlePollsTotal.Inc()
			c.sleep(ctx)
		default:
			// Claimed requests finish even if shutdown starts meanwhile.
			c.process(context.WithoutCancel(ctx), env)
		}

		c.trail.Tick(ctx, time.Now())

		iterations++
		if c.maxIterations > 0 && iterations >= c.maxIterations {
			c.stop(ctx, "reached max iterations")
			return nil
		}
	}
}

func (c *Consumer) stop(ctx context.Context, cause string) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopDrainTimeout)
	defer cancel()
	c.trail.Close(drainCtx)

	c.log.Info("claim loop stopped", "cause", cause)
}

func (c *Consumer) sleep(ctx context.Context) {
	select {
	case <-time.After(c.pollInterval):
	case <-ctx.Done():
	}
}

// process handles one claimed envelope: parse, delete, route.
func (c *Consumer) process(ctx context.Context, env *source.Envelope) {
	now := time.Now()

	req, err := widget.ParseRequest(env.Body)
	if err != nil {
		// Malformed documents are deleted immediately to unblock the
		// pipeline; the raw body goes to the dead letter queue.
		c.log.Error("invalid request JSON, deleting to unblock", "key", env.Key, "error", err)
		metrics.ParseErrorsTotal.Inc()
		c.remove(ctx, env.Key)
		c.deadLetter(ctx, env, reasonMalformed)
		c.record(ctx, now, env.Key, widget.Request{}, archive.OutcomeMalformed, err.Error())
		metrics.RequestsTotal.WithLabelValues(widget.KindUnknown.String(), archive.OutcomeMalformed).Inc()
		return
	}

	// Delete before processing: at-most-once delivery. A delete failure is
	// logged and processing continues; the request may be seen again.
	c.remove(ctx, env.Key)

	kind := req.Kind()
	outcome, detail := c.dispatch(ctx, env, req, kind)

	metrics.RequestsTotal.WithLabelValues(kind.String(), outcome).Inc()
	c.record(ctx, now, env.Key, req, outcome, detail)
}

func (c *Consumer) dispatch(ctx context.Context, env *source.Envelope, req widget.Request, kind widget.Kind) (outcome, detail string) {
	switch kind {
	case widget.KindCreate:
		return c.create(ctx, env, req)
	case widget.KindUpdate, widget.KindDelete:
		c.log.Warn("request type not implemented, skipping",
			"key", env.Key, "request_id", req.RequestID, "type", req.Type)
		return archive.OutcomeSkipped, ""
	default:
		c.log.Warn("unknown request type, skipping",
			"key", env.Key, "request_id", req.RequestID, "type", req.Type)
		return archive.OutcomeUnknown, ""
	}
}

func (c *Consumer) create(ctx context.Context, env *source.Envelope, req widget.Request) (outcome, detail string) {
	rec, err := req.Flatten()
	if err != nil {
		// The document is already deleted; the request is lost.
		c.log.Error("create request dropped",
			"key", env.Key, "request_id", req.RequestID, "error", err)
		c.deadLetter(ctx, env, reasonMissingField)
		return archive.OutcomeInvalid, err.Error()
	}

	start := time.Now()
	err = c.snk.Store(ctx, rec)
	metrics.StoreDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// No retry: the widget is lost and the loop moves on.
		c.log.Error("store widget failed, request lost",
			"key", env.Key, "request_id", req.RequestID, "error", err)
		metrics.StoreErrorsTotal.Inc()
		return archive.OutcomeStoreFailed, err.Error()
	}

	c.log.Info("processed request",
		"request_id", req.RequestID, "type", req.Type, "widget_id", req.WidgetID)
	return archive.OutcomeStored, ""
}

func (c *Consumer) remove(ctx context.Context, key string) {
	if err := c.src.Remove(ctx, key); err != nil {
		c.log.Error("delete pending request failed, continuing", "key", key, "error", err)
		metrics.DeleteErrorsTotal.Inc()
	}
}

func (c *Consumer) deadLetter(ctx context.Context, env *source.Envelope, reason string) {
	if c.deadLetters == nil {
		return
	}

	if err := c.deadLetters.Publish(ctx, env.Key, env.Body, reason); err != nil {
		c.log.Error("dead letter publish failed", "key", env.Key, "reason", reason, "error", err)
		metrics.DeadLettersTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.DeadLettersTotal.WithLabelValues("ok").Inc()
}

func (c *Consumer) record(ctx context.Context, now time.Time, key string, req widget.Request, outcome, detail string) {
	c.trail.Record(ctx, now, archive.Entry{
		ClaimedAt:   now.UnixMilli(),
		Key:         key,
		RequestID:   req.RequestID,
		RequestType: req.Type,
		Outcome:     outcome,
		Detail:      detail,
	})
}
