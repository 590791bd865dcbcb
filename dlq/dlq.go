// Package dlq parks discarded widget requests in a dead-letter queue for
// later inspection. The consumer never retries from it.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// DeadLetter is the JSON body published for each discarded request.
type DeadLetter struct {
	Key      string    `json:"key"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
	Body     string    `json:"body"`
}

// Queue receives requests the consumer gave up on.
//
// Publishing is best-effort: the consumer logs a failed publish and moves
// on, and the request stays lost either way.
type Queue interface {
	Publish(ctx context.Context, key string, body []byte, reason string) error
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS publishes dead letters to an SQS queue, with the discard reason
// duplicated as a message attribute so queue consumers can filter without
// decoding the body.
type SQS struct {
	client sqsAPI

	queueURL    string
	queueURLPtr *string
}

func NewSQS(client sqsAPI, queueURL string) *SQS {
	if client == nil {
		panic("sqs client is required")
	}
	if strings.TrimSpace(queueURL) == "" {
		panic("queue url is required")
	}

	q := &SQS{
		client:   client,
		queueURL: queueURL,
	}
	q.queueURLPtr = &q.queueURL
	return q
}

func (q *SQS) Publish(ctx context.Context, key string, body []byte, reason string) error {
	letter := DeadLetter{
		Key:      key,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
		Body:     string(body),
	}

	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("encode dead letter key=%q: %w", key, err)
	}

	msg := string(data)
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    q.queueURLPtr,
		MessageBody: &msg,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: &reason,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send dead letter key=%q: %w", key, err)
	}
	return nil
}
