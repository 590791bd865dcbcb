package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/widgetops/widget-consumer/widget"
)

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// SinkDynamo stores each widget as one table item with every attribute a
// string. The table's hash key must be one of the record keys
// (widget_id in the default schema).
type SinkDynamo struct {
	client dynamoAPI

	table    string
	tablePtr *string
}

func NewDynamo(client dynamoAPI, table string) *SinkDynamo {
	if client == nil {
		panic("dynamodb client is required")
	}
	if strings.TrimSpace(table) == "" {
		panic("table is required")
	}

	s := &SinkDynamo{
		client: client,
		table:  table,
	}
	s.tablePtr = &s.table
	return s
}

func (s *SinkDynamo) Store(ctx context.Context, rec widget.Record) error {
	item := make(map[string]ddbtypes.AttributeValue, len(rec))
	for k, v := range rec {
		item[k] = &ddbtypes.AttributeValueMemberS{Value: v}
	}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: s.tablePtr,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put widget item widget_id=%q: %w", rec["widget_id"], err)
	}
	return nil
}
