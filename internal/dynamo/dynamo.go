// Package dynamo lists log rows from the DynamoDB audit table.
//
// The table is partitioned by receptionNumber. Snapshot attributes are kept
// either as native maps or as JSON strings depending on the client version
// that wrote them; native maps are re-encoded as wire-tagged JSON so the
// normalizer sees one of the two shapes it already accepts.
package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	dynamocfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/ordertrail/internal/changelog"
	"github.com/roach88/ordertrail/internal/format"
	"github.com/roach88/ordertrail/internal/normalize"
)

// NewClient loads the default AWS configuration for region and returns a
// DynamoDB client. An empty endpoint uses the regional default.
func NewClient(ctx context.Context, region, endpoint string, logger *slog.Logger) (*dynamodb.Client, error) {
	opts := []func(*dynamocfg.LoadOptions) error{dynamocfg.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, dynamocfg.WithBaseEndpoint(endpoint))
	}
	cfg, err := dynamocfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.Info("DynamoDB client initialized", "region", region, "endpoint", endpoint)
	return dynamodb.NewFromConfig(cfg), nil
}

// RowLister lists log rows of one reception from a DynamoDB table.
type RowLister struct {
	client dynamodb.QueryAPIClient
	table  string
	index  string
}

// NewRowLister creates a lister over table. index names a secondary index
// keyed by receptionNumber; leave it empty when the table itself is.
func NewRowLister(client dynamodb.QueryAPIClient, table, index string) *RowLister {
	return &RowLister{client: client, table: table, index: index}
}

// ListRows implements changelog.RowLister. It follows every result page and
// returns rows ordered by timestamp, then log id. An item that fails to
// decode comes back as a changelog.UnreadableRow; only query failures are
// returned as errors.
func (l *RowLister) ListRows(ctx context.Context, receptionNumber string) ([]changelog.LogRow, error) {
	keyExpr := expression.Key("receptionNumber").Equal(expression.Value(receptionNumber))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(l.table),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		KeyConditionExpression:    expr.KeyCondition(),
	}
	if l.index != "" {
		input.IndexName = aws.String(l.index)
	}

	rows := []changelog.LogRow{}
	pages := dynamodb.NewQueryPaginator(l.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query reception %q: %w", receptionNumber, err)
		}
		for _, it := range page.Items {
			row, err := DecodeRow(it)
			if err != nil {
				row = changelog.UnreadableRow(stringAttr(it, "logId"), receptionNumber, err)
			}
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].LogID < rows[j].LogID
	})
	return rows, nil
}

type rowItem struct {
	LogID           string                 `json:"logId"`
	ReceptionNumber string                 `json:"receptionNumber"`
	Timestamp       timestampAttr          `json:"timestamp"`
	Action          string                 `json:"action"`
	BeforeData      blobAttr               `json:"beforeData"`
	AfterData       blobAttr               `json:"afterData"`
	CanceledOrder   *format.CanceledOrder  `json:"canceledOrder"`
	CanceledOrders  []format.CanceledOrder `json:"canceledOrders"`
}

// DecodeRow converts one table item into a log row.
func DecodeRow(item map[string]types.AttributeValue) (changelog.LogRow, error) {
	var it rowItem
	err := attributevalue.UnmarshalMapWithOptions(item, &it, func(o *attributevalue.DecoderOptions) {
		o.TagKey = "json"
	})
	if err != nil {
		return changelog.LogRow{}, fmt.Errorf("decode log row item: %w", err)
	}
	return changelog.LogRow{
		LogID:           it.LogID,
		ReceptionNumber: it.ReceptionNumber,
		Timestamp:       it.Timestamp.t,
		Action:          changelog.Action(it.Action),
		BeforeData:      it.BeforeData.raw,
		AfterData:       it.AfterData.raw,
		CanceledOrder:   it.CanceledOrder,
		CanceledOrders:  it.CanceledOrders,
	}, nil
}

// stringAttr returns the string attribute key of item, or "".
func stringAttr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// blobAttr holds a snapshot attribute as raw JSON.
type blobAttr struct {
	raw json.RawMessage
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
// A native map becomes wire-tagged JSON, a string is taken as JSON text.
func (b *blobAttr) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberNULL:
		b.raw = nil
	case *types.AttributeValueMemberM:
		raw, err := normalize.EncodeWire(v.Value)
		if err != nil {
			return err
		}
		b.raw = raw
	case *types.AttributeValueMemberS:
		if json.Valid([]byte(v.Value)) {
			b.raw = json.RawMessage(v.Value)
			return nil
		}
		quoted, err := json.Marshal(v.Value)
		if err != nil {
			return err
		}
		b.raw = quoted
	default:
		return fmt.Errorf("snapshot attribute: unsupported %T", av)
	}
	return nil
}

// timestampAttr accepts an epoch-milliseconds number or an RFC 3339 /
// epoch-milliseconds string.
type timestampAttr struct {
	t time.Time
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (t *timestampAttr) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var s string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		s = v.Value
	case *types.AttributeValueMemberS:
		s = v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	default:
		return fmt.Errorf("timestamp attribute: unsupported %T", av)
	}
	ts, err := changelog.ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.t = ts
	return nil
}
