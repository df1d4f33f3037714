package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
	"statsingest/internal/retry"
)

type auditRepository struct {
	client    Client
	tableName string
	batchSize int
	policy    retry.Policy
}

// NewAuditRepository builds the append-only AuditRepository, grounded on
// gurre-ddb-pitr's DynamoDBWriter batching and backoff shape.
func NewAuditRepository(client Client, tableName string, batchSize int) repository.AuditRepository {
	if batchSize <= 0 || batchSize > 25 {
		batchSize = 25
	}
	return &auditRepository{
		client:    client,
		tableName: tableName,
		batchSize: batchSize,
		policy:    retry.DefaultPolicy(),
	}
}

func (r *auditRepository) AppendIfAbsent(ctx context.Context, entry model.AuditEntry, rowIndex int) error {
	item, err := r.marshalEntry(entry, rowIndex)
	if err != nil {
		return errs.NewDataIntegrity("marshal audit entry", map[string]interface{}{"err": err.Error()})
	}

	input := &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	}
	if rowIndex >= 0 {
		input.ConditionExpression = strPtr("attribute_not_exists(row_index_key)")
	}

	return retry.Do(ctx, r.policy, isThrottlingOrTransient, func(ctx context.Context) error {
		_, err := r.client.PutItem(ctx, input)
		if err != nil {
			if isConditionalCheckFailed(err) {
				// Another attempt already wrote this (run_id, row_index) —
				// the idempotent-replay requirement in §4.4 treats this as
				// success, not a failure to surface.
				return nil
			}
			return errs.NewKeyValueAccessError(err, r.tableName)
		}
		return nil
	})
}

func (r *auditRepository) AppendBatch(ctx context.Context, entries []model.AuditEntry) error {
	for start := 0; start < len(entries); start += r.batchSize {
		end := start + r.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := r.writeChunk(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *auditRepository) writeChunk(ctx context.Context, chunk []model.AuditEntry) error {
	requests := make([]types.WriteRequest, 0, len(chunk))
	for i, e := range chunk {
		item, err := r.marshalEntry(e, -1)
		if err != nil {
			return errs.NewDataIntegrity("marshal audit entry", map[string]interface{}{"index": i, "err": err.Error()})
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{r.tableName: requests},
	}

	return retry.Do(ctx, r.policy, isThrottlingOrTransient, func(ctx context.Context) error {
		out, err := r.client.BatchWriteItem(ctx, input)
		if err != nil {
			return errs.NewKeyValueAccessError(err, r.tableName)
		}
		if len(out.UnprocessedItems) > 0 {
			input.RequestItems = out.UnprocessedItems
			return errs.NewKeyValueAccessError(fmt.Errorf("unprocessed items remain"), r.tableName)
		}
		return nil
	})
}

func (r *auditRepository) marshalEntry(e model.AuditEntry, rowIndex int) (map[string]types.AttributeValue, error) {
	retentionUntil := e.RetentionUntil
	if retentionUntil.IsZero() {
		retentionUntil = e.Timestamp.Add(90 * 24 * time.Hour)
	}

	raw := map[string]interface{}{
		"run_id":          e.RunID,
		"timestamp":       e.Timestamp,
		"sort_key":        fmt.Sprintf("%s#%d", e.Timestamp.UTC().Format(time.RFC3339Nano), e.Sequence),
		"sequence":        e.Sequence,
		"event_type":      string(e.EventType),
		"level":           string(e.Level),
		"function_name":   e.FunctionName,
		"message":         e.Message,
		"metadata":        toMapInterface(e.Metadata),
		"correlation_id":  e.CorrelationID,
		"ttl":             retentionUntil.Unix(),
		"retention_until": retentionUntil,
	}
	if rowIndex >= 0 {
		raw["row_index_key"] = model.RowIndexKey(e.RunID, rowIndex)
	}

	return attributevalue.MarshalMap(sanitizeMap(raw))
}

func toMapInterface(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return m
}

func strPtr(s string) *string { return &s }
