package dynamo

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
	"statsingest/internal/retry"
)

type runRepository struct {
	client    Client
	tableName string
	policy    retry.Policy
}

// NewRunRepository builds the RunRepository backing C1's dedup check and
// C5's terminal status write, both expressed as DynamoDB conditional
// writes rather than in-process locking (§5).
func NewRunRepository(client Client, tableName string) repository.RunRepository {
	return &runRepository{client: client, tableName: tableName, policy: retry.DefaultPolicy()}
}

// terminalStatusNames lists the RunStatus values under which an existing
// row does not block a new start: Start may overwrite a finished run, but
// not a RUNNING one.
var terminalStatusNames = []string{
	string(model.RunStatusSucceeded),
	string(model.RunStatusFailed),
	string(model.RunStatusAborted),
	string(model.RunStatusTimedOut),
}

// runItem is the wire shape of a run_metadata row. model.Run stays free of
// storage tags; this type is the only thing that knows DynamoDB's attribute
// names, and that timestamps travel as RFC3339 strings per sanitize.go.
type runItem struct {
	RunID        string `dynamodbav:"run_id"`
	SourceRef    string `dynamodbav:"source_ref"`
	StartedAt    string `dynamodbav:"started_at"`
	Status       string `dynamodbav:"status"`
	TotalRows    int    `dynamodbav:"total_rows"`
	SuccessCount int    `dynamodbav:"success_count"`
	ErrorCount   int    `dynamodbav:"error_count"`
	EndedAt      string `dynamodbav:"ended_at,omitempty"`
	OutputRef    string `dynamodbav:"output_ref,omitempty"`
}

func (i runItem) toRun() model.Run {
	run := model.Run{
		RunID:        i.RunID,
		SourceRef:    i.SourceRef,
		Status:       model.RunStatus(i.Status),
		TotalRows:    i.TotalRows,
		SuccessCount: i.SuccessCount,
		ErrorCount:   i.ErrorCount,
		OutputRef:    i.OutputRef,
	}
	if t, err := time.Parse(time.RFC3339, i.StartedAt); err == nil {
		run.StartedAt = t
	}
	if i.EndedAt != "" {
		if t, err := time.Parse(time.RFC3339, i.EndedAt); err == nil {
			run.EndedAt = &t
		}
	}
	return run
}

func (r *runRepository) Start(ctx context.Context, run model.Run) (bool, error) {
	item, err := attributevalue.MarshalMap(runItem{
		RunID:        run.RunID,
		SourceRef:    run.SourceRef,
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		Status:       string(model.RunStatusRunning),
		TotalRows:    run.TotalRows,
		SuccessCount: 0,
		ErrorCount:   0,
	})
	if err != nil {
		return false, errs.NewDataIntegrity("marshal run_metadata", nil)
	}

	values := map[string]types.AttributeValue{}
	for i, s := range terminalStatusNames {
		av, _ := attributevalue.Marshal(s)
		values[":t"+strconv.Itoa(i)] = av
	}

	expr := "attribute_not_exists(run_id)"
	for i := range terminalStatusNames {
		expr += " OR #status = :t" + strconv.Itoa(i)
	}

	input := &dynamodb.PutItemInput{
		TableName:                 &r.tableName,
		Item:                      item,
		ConditionExpression:       strPtr(expr),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	}

	var started bool
	err = retry.Do(ctx, r.policy, isThrottlingOrTransient, func(ctx context.Context) error {
		_, err := r.client.PutItem(ctx, input)
		if err != nil {
			if isConditionalCheckFailed(err) {
				started = false
				return nil
			}
			return errs.NewKeyValueAccessError(err, r.tableName)
		}
		started = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return started, nil
}

func (r *runRepository) Get(ctx context.Context, runID string) (*model.Run, error) {
	key, err := attributevalue.MarshalMap(map[string]interface{}{"run_id": runID})
	if err != nil {
		return nil, errs.NewDataIntegrity("marshal run key", nil)
	}

	var out *dynamodb.GetItemOutput
	err = retry.Do(ctx, r.policy, isThrottlingOrTransient, func(ctx context.Context) error {
		var getErr error
		out, getErr = r.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &r.tableName, Key: key})
		if getErr != nil {
			return errs.NewKeyValueAccessError(getErr, r.tableName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	var item runItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, errs.NewDataIntegrity("unmarshal run_metadata", nil)
	}
	run := item.toRun()
	return &run, nil
}

func (r *runRepository) UpdateProgress(ctx context.Context, runID string, totalRows, successCount, errorCount int) error {
	key, err := attributevalue.MarshalMap(map[string]interface{}{"run_id": runID})
	if err != nil {
		return errs.NewDataIntegrity("marshal run key", nil)
	}

	totalAV, _ := attributevalue.Marshal(totalRows)
	successAV, _ := attributevalue.Marshal(successCount)
	errorAV, _ := attributevalue.Marshal(errorCount)

	input := &dynamodb.UpdateItemInput{
		TableName:        &r.tableName,
		Key:              key,
		UpdateExpression: strPtr("SET total_rows = :tr, success_count = :sc, error_count = :ec"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tr": totalAV,
			":sc": successAV,
			":ec": errorAV,
		},
	}

	return retry.Do(ctx, r.policy, isThrottlingOrTransient, func(ctx context.Context) error {
		_, err := r.client.UpdateItem(ctx, input)
		if err != nil {
			return errs.NewKeyValueAccessError(err, r.tableName)
		}
		return nil
	})
}

// Complete performs the forward-only terminal transition: the
// ConditionExpression requires the current status to still be RUNNING, so
// a concurrent completion attempt (or a stale retry) cannot revert a
// terminal run, matching the "never backwards" invariant of §4.6.
func (r *runRepository) Complete(ctx context.Context, runID string, status model.RunStatus, successCount, errorCount int, outputRef string) error {
	key, err := attributevalue.MarshalMap(map[string]interface{}{"run_id": runID})
	if err != nil {
		return errs.NewDataIntegrity("marshal run key", nil)
	}

	statusAV, _ := attributevalue.Marshal(string(status))
	runningAV, _ := attributevalue.Marshal(string(model.RunStatusRunning))
	successAV, _ := attributevalue.Marshal(successCount)
	errorAV, _ := attributevalue.Marshal(errorCount)
	outputAV, _ := attributevalue.Marshal(outputRef)
	endedAV, _ := attributevalue.Marshal(time.Now().UTC().Format(time.RFC3339))

	input := &dynamodb.UpdateItemInput{
		TableName: &r.tableName,
		Key:       key,
		UpdateExpression: strPtr(
			"SET #status = :status, success_count = :sc, error_count = :ec, output_ref = :out, ended_at = :ended",
		),
		ConditionExpression:      strPtr("#status = :running"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  statusAV,
			":running": runningAV,
			":sc":      successAV,
			":ec":      errorAV,
			":out":     outputAV,
			":ended":   endedAV,
		},
	}

	return retry.Do(ctx, r.policy, isThrottlingOrTransient, func(ctx context.Context) error {
		_, err := r.client.UpdateItem(ctx, input)
		if err != nil {
			if isConditionalCheckFailed(err) {
				// Run already reached a terminal state; status is
				// monotonically terminal, so this is not an error.
				return nil
			}
			return errs.NewKeyValueAccessError(err, r.tableName)
		}
		return nil
	})
}
