package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// isThrottlingOrTransient reports whether err is a DynamoDB capacity or
// transient failure worth retrying, grounded on gurre-ddb-pitr's
// isThrottlingError helper.
func isThrottlingOrTransient(err error) bool {
	var throughputErr *types.ProvisionedThroughputExceededException
	var requestLimitErr *types.RequestLimitExceeded
	var internalErr *types.InternalServerError
	return errors.As(err, &throughputErr) ||
		errors.As(err, &requestLimitErr) ||
		errors.As(err, &internalErr)
}

// isConditionalCheckFailed reports whether err is the
// ConditionalCheckFailedException raised when a conditional PutItem loses
// a race — used by both the audit dedup write and the run dispatcher's
// start-dedup write.
func isConditionalCheckFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}
