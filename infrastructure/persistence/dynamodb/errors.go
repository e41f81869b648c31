package dynamodb

import (
	"context"
	"errors"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const (
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonTransactionConflict    = "TransactionConflict"
	reasonThrottling             = "ThrottlingError"
)

// Throttled requests were refused before anything was written
var throttlingCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
}

var serverFaultCodes = map[string]bool{
	"InternalServerError": true,
	"ServiceUnavailable":  true,
	"InternalFailure":     true,
}

// cancellationReasons returns the per-action codes of a cancelled
// transaction, in the order the actions were submitted
func cancellationReasons(err error) ([]string, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	codes := make([]string, len(tce.CancellationReasons))
	for i, reason := range tce.CancellationReasons {
		codes[i] = aws.ToString(reason.Code)
	}
	return codes, true
}

// failedCondition reports the index of the first transaction action whose
// condition failed
func failedCondition(err error) (int, bool) {
	codes, ok := cancellationReasons(err)
	if !ok {
		return -1, false
	}
	for i, code := range codes {
		if code == reasonConditionalCheckFailed {
			return i, true
		}
	}
	return -1, false
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// IsRejected reports errors where DynamoDB refused the request without
// applying it. Retrying those is safe even for non-idempotent writes.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && throttlingCodes[apiErr.ErrorCode()] {
		return true
	}
	if codes, ok := cancellationReasons(err); ok {
		for _, code := range codes {
			if code == reasonTransactionConflict || code == reasonThrottling {
				return true
			}
		}
	}
	return false
}

// IsTransient reports errors worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRejected(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && serverFaultCodes[apiErr.ErrorCode()] {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
