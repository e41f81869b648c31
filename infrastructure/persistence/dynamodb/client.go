// Package dynamodb implements the repositories on a single DynamoDB table.
//
// Item layout:
//
//	USER#<id>        PROFILE            account
//	USERNAME#<name>  USERNAME           uniqueness marker pointing at the account
//	MEMORY#<id>      METADATA           memory; GSI1 by owner, sparse GSI2 when public
//	MEMORY#<id>      LIKE#<user>        like; GSI1 by liker
//	RATELIMIT#...    WINDOW             rate limit counters (pkg/auth)
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBAPI is the part of the DynamoDB client the store uses
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

// Config names the table and its indexes
type Config struct {
	TableName string
	// OwnerIndex is keyed GSI1PK/GSI1SK: memories by owner, likes by liker
	OwnerIndex string
	// VisibilityIndex is keyed GSI2PK/GSI2SK and only holds public memories
	VisibilityIndex string
}

// withDefaults fills in the conventional index names
func (c Config) withDefaults() Config {
	if c.OwnerIndex == "" {
		c.OwnerIndex = "GSI1"
	}
	if c.VisibilityIndex == "" {
		c.VisibilityIndex = "GSI2"
	}
	return c
}

const (
	// maxTransactItems is the DynamoDB limit on actions per transaction
	maxTransactItems = 100
	// maxBatchWrite and maxBatchGet are the per-request batch limits
	maxBatchWrite = 25
	maxBatchGet   = 100
	// maxBatchAttempts bounds resubmission of unprocessed batch items
	maxBatchAttempts = 5
)

const (
	userPrefix     = "USER#"
	usernamePrefix = "USERNAME#"
	memoryPrefix   = "MEMORY#"
	ownerPrefix    = "OWNER#"
	likePrefix     = "LIKE#"
	likerPrefix    = "LIKER#"

	profileSK  = "PROFILE"
	usernameSK = "USERNAME"
	metadataSK = "METADATA"

	publicPartition = "VISIBILITY#public"

	entityUser     = "USER"
	entityUsername = "USERNAME"
	entityMemory   = "MEMORY"
	entityLike     = "LIKE"
)
