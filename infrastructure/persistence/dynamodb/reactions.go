package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/samber/lo"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/pkg/utils"
)

// ReactionRepository stores likes beside their memory under MEMORY#<id>.
// The (memory, user) primary key is what makes concurrent likes safe.
type ReactionRepository struct {
	*table
}

var _ ports.ReactionRepository = (*ReactionRepository)(nil)

// likeItem represents the DynamoDB item structure for a like
type likeItem struct {
	PK         string `dynamodbav:"PK"`     // MEMORY#<memory>
	SK         string `dynamodbav:"SK"`     // LIKE#<user>
	GSI1PK     string `dynamodbav:"GSI1PK"` // LIKER#<user>
	GSI1SK     string `dynamodbav:"GSI1SK"` // MEMORY#<memory>
	EntityType string `dynamodbav:"EntityType"`
	MemoryID   string `dynamodbav:"MemoryID"`
	UserID     string `dynamodbav:"UserID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

func likeKey(memoryID, userID string) map[string]types.AttributeValue {
	return key(memoryPrefix+memoryID, likePrefix+userID)
}

// Add checks the memory exists and inserts the like in one transaction
func (r *ReactionRepository) Add(ctx context.Context, reaction entities.Reaction) error {
	av, err := attributevalue.MarshalMap(likeItem{
		PK:         memoryPrefix + reaction.MemoryID,
		SK:         likePrefix + reaction.UserID,
		GSI1PK:     likerPrefix + reaction.UserID,
		GSI1SK:     memoryPrefix + reaction.MemoryID,
		EntityType: entityLike,
		MemoryID:   reaction.MemoryID,
		UserID:     reaction.UserID,
		CreatedAt:  utils.FormatTimestamp(reaction.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("marshal like: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:           r.name(),
				Key:                 memoryKey(reaction.MemoryID),
				ConditionExpression: aws.String("attribute_exists(PK)"),
			}},
			{Put: &types.Put{
				TableName:           r.name(),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
		},
	})
	if i, ok := failedCondition(err); ok {
		if i == 0 {
			return fmt.Errorf("add reaction: %w: %w", ports.ErrReferenceMissing, err)
		}
		return fmt.Errorf("add reaction: %w: %w", ports.ErrAlreadyExists, err)
	}
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

// Remove deletes a like and reports whether one existed
func (r *ReactionRepository) Remove(ctx context.Context, memoryID, userID string) (bool, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    r.name(),
		Key:          likeKey(memoryID, userID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	return len(out.Attributes) > 0, nil
}

// Count returns the number of likes on a memory
func (r *ReactionRepository) Count(ctx context.Context, memoryID string) (int, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(memoryPrefix + memoryID)).
		And(expression.Key("SK").BeginsWith(likePrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, fmt.Errorf("count reactions: build query: %w", err)
	}
	n, err := r.countAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.name(),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count reactions: %w", err)
	}
	return n, nil
}

// Summaries counts likes per memory and reads the requester's likes once
// from the liker index
func (r *ReactionRepository) Summaries(ctx context.Context, memoryIDs []string, requesterID string) (map[string]ports.ReactionSummary, error) {
	liked, err := r.likedBy(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("summarize reactions: %w", err)
	}

	out := make(map[string]ports.ReactionSummary, len(memoryIDs))
	for _, id := range lo.Uniq(memoryIDs) {
		n, err := r.Count(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		out[id] = ports.ReactionSummary{Count: n, LikedByRequester: liked[id]}
	}
	return out, nil
}

func (r *ReactionRepository) likedBy(ctx context.Context, userID string) (map[string]bool, error) {
	if userID == "" {
		return nil, nil
	}
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(likerPrefix + userID))).
		WithProjection(expression.NamesList(expression.Name("MemoryID"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build liker query: %w", err)
	}
	items, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.name(),
		IndexName:                 aws.String(r.cfg.OwnerIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, err
	}
	liked := make(map[string]bool, len(items))
	for _, raw := range items {
		var item likeItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal like: %w", err)
		}
		liked[item.MemoryID] = true
	}
	return liked, nil
}
