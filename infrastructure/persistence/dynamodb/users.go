package dynamodb

import (
	"context"
	"fmt"
	"time"

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

// UserRepository stores accounts as USER# items guarded by USERNAME# markers
type UserRepository struct {
	*table
}

var _ ports.UserRepository = (*UserRepository)(nil)

// userItem represents the DynamoDB item structure for an account
type userItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	UserID       string `dynamodbav:"UserID"`
	Username     string `dynamodbav:"Username"`
	PasswordHash string `dynamodbav:"PasswordHash"`
	Email        string `dynamodbav:"Email"`
	RegisteredAt string `dynamodbav:"RegisteredAt"`
	LastLogin    string `dynamodbav:"LastLogin,omitempty"`
}

// usernameItem reserves a username
type usernameItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	UserID     string `dynamodbav:"UserID"`
}

func userKey(id string) map[string]types.AttributeValue {
	return key(userPrefix+id, profileSK)
}

func usernameKey(username string) map[string]types.AttributeValue {
	return key(usernamePrefix+username, usernameSK)
}

// Create writes the account and its username marker in one transaction
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	item := userItem{
		PK:           userPrefix + user.ID(),
		SK:           profileSK,
		EntityType:   entityUser,
		UserID:       user.ID(),
		Username:     user.Username(),
		PasswordHash: user.PasswordHash(),
		Email:        user.Email(),
		RegisteredAt: utils.FormatTimestamp(user.RegisteredAt()),
	}
	if at := user.LastLogin(); at != nil {
		item.LastLogin = utils.FormatTimestamp(*at)
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	marker, err := attributevalue.MarshalMap(usernameItem{
		PK:         usernamePrefix + user.Username(),
		SK:         usernameSK,
		EntityType: entityUsername,
		UserID:     user.ID(),
	})
	if err != nil {
		return fmt.Errorf("marshal username: %w", err)
	}

	notExists := aws.String("attribute_not_exists(PK)")
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: r.name(), Item: av, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: r.name(), Item: marker, ConditionExpression: notExists}},
		},
	})
	if _, ok := failedCondition(err); ok {
		return fmt.Errorf("create user: %w: %w", ports.ErrAlreadyExists, err)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      r.name(),
		Key:            userKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("get user: %w", ports.ErrNotFound)
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return item.toEntity()
}

// GetByUsername follows the username marker to the account
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      r.name(),
		Key:            usernameKey(username),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("get user by username: %w", ports.ErrNotFound)
	}
	var marker usernameItem
	if err := attributevalue.UnmarshalMap(out.Item, &marker); err != nil {
		return nil, fmt.Errorf("unmarshal username: %w", err)
	}
	return r.GetByID(ctx, marker.UserID)
}

// UpdateLastLogin stamps a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("LastLogin"), expression.Value(utils.FormatTimestamp(at)))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("build last login update: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.name(),
		Key:                       userKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("update last login: %w", ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// GetUsernames resolves ids with BatchGetItem, 100 keys per request
func (r *UserRepository) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	proj, err := expression.NewBuilder().
		WithProjection(expression.NamesList(expression.Name("UserID"), expression.Name("Username"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build username projection: %w", err)
	}

	for _, batch := range lo.Chunk(lo.Uniq(lo.Compact(ids)), maxBatchGet) {
		keys := lo.Map(batch, func(id string, _ int) map[string]types.AttributeValue { return userKey(id) })
		pending := map[string]types.KeysAndAttributes{
			r.cfg.TableName: {
				Keys:                     keys,
				ProjectionExpression:     proj.Projection(),
				ExpressionAttributeNames: proj.Names(),
			},
		}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchAttempts {
				return nil, fmt.Errorf("get usernames: keys left unprocessed")
			}
			res, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("get usernames: %w", err)
			}
			for _, raw := range res.Responses[r.cfg.TableName] {
				var item userItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, fmt.Errorf("unmarshal username: %w", err)
				}
				out[item.UserID] = item.Username
			}
			pending = res.UnprocessedKeys
		}
	}
	return out, nil
}

func (i userItem) toEntity() (*entities.User, error) {
	registeredAt, err := utils.ParseTimestamp(i.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("user %s registered at: %w", i.UserID, err)
	}
	var lastLogin *time.Time
	if i.LastLogin != "" {
		at, err := utils.ParseTimestamp(i.LastLogin)
		if err != nil {
			return nil, fmt.Errorf("user %s last login: %w", i.UserID, err)
		}
		lastLogin = &at
	}
	return entities.ReconstructUser(i.UserID, i.Username, i.PasswordHash, i.Email, registeredAt, lastLogin), nil
}
