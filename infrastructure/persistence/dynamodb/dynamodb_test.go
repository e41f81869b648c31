package dynamodb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/valueobjects"
	pkgerrors "citymemory/pkg/errors"
)

type mockDynamoDB struct {
	mock.Mock
}

func (m *mockDynamoDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.BatchGetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.BatchWriteItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DescribeTableOutput)
	return out, args.Error(1)
}

func newTestStore(client *mockDynamoDB) *Store {
	return NewStore(client, Config{TableName: "memories"}, zap.NewNop())
}

// hasValue reports whether a query binds the given string value
func hasValue(in *dynamodb.QueryInput, want string) bool {
	for _, v := range in.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == want {
			return true
		}
	}
	return false
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(c)}
	}
	return &types.TransactionCanceledException{Message: aws.String("cancelled"), CancellationReasons: reasons}
}

func sampleMemory(t *testing.T, owner string, privacy valueobjects.Privacy) *entities.Memory {
	t.Helper()
	coords, err := valueobjects.NewCoordinates(121.47, 31.23, 6)
	require.NoError(t, err)
	m, err := entities.NewMemory(owner, entities.Content{
		Title:   "Bund at dusk",
		Theme:   valueobjects.ThemeCity,
		Emotion: valueobjects.EmotionHappy,
		Date:    valueobjects.ReconstructCalendarDate("2024-05-01"),
		Privacy: privacy,
		Images:  valueobjects.ReconstructImages([]string{"data:image/png;base64,AAAA"}),
	}, coords, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return m
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Should write the account and username marker together", func(t *testing.T) {
		// Arrange
		client := new(mockDynamoDB)
		client.On("TransactWriteItems", ctx, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 2 &&
				in.TransactItems[0].Put != nil && in.TransactItems[1].Put != nil &&
				in.TransactItems[1].Put.Item["PK"].(*types.AttributeValueMemberS).Value == "USERNAME#alice"
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)
		user, err := entities.NewUser("alice", "hash", "a@example.com", time.Now())
		require.NoError(t, err)

		// Act
		err = newTestStore(client).Users().Create(ctx, user)

		// Assert
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Should report a taken username", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("TransactWriteItems", ctx, mock.Anything).Return(nil, cancelled("None", reasonConditionalCheckFailed))
		user, _ := entities.NewUser("alice", "hash", "", time.Now())

		err := newTestStore(client).Users().Create(ctx, user)

		assert.ErrorIs(t, err, ports.ErrAlreadyExists)
	})

	t.Run("Should resolve a username through its marker", func(t *testing.T) {
		client := new(mockDynamoDB)
		marker, _ := attributevalue.MarshalMap(usernameItem{PK: "USERNAME#alice", SK: usernameSK, UserID: "u-1"})
		account, _ := attributevalue.MarshalMap(userItem{
			PK: "USER#u-1", SK: profileSK, UserID: "u-1", Username: "alice",
			PasswordHash: "hash", RegisteredAt: "2024-05-01T10:00:00.000Z",
		})
		client.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return in.Key["PK"].(*types.AttributeValueMemberS).Value == "USERNAME#alice"
		})).Return(&dynamodb.GetItemOutput{Item: marker}, nil)
		client.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return in.Key["PK"].(*types.AttributeValueMemberS).Value == "USER#u-1"
		})).Return(&dynamodb.GetItemOutput{Item: account}, nil)

		user, err := newTestStore(client).Users().GetByUsername(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, "u-1", user.ID())
		assert.Nil(t, user.LastLogin())
	})

	t.Run("Should report an unknown user", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		_, err := newTestStore(client).Users().GetByID(ctx, "missing")

		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Should map a failed last login condition to not found", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("UpdateItem", ctx, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		err := newTestStore(client).Users().UpdateLastLogin(ctx, "missing", time.Now())

		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Should batch username lookups and resubmit unprocessed keys", func(t *testing.T) {
		client := new(mockDynamoDB)
		alice, _ := attributevalue.MarshalMap(userItem{UserID: "u-1", Username: "alice"})
		bob, _ := attributevalue.MarshalMap(userItem{UserID: "u-2", Username: "bob"})
		client.On("BatchGetItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
			return len(in.RequestItems["memories"].Keys) == 2
		})).Return(&dynamodb.BatchGetItemOutput{
			Responses: map[string][]map[string]types.AttributeValue{"memories": {alice}},
			UnprocessedKeys: map[string]types.KeysAndAttributes{
				"memories": {Keys: []map[string]types.AttributeValue{userKey("u-2")}},
			},
		}, nil).Once()
		client.On("BatchGetItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
			return len(in.RequestItems["memories"].Keys) == 1
		})).Return(&dynamodb.BatchGetItemOutput{
			Responses: map[string][]map[string]types.AttributeValue{"memories": {bob}},
		}, nil).Once()

		names, err := newTestStore(client).Users().GetUsernames(ctx, []string{"u-1", "u-2", "u-1", ""})

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"u-1": "alice", "u-2": "bob"}, names)
		client.AssertExpectations(t)
	})
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Should round trip a memory through its item", func(t *testing.T) {
		// Arrange
		client := new(mockDynamoDB)
		m := sampleMemory(t, "u-1", valueobjects.PrivacyPublic)
		var stored map[string]types.AttributeValue
		client.On("TransactWriteItems", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				in := args.Get(1).(*dynamodb.TransactWriteItemsInput)
				stored = in.TransactItems[1].Put.Item
			}).
			Return(&dynamodb.TransactWriteItemsOutput{}, nil)
		store := newTestStore(client)
		require.NoError(t, store.Memories().Create(ctx, m))
		client.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{Item: stored}, nil)

		// Act
		got, err := store.Memories().GetByID(ctx, m.ID())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, m.ID(), got.ID())
		assert.Equal(t, m.Content(), got.Content())
		assert.True(t, m.Coordinates().Equals(got.Coordinates()))
		assert.True(t, m.CreatedAt().Equal(got.CreatedAt()))
		assert.Equal(t, publicPartition, stored["GSI2PK"].(*types.AttributeValueMemberS).Value)
	})

	t.Run("Should keep private memories out of the visibility index", func(t *testing.T) {
		item := toMemoryItem(sampleMemory(t, "u-1", valueobjects.PrivacyPrivate))
		assert.Empty(t, item.GSI2PK)
		assert.Equal(t, "OWNER#u-1", item.GSI1PK)
		assert.True(t, strings.HasPrefix(item.GSI1SK, "2024-05-01#"))
	})

	t.Run("Should refuse a memory for an unknown owner", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("TransactWriteItems", ctx, mock.Anything).Return(nil, cancelled(reasonConditionalCheckFailed, "None"))

		err := newTestStore(client).Memories().Create(ctx, sampleMemory(t, "ghost", valueobjects.PrivacyPublic))

		assert.ErrorIs(t, err, ports.ErrReferenceMissing)
	})

	t.Run("Should drop the visibility keys when a memory turns private", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("UpdateItem", ctx, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			return strings.Contains(aws.ToString(in.UpdateExpression), "REMOVE") &&
				aws.ToString(in.ConditionExpression) != ""
		})).Return(&dynamodb.UpdateItemOutput{}, nil)

		err := newTestStore(client).Memories().Update(ctx, sampleMemory(t, "u-1", valueobjects.PrivacyPrivate))

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Should map an update of a foreign memory to not found", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("UpdateItem", ctx, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		err := newTestStore(client).Memories().Update(ctx, sampleMemory(t, "u-1", valueobjects.PrivacyPublic))

		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Should list public memories from the visibility index", func(t *testing.T) {
		client := new(mockDynamoDB)
		item, _ := attributevalue.MarshalMap(toMemoryItem(sampleMemory(t, "u-1", valueobjects.PrivacyPublic)))
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return aws.ToString(in.IndexName) == "GSI2" && hasValue(in, publicPartition) && !aws.ToBool(in.ScanIndexForward)
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

		list, err := newTestStore(client).Memories().ListPublic(ctx)

		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("Should delete a memory with its likes in one transaction", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "MEMORY#m-1") && hasValue(in, likePrefix)
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
			likeKey("m-1", "u-2"), likeKey("m-1", "u-3"),
		}}, nil).Once()
		client.On("TransactWriteItems", ctx, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 3 && in.TransactItems[0].Delete.ConditionExpression != nil
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)
		client.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{}, nil).Once()

		err := newTestStore(client).Memories().DeleteWithReactions(ctx, "m-1", "u-1")

		require.NoError(t, err)
		client.AssertExpectations(t)
		client.AssertNotCalled(t, "BatchWriteItem", mock.Anything, mock.Anything)
	})

	t.Run("Should sweep likes beyond one transaction after the delete", func(t *testing.T) {
		client := new(mockDynamoDB)
		var likes []map[string]types.AttributeValue
		for i := 0; i < 120; i++ {
			likes = append(likes, likeKey("m-1", "u-"+string(rune('a'+i%26))+string(rune('a'+i/26))))
		}
		client.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{Items: likes}, nil).Once()
		client.On("TransactWriteItems", ctx, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == maxTransactItems
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)
		client.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{Items: likes[99:]}, nil).Once()
		client.On("BatchWriteItem", ctx, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{}, nil)

		err := newTestStore(client).Memories().DeleteWithReactions(ctx, "m-1", "u-1")

		require.NoError(t, err)
		client.AssertNumberOfCalls(t, "BatchWriteItem", 1)
	})

	t.Run("Should sweep a like that lands between listing and the delete", func(t *testing.T) {
		// Arrange
		client := new(mockDynamoDB)
		late := likeKey("m-1", "bob")
		client.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{}, nil).Once()
		client.On("TransactWriteItems", ctx, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 1
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)
		client.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{late}}, nil).Once()
		client.On("BatchWriteItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchWriteItemInput) bool {
			reqs := in.RequestItems["memories"]
			return len(reqs) == 1 && keyID(reqs[0].DeleteRequest.Key) == keyID(late)
		})).Return(&dynamodb.BatchWriteItemOutput{}, nil)

		// Act
		err := newTestStore(client).Memories().DeleteWithReactions(ctx, "m-1", "u-1")

		// Assert
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Should map a failed ownership condition on delete to not found", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)
		client.On("TransactWriteItems", ctx, mock.Anything).Return(nil, cancelled(reasonConditionalCheckFailed))

		err := newTestStore(client).Memories().DeleteWithReactions(ctx, "m-1", "intruder")

		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Should replace the owned set and outgoing likes atomically and sweep late likes", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "OWNER#u-1")
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{memoryKey("old")}}, nil)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "LIKER#u-1")
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
			likeKey("old", "u-1"), likeKey("other", "u-1"),
		}}, nil)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "MEMORY#old")
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
			likeKey("old", "u-1"), likeKey("old", "u-9"),
		}}, nil).Once()
		client.On("TransactWriteItems", ctx, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			// 3 distinct likes, the old memory and one new memory
			return len(in.TransactItems) == 5 && in.TransactItems[4].Put != nil
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)
		// a like placed on the old memory while the transaction was built
		late := likeKey("old", "u-7")
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "MEMORY#old")
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{late}}, nil).Once()
		client.On("BatchWriteItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchWriteItemInput) bool {
			reqs := in.RequestItems["memories"]
			return len(reqs) == 1 && keyID(reqs[0].DeleteRequest.Key) == keyID(late)
		})).Return(&dynamodb.BatchWriteItemOutput{}, nil)

		err := newTestStore(client).Memories().ReplaceForOwner(ctx, "u-1", []*entities.Memory{
			sampleMemory(t, "u-1", valueobjects.PrivacyPrivate),
		})

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Should refuse a replace larger than one transaction before writing", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("Query", ctx, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)
		var batch []*entities.Memory
		for i := 0; i <= maxTransactItems; i++ {
			batch = append(batch, sampleMemory(t, "u-1", valueobjects.PrivacyPublic))
		}

		err := newTestStore(client).Memories().ReplaceForOwner(ctx, "u-1", batch)

		assert.True(t, pkgerrors.IsValidation(err))
		client.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
	})
}

func TestReactionRepository(t *testing.T) {
	ctx := context.Background()
	like := entities.NewReaction("m-1", "u-2", time.Now())

	t.Run("Should guard the like with a memory condition check", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("TransactWriteItems", ctx, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 2 && in.TransactItems[0].ConditionCheck != nil && in.TransactItems[1].Put != nil
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		require.NoError(t, newTestStore(client).Reactions().Add(ctx, like))
		client.AssertExpectations(t)
	})

	t.Run("Should tell a duplicate like from a vanished memory", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("TransactWriteItems", ctx, mock.Anything).Return(nil, cancelled("None", reasonConditionalCheckFailed)).Once()
		client.On("TransactWriteItems", ctx, mock.Anything).Return(nil, cancelled(reasonConditionalCheckFailed, "None")).Once()
		reactions := newTestStore(client).Reactions()

		assert.ErrorIs(t, reactions.Add(ctx, like), ports.ErrAlreadyExists)
		assert.ErrorIs(t, reactions.Add(ctx, like), ports.ErrReferenceMissing)
	})

	t.Run("Should report whether a removed like existed", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("DeleteItem", ctx, mock.Anything).Return(&dynamodb.DeleteItemOutput{
			Attributes: likeKey("m-1", "u-2"),
		}, nil).Once()
		client.On("DeleteItem", ctx, mock.Anything).Return(&dynamodb.DeleteItemOutput{}, nil).Once()
		reactions := newTestStore(client).Reactions()

		removed, err := reactions.Remove(ctx, "m-1", "u-2")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = reactions.Remove(ctx, "m-1", "u-2")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("Should sum counts across pages", func(t *testing.T) {
		client := new(mockDynamoDB)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.Select == types.SelectCount && in.ExclusiveStartKey == nil
		})).Return(&dynamodb.QueryOutput{Count: 3, LastEvaluatedKey: likeKey("m-1", "u-3")}, nil)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey != nil
		})).Return(&dynamodb.QueryOutput{Count: 2}, nil)

		n, err := newTestStore(client).Reactions().Count(ctx, "m-1")

		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("Should summarize counts and the requester flag", func(t *testing.T) {
		client := new(mockDynamoDB)
		mine, _ := attributevalue.MarshalMap(likeItem{MemoryID: "m-1"})
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "LIKER#u-2")
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{mine}}, nil)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "MEMORY#m-1")
		})).Return(&dynamodb.QueryOutput{Count: 2}, nil)
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return hasValue(in, "MEMORY#m-2")
		})).Return(&dynamodb.QueryOutput{Count: 0}, nil)

		got, err := newTestStore(client).Reactions().Summaries(ctx, []string{"m-1", "m-2"}, "u-2")

		require.NoError(t, err)
		assert.Equal(t, map[string]ports.ReactionSummary{"m-1": {Count: 2, LikedByRequester: true}}, got)
	})
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	client := new(mockDynamoDB)
	client.On("DescribeTable", ctx, mock.Anything).Return(&dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil)
	store := newTestStore(client)

	assert.NoError(t, store.Ping(ctx))
	assert.Equal(t, ports.StorageInfo{Type: "dynamodb", IsPersistent: true}, store.Info())
	assert.NoError(t, store.Close())
}

func TestErrorClassification(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}
	server := &smithy.GenericAPIError{Code: "InternalServerError"}

	assert.True(t, IsRejected(throttled))
	assert.True(t, IsTransient(throttled))
	assert.True(t, IsRejected(cancelled("None", reasonTransactionConflict)))

	assert.False(t, IsRejected(server))
	assert.True(t, IsTransient(server))
	assert.True(t, IsTransient(context.DeadlineExceeded))

	assert.False(t, IsTransient(cancelled(reasonConditionalCheckFailed)))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsRejected(nil))
}
