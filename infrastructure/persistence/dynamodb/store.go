package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"citymemory/application/ports"
)

// Store bundles the DynamoDB repositories over one table
type Store struct {
	client    DynamoDBAPI
	cfg       Config
	users     *UserRepository
	memories  *MemoryRepository
	reactions *ReactionRepository
	logger    *zap.Logger
}

var _ ports.Store = (*Store)(nil)

// NewStore creates the repositories over the configured table
func NewStore(client DynamoDBAPI, cfg Config, logger *zap.Logger) *Store {
	cfg = cfg.withDefaults()
	t := &table{client: client, cfg: cfg, logger: logger}
	return &Store{
		client:    client,
		cfg:       cfg,
		users:     &UserRepository{table: t},
		memories:  &MemoryRepository{table: t},
		reactions: &ReactionRepository{table: t},
		logger:    logger,
	}
}

func (s *Store) Users() ports.UserRepository         { return s.users }
func (s *Store) Memories() ports.MemoryRepository   { return s.memories }
func (s *Store) Reactions() ports.ReactionRepository { return s.reactions }

// Ping checks that the table is reachable and active
func (s *Store) Ping(ctx context.Context) error {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.cfg.TableName),
	})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", s.cfg.TableName, err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive && out.Table.TableStatus != types.TableStatusUpdating {
		return fmt.Errorf("table %s is %s", s.cfg.TableName, out.Table.TableStatus)
	}
	return nil
}

// Info describes the backend
func (s *Store) Info() ports.StorageInfo {
	return ports.StorageInfo{Type: "dynamodb", IsPersistent: true}
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (s *Store) Close() error { return nil }

// table carries what every repository needs
type table struct {
	client DynamoDBAPI
	cfg    Config
	logger *zap.Logger
}

func (t *table) name() *string { return aws.String(t.cfg.TableName) }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// keyID renders a primary key for de-duplication
func keyID(k map[string]types.AttributeValue) string {
	pk, _ := k["PK"].(*types.AttributeValueMemberS)
	sk, _ := k["SK"].(*types.AttributeValueMemberS)
	if pk == nil || sk == nil {
		return ""
	}
	return pk.Value + "|" + sk.Value
}

// queryAll follows LastEvaluatedKey until the result set is exhausted
func (t *table) queryAll(ctx context.Context, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(t.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// countAll sums Select COUNT pages
func (t *table) countAll(ctx context.Context, in *dynamodb.QueryInput) (int, error) {
	in.Select = types.SelectCount
	total := 0
	p := dynamodb.NewQueryPaginator(t.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

// batchDelete removes keys in batches of 25, resubmitting unprocessed items
func (t *table) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	for _, batch := range lo.Chunk(keys, maxBatchWrite) {
		requests := lo.Map(batch, func(k map[string]types.AttributeValue, _ int) types.WriteRequest {
			return types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}}
		})
		pending := map[string][]types.WriteRequest{t.cfg.TableName: requests}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchAttempts {
				return fmt.Errorf("batch delete: %d items left unprocessed", len(pending[t.cfg.TableName]))
			}
			out, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("batch delete: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}
