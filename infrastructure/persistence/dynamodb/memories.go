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
	"go.uber.org/zap"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/valueobjects"
	pkgerrors "citymemory/pkg/errors"
	"citymemory/pkg/utils"
)

// MemoryRepository stores memories as MEMORY#<id>/METADATA items
type MemoryRepository struct {
	*table
}

var _ ports.MemoryRepository = (*MemoryRepository)(nil)

// memoryItem represents the DynamoDB item structure for a memory
type memoryItem struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	GSI1PK      string   `dynamodbav:"GSI1PK"`           // OWNER#<owner>
	GSI1SK      string   `dynamodbav:"GSI1SK"`           // <date>#<createdAt>
	GSI2PK      string   `dynamodbav:"GSI2PK,omitempty"` // set only while public
	GSI2SK      string   `dynamodbav:"GSI2SK,omitempty"`
	EntityType  string   `dynamodbav:"EntityType"`
	MemoryID    string   `dynamodbav:"MemoryID"`
	OwnerID     string   `dynamodbav:"OwnerID"`
	Title       string   `dynamodbav:"Title"`
	Description string   `dynamodbav:"Description"`
	Theme       string   `dynamodbav:"Theme"`
	Emotion     string   `dynamodbav:"Emotion"`
	MemoryDate  string   `dynamodbav:"MemoryDate"`
	Privacy     string   `dynamodbav:"Privacy"`
	Images      []string `dynamodbav:"Images,omitempty"`
	Longitude   float64  `dynamodbav:"Longitude"`
	Latitude    float64  `dynamodbav:"Latitude"`
	CreatedAt   string   `dynamodbav:"CreatedAt"`
	UpdatedAt   string   `dynamodbav:"UpdatedAt"`
}

func memoryKey(id string) map[string]types.AttributeValue {
	return key(memoryPrefix+id, metadataSK)
}

// sortKey orders by memory date, then creation time
func sortKey(m *entities.Memory) string {
	return m.Date().String() + "#" + utils.FormatTimestamp(m.CreatedAt())
}

func toMemoryItem(m *entities.Memory) memoryItem {
	c := m.Content()
	item := memoryItem{
		PK:          memoryPrefix + m.ID(),
		SK:          metadataSK,
		GSI1PK:      ownerPrefix + m.OwnerID(),
		GSI1SK:      sortKey(m),
		EntityType:  entityMemory,
		MemoryID:    m.ID(),
		OwnerID:     m.OwnerID(),
		Title:       c.Title,
		Description: c.Description,
		Theme:       string(c.Theme),
		Emotion:     string(c.Emotion),
		MemoryDate:  c.Date.String(),
		Privacy:     string(c.Privacy),
		Images:      c.Images.Items(),
		Longitude:   m.Coordinates().Longitude(),
		Latitude:    m.Coordinates().Latitude(),
		CreatedAt:   utils.FormatTimestamp(m.CreatedAt()),
		UpdatedAt:   utils.FormatTimestamp(m.UpdatedAt()),
	}
	if c.Privacy.IsPublic() {
		item.GSI2PK = publicPartition
		item.GSI2SK = item.GSI1SK
	}
	return item
}

func (i memoryItem) toEntity() (*entities.Memory, error) {
	createdAt, err := utils.ParseTimestamp(i.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("memory %s created at: %w", i.MemoryID, err)
	}
	updatedAt, err := utils.ParseTimestamp(i.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("memory %s updated at: %w", i.MemoryID, err)
	}
	return entities.ReconstructMemory(
		i.MemoryID,
		i.OwnerID,
		entities.Content{
			Title:       i.Title,
			Description: i.Description,
			Theme:       valueobjects.Theme(i.Theme),
			Emotion:     valueobjects.Emotion(i.Emotion),
			Date:        valueobjects.ReconstructCalendarDate(i.MemoryDate),
			Privacy:     valueobjects.Privacy(i.Privacy),
			Images:      valueobjects.ReconstructImages(i.Images),
		},
		valueobjects.ReconstructCoordinates(i.Longitude, i.Latitude),
		createdAt,
		updatedAt,
	), nil
}

func (r *MemoryRepository) putAction(m *entities.Memory) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(toMemoryItem(m))
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal memory: %w", err)
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           r.name(),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}}, nil
}

// Create stores a memory after checking its owner exists
func (r *MemoryRepository) Create(ctx context.Context, memory *entities.Memory) error {
	put, err := r.putAction(memory)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:           r.name(),
				Key:                 userKey(memory.OwnerID()),
				ConditionExpression: aws.String("attribute_exists(PK)"),
			}},
			put,
		},
	})
	if i, ok := failedCondition(err); ok {
		if i == 0 {
			return fmt.Errorf("create memory: %w: %w", ports.ErrReferenceMissing, err)
		}
		return fmt.Errorf("create memory: %w: %w", ports.ErrAlreadyExists, err)
	}
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}
	return nil
}

// GetByID retrieves a memory by id
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*entities.Memory, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      r.name(),
		Key:            memoryKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("get memory: %w", ports.ErrNotFound)
	}
	var item memoryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal memory: %w", err)
	}
	return item.toEntity()
}

// Update overwrites the editable attributes of an owned memory and moves it
// in or out of the public index. Location and owner are never written.
func (r *MemoryRepository) Update(ctx context.Context, m *entities.Memory) error {
	c := m.Content()
	sk := sortKey(m)
	update := expression.
		Set(expression.Name("Title"), expression.Value(c.Title)).
		Set(expression.Name("Description"), expression.Value(c.Description)).
		Set(expression.Name("Theme"), expression.Value(string(c.Theme))).
		Set(expression.Name("Emotion"), expression.Value(string(c.Emotion))).
		Set(expression.Name("MemoryDate"), expression.Value(c.Date.String())).
		Set(expression.Name("Privacy"), expression.Value(string(c.Privacy))).
		Set(expression.Name("GSI1SK"), expression.Value(sk)).
		Set(expression.Name("UpdatedAt"), expression.Value(utils.FormatTimestamp(m.UpdatedAt())))
	if images := c.Images.Items(); len(images) > 0 {
		update = update.Set(expression.Name("Images"), expression.Value(images))
	} else {
		update = update.Remove(expression.Name("Images"))
	}
	if c.Privacy.IsPublic() {
		update = update.
			Set(expression.Name("GSI2PK"), expression.Value(publicPartition)).
			Set(expression.Name("GSI2SK"), expression.Value(sk))
	} else {
		update = update.Remove(expression.Name("GSI2PK")).Remove(expression.Name("GSI2SK"))
	}

	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.Name("OwnerID").Equal(expression.Value(m.OwnerID())))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build memory update: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.name(),
		Key:                       memoryKey(m.ID()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("update memory: %w", ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return nil
}

// ListPublic reads the sparse visibility index, newest first
func (r *MemoryRepository) ListPublic(ctx context.Context) ([]*entities.Memory, error) {
	return r.listIndex(ctx, "list public memories", r.cfg.VisibilityIndex, "GSI2PK", publicPartition)
}

// ListByOwner reads the owner index, newest first
func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memory, error) {
	return r.listIndex(ctx, "list owner memories", r.cfg.OwnerIndex, "GSI1PK", ownerPrefix+ownerID)
}

func (r *MemoryRepository) listIndex(ctx context.Context, op, index, partitionAttr, partition string) ([]*entities.Memory, error) {
	keyCond := expression.Key(partitionAttr).Equal(expression.Value(partition))
	filter := expression.Name("EntityType").Equal(expression.Value(entityMemory))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}
	items, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.name(),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]*entities.Memory, 0, len(items))
	for _, raw := range items {
		var item memoryItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", op, err)
		}
		m, err := item.toEntity()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// likeKeys returns the primary keys of every like on a memory
func (r *MemoryRepository) likeKeys(ctx context.Context, memoryID string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(memoryPrefix + memoryID)).
		And(expression.Key("SK").BeginsWith(likePrefix))
	return r.keysWhere(ctx, nil, keyCond)
}

// outgoingLikeKeys returns the primary keys of every like a user has given
func (r *MemoryRepository) outgoingLikeKeys(ctx context.Context, userID string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(likerPrefix + userID))
	return r.keysWhere(ctx, aws.String(r.cfg.OwnerIndex), keyCond)
}

// ownedMemoryKeys returns the primary keys of every memory a user owns
func (r *MemoryRepository) ownedMemoryKeys(ctx context.Context, ownerID string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(ownerPrefix + ownerID))
	return r.keysWhere(ctx, aws.String(r.cfg.OwnerIndex), keyCond)
}

func (r *MemoryRepository) keysWhere(ctx context.Context, index *string, keyCond expression.KeyConditionBuilder) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build key query: %w", err)
	}
	return r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.name(),
		IndexName:                 index,
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

// DeleteWithReactions removes an owned memory and its likes. The memory and
// up to 99 likes go in one transaction; likes beyond those or added while the
// transaction was being built are swept afterwards.
func (r *MemoryRepository) DeleteWithReactions(ctx context.Context, id, ownerID string) error {
	likes, err := r.likeKeys(ctx, id)
	if err != nil {
		return fmt.Errorf("delete memory: list likes: %w", err)
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("OwnerID").Equal(expression.Value(ownerID))).
		Build()
	if err != nil {
		return fmt.Errorf("delete memory: build condition: %w", err)
	}

	actions := []types.TransactWriteItem{{Delete: &types.Delete{
		TableName:                 r.name(),
		Key:                       memoryKey(id),
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	}}}
	for _, k := range likes {
		if len(actions) == maxTransactItems {
			break
		}
		actions = append(actions, types.TransactWriteItem{Delete: &types.Delete{TableName: r.name(), Key: k}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: actions})
	if i, ok := failedCondition(err); ok && i == 0 {
		return fmt.Errorf("delete memory: %w", ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}

	r.sweepLikes(ctx, id)
	return nil
}

// sweepLikes deletes likes left on memories that no longer exist. Likes can
// commit between listing and the delete transaction; Add checks the memory
// item, so once it is gone the set can only shrink and one pass is final.
func (r *MemoryRepository) sweepLikes(ctx context.Context, memoryIDs ...string) {
	for _, id := range memoryIDs {
		remaining, err := r.likeKeys(ctx, id)
		if err == nil && len(remaining) > 0 {
			err = r.batchDelete(ctx, remaining)
		}
		if err != nil {
			r.logger.Warn("Failed to sweep likes of deleted memory",
				zap.String("memory_id", id),
				zap.Error(err))
		}
	}
}

// ReplaceForOwner swaps the owner's memory set in one transaction. Sets
// needing more than 100 writes are refused before anything is written.
func (r *MemoryRepository) ReplaceForOwner(ctx context.Context, ownerID string, memories []*entities.Memory) error {
	owned, err := r.ownedMemoryKeys(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("replace memories: list owned: %w", err)
	}
	outgoing, err := r.outgoingLikeKeys(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("replace memories: list outgoing likes: %w", err)
	}

	seen := make(map[string]bool)
	var deletes []map[string]types.AttributeValue
	addDelete := func(k map[string]types.AttributeValue) {
		id := keyID(k)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		deletes = append(deletes, k)
	}
	for _, k := range outgoing {
		addDelete(k)
	}
	replaced := make([]string, 0, len(owned))
	for _, k := range owned {
		pk := k["PK"].(*types.AttributeValueMemberS).Value
		replaced = append(replaced, pk[len(memoryPrefix):])
		likes, err := r.likeKeys(ctx, pk[len(memoryPrefix):])
		if err != nil {
			return fmt.Errorf("replace memories: list likes: %w", err)
		}
		for _, lk := range likes {
			addDelete(lk)
		}
		addDelete(k)
	}

	if total := len(deletes) + len(memories); total > maxTransactItems {
		return pkgerrors.NewValidationError(fmt.Sprintf(
			"import needs %d writes, more than the %d this store can apply atomically", total, maxTransactItems)).
			WithCode("IMPORT_TOO_LARGE")
	}

	actions := make([]types.TransactWriteItem, 0, len(deletes)+len(memories))
	for _, k := range deletes {
		actions = append(actions, types.TransactWriteItem{Delete: &types.Delete{TableName: r.name(), Key: k}})
	}
	for _, m := range memories {
		if m.OwnerID() != ownerID {
			return fmt.Errorf("replace memories: memory %s is not owned by %s", m.ID(), ownerID)
		}
		put, err := r.putAction(m)
		if err != nil {
			return fmt.Errorf("replace memories: %w", err)
		}
		actions = append(actions, put)
	}
	if len(actions) == 0 {
		return nil
	}

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: actions}); err != nil {
		return fmt.Errorf("replace memories: %w", err)
	}
	// a re-imported id is live again and its new likes must stay
	kept := lo.SliceToMap(memories, func(m *entities.Memory) (string, bool) { return m.ID(), true })
	r.sweepLikes(ctx, lo.Reject(replaced, func(id string, _ int) bool { return kept[id] })...)
	return nil
}
