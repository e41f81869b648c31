package sqlstore

import (
	"context"
	"database/sql"

	"github.com/samber/lo"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
)

// ReactionRepository stores likes in the reactions table. The composite
// primary key is what makes concurrent likes from one user safe.
type ReactionRepository struct {
	db *sql.DB
	d  Dialect
}

var _ ports.ReactionRepository = (*ReactionRepository)(nil)

// Add inserts a like. A duplicate pair yields ports.ErrAlreadyExists and a
// vanished memory ports.ErrReferenceMissing.
func (r *ReactionRepository) Add(ctx context.Context, reaction entities.Reaction) error {
	_, err := r.db.ExecContext(ctx, r.d.Rebind(`INSERT INTO reactions (memory_id, user_id, created_at) VALUES (?, ?, ?)`),
		reaction.MemoryID, reaction.UserID, reaction.CreatedAt.UTC())
	return classify("add reaction", err)
}

// Remove deletes a like and reports whether one existed
func (r *ReactionRepository) Remove(ctx context.Context, memoryID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM reactions WHERE memory_id = ? AND user_id = ?`), memoryID, userID)
	if err != nil {
		return false, classify("remove reaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("remove reaction", err)
	}
	return n > 0, nil
}

// Count returns the number of likes on a memory
func (r *ReactionRepository) Count(ctx context.Context, memoryID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT COUNT(*) FROM reactions WHERE memory_id = ?`), memoryID).Scan(&n)
	if err != nil {
		return 0, classify("count reactions", err)
	}
	return n, nil
}

// Summaries aggregates counts and the requester's flag in batches
func (r *ReactionRepository) Summaries(ctx context.Context, memoryIDs []string, requesterID string) (map[string]ports.ReactionSummary, error) {
	out := make(map[string]ports.ReactionSummary, len(memoryIDs))
	for _, batch := range lo.Chunk(memoryIDs, maxInArgs) {
		rows, err := r.db.QueryContext(ctx, r.d.Rebind(`
SELECT memory_id, COUNT(*), SUM(CASE WHEN user_id = ? THEN 1 ELSE 0 END)
FROM reactions
WHERE memory_id IN (`+placeholders(len(batch))+`)
GROUP BY memory_id`), toArgs(batch, requesterID)...)
		if err != nil {
			return nil, classify("summarize reactions", err)
		}
		for rows.Next() {
			var (
				id    string
				count int
				mine  int
			)
			if err := rows.Scan(&id, &count, &mine); err != nil {
				rows.Close()
				return nil, classify("scan reaction summary", err)
			}
			out[id] = ports.ReactionSummary{Count: count, LikedByRequester: mine > 0}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, classify("summarize reactions", err)
		}
	}
	return out, nil
}
