package resilience

import (
	"context"
	"time"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
)

// Store decorates every repository of a backend with the executor
type Store struct {
	inner     ports.Store
	exec      *Executor
	users     *userRepository
	memories  *memoryRepository
	reactions *reactionRepository
}

var _ ports.Store = (*Store)(nil)

// Wrap returns a store whose calls run through exec
func Wrap(inner ports.Store, exec *Executor) *Store {
	return &Store{
		inner:     inner,
		exec:      exec,
		users:     &userRepository{inner: inner.Users(), exec: exec},
		memories:  &memoryRepository{inner: inner.Memories(), exec: exec},
		reactions: &reactionRepository{inner: inner.Reactions(), exec: exec},
	}
}

func (s *Store) Users() ports.UserRepository         { return s.users }
func (s *Store) Memories() ports.MemoryRepository   { return s.memories }
func (s *Store) Reactions() ports.ReactionRepository { return s.reactions }
func (s *Store) Info() ports.StorageInfo             { return s.inner.Info() }
func (s *Store) Close() error                        { return s.inner.Close() }

// Ping bypasses retries so readiness checks report the current state
func (s *Store) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Executor exposes the shared executor
func (s *Store) Executor() *Executor { return s.exec }

type userRepository struct {
	inner ports.UserRepository
	exec  *Executor
}

func (r *userRepository) Create(ctx context.Context, user *entities.User) error {
	return r.exec.Do(ctx, "users.create", false, func(ctx context.Context) error {
		return r.inner.Create(ctx, user)
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var out *entities.User
	err := r.exec.Do(ctx, "users.get", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.GetByID(ctx, id)
		return err
	})
	return out, err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var out *entities.User
	err := r.exec.Do(ctx, "users.get_by_username", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.GetByUsername(ctx, username)
		return err
	})
	return out, err
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec.Do(ctx, "users.update_last_login", true, func(ctx context.Context) error {
		return r.inner.UpdateLastLogin(ctx, id, at)
	})
}

func (r *userRepository) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	var out map[string]string
	err := r.exec.Do(ctx, "users.get_usernames", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.GetUsernames(ctx, ids)
		return err
	})
	return out, err
}

type memoryRepository struct {
	inner ports.MemoryRepository
	exec  *Executor
}

func (r *memoryRepository) Create(ctx context.Context, memory *entities.Memory) error {
	return r.exec.Do(ctx, "memories.create", false, func(ctx context.Context) error {
		return r.inner.Create(ctx, memory)
	})
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*entities.Memory, error) {
	var out *entities.Memory
	err := r.exec.Do(ctx, "memories.get", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.GetByID(ctx, id)
		return err
	})
	return out, err
}

func (r *memoryRepository) Update(ctx context.Context, memory *entities.Memory) error {
	return r.exec.Do(ctx, "memories.update", true, func(ctx context.Context) error {
		return r.inner.Update(ctx, memory)
	})
}

func (r *memoryRepository) ListPublic(ctx context.Context) ([]*entities.Memory, error) {
	var out []*entities.Memory
	err := r.exec.Do(ctx, "memories.list_public", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.ListPublic(ctx)
		return err
	})
	return out, err
}

func (r *memoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memory, error) {
	var out []*entities.Memory
	err := r.exec.Do(ctx, "memories.list_by_owner", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.ListByOwner(ctx, ownerID)
		return err
	})
	return out, err
}

// A repeated delete after an unseen commit would report not-found, so it
// is only retried when the first attempt was provably rejected.
func (r *memoryRepository) DeleteWithReactions(ctx context.Context, id, ownerID string) error {
	return r.exec.Do(ctx, "memories.delete", false, func(ctx context.Context) error {
		return r.inner.DeleteWithReactions(ctx, id, ownerID)
	})
}

func (r *memoryRepository) ReplaceForOwner(ctx context.Context, ownerID string, memories []*entities.Memory) error {
	return r.exec.Do(ctx, "memories.replace", true, func(ctx context.Context) error {
		return r.inner.ReplaceForOwner(ctx, ownerID, memories)
	})
}

type reactionRepository struct {
	inner ports.ReactionRepository
	exec  *Executor
}

// A repeated insert after an unseen commit would look like a duplicate and
// flip the toggle, so it follows the same rule as delete.
func (r *reactionRepository) Add(ctx context.Context, reaction entities.Reaction) error {
	return r.exec.Do(ctx, "reactions.add", false, func(ctx context.Context) error {
		return r.inner.Add(ctx, reaction)
	})
}

func (r *reactionRepository) Remove(ctx context.Context, memoryID, userID string) (bool, error) {
	var removed bool
	err := r.exec.Do(ctx, "reactions.remove", true, func(ctx context.Context) error {
		var err error
		removed, err = r.inner.Remove(ctx, memoryID, userID)
		return err
	})
	return removed, err
}

func (r *reactionRepository) Count(ctx context.Context, memoryID string) (int, error) {
	var n int
	err := r.exec.Do(ctx, "reactions.count", true, func(ctx context.Context) error {
		var err error
		n, err = r.inner.Count(ctx, memoryID)
		return err
	})
	return n, err
}

func (r *reactionRepository) Summaries(ctx context.Context, memoryIDs []string, requesterID string) (map[string]ports.ReactionSummary, error) {
	var out map[string]ports.ReactionSummary
	err := r.exec.Do(ctx, "reactions.summaries", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.Summaries(ctx, memoryIDs, requesterID)
		return err
	})
	return out, err
}
