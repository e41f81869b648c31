package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/valueobjects"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, SQLiteOptions{
		Path:       filepath.Join(t.TempDir(), "city.db"),
		EnableWAL:  true,
		SyncPragma: "normal",
	})
	require.NoError(t, err)
	store := NewStore(db, SQLite, zap.NewNop())
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, s *Store, name string) *entities.User {
	t.Helper()
	u, err := entities.NewUser(name, "hash", name+"@example.com", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedMemory(t *testing.T, s *Store, owner string, date string, privacy valueobjects.Privacy) *entities.Memory {
	t.Helper()
	m := newMemory(t, owner, date, privacy)
	require.NoError(t, s.Memories().Create(context.Background(), m))
	return m
}

func newMemory(t *testing.T, owner string, date string, privacy valueobjects.Privacy) *entities.Memory {
	t.Helper()
	m, err := entities.NewMemory(owner, entities.Content{
		Title:       "memory on " + date,
		Description: "walked along the river",
		Theme:       valueobjects.ThemeCity,
		Emotion:     valueobjects.EmotionHappy,
		Date:        valueobjects.ReconstructCalendarDate(date),
		Privacy:     privacy,
		Images:      valueobjects.ReconstructImages([]string{"data:image/png;base64,aGk="}),
	}, valueobjects.ReconstructCoordinates(116.4, 39.9), time.Now())
	require.NoError(t, err)
	return m
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	version, err := SchemaVersion(ctx, store.DB(), SQLite)
	require.NoError(t, err)
	assert.Equal(t, TargetSchemaVersion, version)

	t.Run("Should be idempotent", func(t *testing.T) {
		assert.NoError(t, store.Migrate(ctx))
	})

	t.Run("Should refuse a newer schema", func(t *testing.T) {
		_, err := store.DB().ExecContext(ctx, `UPDATE schema_versions SET version = 99 WHERE component = ?`, SchemaComponent)
		require.NoError(t, err)
		assert.Error(t, store.Migrate(ctx))
	})
}

func TestOpenSQLite_RejectsBadSyncMode(t *testing.T) {
	_, err := OpenSQLite(context.Background(), SQLiteOptions{Path: filepath.Join(t.TempDir(), "x.db"), SyncPragma: "sometimes"})
	assert.Error(t, err)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	alice := seedUser(t, store, "alice")

	t.Run("Should reject a duplicate username", func(t *testing.T) {
		dup, err := entities.NewUser("alice", "hash", "", time.Now())
		require.NoError(t, err)
		err = store.Users().Create(ctx, dup)
		assert.ErrorIs(t, err, ports.ErrAlreadyExists)
	})

	t.Run("Should load by id and username", func(t *testing.T) {
		byID, err := store.Users().GetByID(ctx, alice.ID())
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username())
		assert.Nil(t, byID.LastLogin())

		byName, err := store.Users().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID(), byName.ID())

		_, err = store.Users().GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Should stamp last login", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		require.NoError(t, store.Users().UpdateLastLogin(ctx, alice.ID(), at))

		u, err := store.Users().GetByID(ctx, alice.ID())
		require.NoError(t, err)
		require.NotNil(t, u.LastLogin())
		assert.True(t, at.Equal(*u.LastLogin()))

		assert.ErrorIs(t, store.Users().UpdateLastLogin(ctx, "missing", at), ports.ErrNotFound)
	})

	t.Run("Should resolve usernames and omit unknown ids", func(t *testing.T) {
		bob := seedUser(t, store, "bob")
		names, err := store.Users().GetUsernames(ctx, []string{alice.ID(), bob.ID(), "ghost"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{alice.ID(): "alice", bob.ID(): "bob"}, names)
	})

	t.Run("Should resolve ids spread over several IN batches", func(t *testing.T) {
		// Arrange
		carol := seedUser(t, store, "carol")
		ids := []string{alice.ID()}
		for i := 0; i < maxInArgs+10; i++ {
			ids = append(ids, fmt.Sprintf("ghost-%d", i))
		}
		ids = append(ids, carol.ID())

		// Act
		names, err := store.Users().GetUsernames(ctx, ids)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, map[string]string{alice.ID(): "alice", carol.ID(): "carol"}, names)
	})
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")

	t.Run("Should round trip every field", func(t *testing.T) {
		m := seedMemory(t, store, alice.ID(), "2024-01-01", valueobjects.PrivacyPublic)

		got, err := store.Memories().GetByID(ctx, m.ID())

		require.NoError(t, err)
		assert.Equal(t, m.Content().Title, got.Content().Title)
		assert.Equal(t, m.Content().Description, got.Content().Description)
		assert.Equal(t, "2024-01-01", got.Date().String())
		assert.Equal(t, []string{"data:image/png;base64,aGk="}, got.Content().Images.Items())
		assert.True(t, got.Coordinates().Equals(m.Coordinates()))
		assert.True(t, m.CreatedAt().Equal(got.CreatedAt()))
	})

	t.Run("Should reject an unknown owner", func(t *testing.T) {
		err := store.Memories().Create(ctx, newMemory(t, "ghost", "2024-01-01", valueobjects.PrivacyPublic))
		assert.ErrorIs(t, err, ports.ErrReferenceMissing)
	})

	t.Run("Should list public and owned memories newest first", func(t *testing.T) {
		s := newTestStore(t)
		a := seedUser(t, s, "alice")
		b := seedUser(t, s, "bob")
		older := seedMemory(t, s, a.ID(), "2023-05-01", valueobjects.PrivacyPublic)
		newer := seedMemory(t, s, a.ID(), "2024-05-01", valueobjects.PrivacyPublic)
		hidden := seedMemory(t, s, a.ID(), "2024-06-01", valueobjects.PrivacyPrivate)
		seedMemory(t, s, b.ID(), "2022-01-01", valueobjects.PrivacyPrivate)

		public, err := s.Memories().ListPublic(ctx)
		require.NoError(t, err)
		require.Len(t, public, 2)
		assert.Equal(t, newer.ID(), public[0].ID())
		assert.Equal(t, older.ID(), public[1].ID())

		owned, err := s.Memories().ListByOwner(ctx, a.ID())
		require.NoError(t, err)
		require.Len(t, owned, 3)
		assert.Equal(t, hidden.ID(), owned[0].ID())
	})

	t.Run("Should update content but never location or owner", func(t *testing.T) {
		m := seedMemory(t, store, alice.ID(), "2024-01-01", valueobjects.PrivacyPublic)
		content := m.Content()
		content.Title = "renamed"
		content.Privacy = valueobjects.PrivacyPrivate
		require.NoError(t, m.Revise(content, time.Now()))

		require.NoError(t, store.Memories().Update(ctx, m))

		got, err := store.Memories().GetByID(ctx, m.ID())
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Content().Title)
		assert.Equal(t, valueobjects.PrivacyPrivate, got.Privacy())
		assert.Equal(t, alice.ID(), got.OwnerID())
		assert.True(t, got.Coordinates().Equals(m.Coordinates()))
	})

	t.Run("Should cascade reactions on delete", func(t *testing.T) {
		m := seedMemory(t, store, alice.ID(), "2024-01-01", valueobjects.PrivacyPublic)
		require.NoError(t, store.Reactions().Add(ctx, entities.NewReaction(m.ID(), bob.ID(), time.Now())))
		require.NoError(t, store.Reactions().Add(ctx, entities.NewReaction(m.ID(), alice.ID(), time.Now())))

		assert.ErrorIs(t, store.Memories().DeleteWithReactions(ctx, m.ID(), bob.ID()), ports.ErrNotFound)
		require.NoError(t, store.Memories().DeleteWithReactions(ctx, m.ID(), alice.ID()))

		_, err := store.Memories().GetByID(ctx, m.ID())
		assert.ErrorIs(t, err, ports.ErrNotFound)
		n, err := store.Reactions().Count(ctx, m.ID())
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.ErrorIs(t, store.Memories().DeleteWithReactions(ctx, m.ID(), alice.ID()), ports.ErrNotFound)
	})

	t.Run("Should replace the owner's set and related reactions atomically", func(t *testing.T) {
		s := newTestStore(t)
		a := seedUser(t, s, "alice")
		b := seedUser(t, s, "bob")
		oldMine := seedMemory(t, s, a.ID(), "2020-01-01", valueobjects.PrivacyPublic)
		bobs := seedMemory(t, s, b.ID(), "2020-01-01", valueobjects.PrivacyPublic)
		require.NoError(t, s.Reactions().Add(ctx, entities.NewReaction(oldMine.ID(), b.ID(), time.Now())))
		require.NoError(t, s.Reactions().Add(ctx, entities.NewReaction(bobs.ID(), a.ID(), time.Now())))
		require.NoError(t, s.Reactions().Add(ctx, entities.NewReaction(bobs.ID(), b.ID(), time.Now())))

		replacement := []*entities.Memory{
			newMemory(t, a.ID(), "2021-01-01", valueobjects.PrivacyPublic),
			newMemory(t, a.ID(), "2022-01-01", valueobjects.PrivacyPrivate),
		}
		require.NoError(t, s.Memories().ReplaceForOwner(ctx, a.ID(), replacement))

		owned, err := s.Memories().ListByOwner(ctx, a.ID())
		require.NoError(t, err)
		assert.Len(t, owned, 2)
		_, err = s.Memories().GetByID(ctx, oldMine.ID())
		assert.ErrorIs(t, err, ports.ErrNotFound)

		summaries, err := s.Reactions().Summaries(ctx, []string{bobs.ID()}, a.ID())
		require.NoError(t, err)
		assert.Equal(t, ports.ReactionSummary{Count: 1, LikedByRequester: false}, summaries[bobs.ID()])
	})

	t.Run("Should leave the set untouched when replacement fails", func(t *testing.T) {
		s := newTestStore(t)
		a := seedUser(t, s, "alice")
		keep := seedMemory(t, s, a.ID(), "2020-01-01", valueobjects.PrivacyPublic)
		dup := newMemory(t, a.ID(), "2021-01-01", valueobjects.PrivacyPublic)

		err := s.Memories().ReplaceForOwner(ctx, a.ID(), []*entities.Memory{dup, dup})
		assert.Error(t, err)

		owned, err := s.Memories().ListByOwner(ctx, a.ID())
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, keep.ID(), owned[0].ID())
	})
}

func TestReactionRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	m := seedMemory(t, store, alice.ID(), "2024-01-01", valueobjects.PrivacyPublic)

	t.Run("Should enforce one like per pair", func(t *testing.T) {
		require.NoError(t, store.Reactions().Add(ctx, entities.NewReaction(m.ID(), bob.ID(), time.Now())))
		err := store.Reactions().Add(ctx, entities.NewReaction(m.ID(), bob.ID(), time.Now()))
		assert.ErrorIs(t, err, ports.ErrAlreadyExists)

		removed, err := store.Reactions().Remove(ctx, m.ID(), bob.ID())
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = store.Reactions().Remove(ctx, m.ID(), bob.ID())
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("Should reject a like on a missing memory", func(t *testing.T) {
		err := store.Reactions().Add(ctx, entities.NewReaction("gone", bob.ID(), time.Now()))
		assert.ErrorIs(t, err, ports.ErrReferenceMissing)
	})

	t.Run("Should keep at most one like under concurrent inserts", func(t *testing.T) {
		target := seedMemory(t, store, alice.ID(), "2024-02-02", valueobjects.PrivacyPublic)
		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- store.Reactions().Add(ctx, entities.NewReaction(target.ID(), bob.ID(), time.Now()))
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ports.ErrAlreadyExists)
		}
		assert.Equal(t, 1, succeeded)
		n, err := store.Reactions().Count(ctx, target.ID())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Should summarise counts and the requester flag", func(t *testing.T) {
		other := seedMemory(t, store, bob.ID(), "2024-03-03", valueobjects.PrivacyPublic)
		require.NoError(t, store.Reactions().Add(ctx, entities.NewReaction(other.ID(), alice.ID(), time.Now())))
		require.NoError(t, store.Reactions().Add(ctx, entities.NewReaction(other.ID(), bob.ID(), time.Now())))

		summaries, err := store.Reactions().Summaries(ctx, []string{other.ID(), "none"}, alice.ID())

		require.NoError(t, err)
		assert.Equal(t, ports.ReactionSummary{Count: 2, LikedByRequester: true}, summaries[other.ID()])
		_, ok := summaries["none"]
		assert.False(t, ok)
	})
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT * FROM t WHERE a = ? AND b IN (?, ?)`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`, Postgres.Rebind(q))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, IsTransient(&pq.Error{Code: "08006"}))
	assert.True(t, IsTransient(&pq.Error{Code: "40001"}))
	assert.False(t, IsTransient(&pq.Error{Code: "23505"}))
	assert.False(t, IsTransient(errors.New("syntax error")))
	assert.False(t, IsTransient(nil))
}

func TestClassify_Postgres(t *testing.T) {
	assert.ErrorIs(t, classify("op", &pq.Error{Code: "23505"}), ports.ErrAlreadyExists)
	assert.ErrorIs(t, classify("op", &pq.Error{Code: "23503"}), ports.ErrReferenceMissing)
}

func TestIsRejected(t *testing.T) {
	assert.True(t, IsRejected(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.True(t, IsRejected(&pq.Error{Code: "40001"}))
	assert.False(t, IsRejected(context.DeadlineExceeded))
	assert.False(t, IsRejected(&pq.Error{Code: "08006"}))
}
