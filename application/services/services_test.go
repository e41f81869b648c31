package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"citymemory/application/commands"
	"citymemory/application/ports"
	"citymemory/domain/config"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/validators"
	"citymemory/domain/events"
	"citymemory/infrastructure/persistence/sqlstore"
	"citymemory/pkg/auth"
	pkgerrors "citymemory/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *recordingPublisher) PublishBatch(_ context.Context, evs []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

type recordingMetrics struct {
	mu  sync.Mutex
	ops map[string]int
}

func (m *recordingMetrics) RecordOperation(_ context.Context, op string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops = map[string]int{}
	}
	m.ops[op]++
}

type fixture struct {
	store     *sqlstore.Store
	auth      *AuthService
	memories  *MemoryService
	publisher *recordingPublisher
	metrics   *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := sqlstore.OpenSQLite(ctx, sqlstore.SQLiteOptions{
		Path:      filepath.Join(t.TempDir(), "city.db"),
		EnableWAL: true,
	})
	require.NoError(t, err)
	store := sqlstore.NewStore(db, sqlstore.SQLite, zap.NewNop())
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewJWTService(auth.JWTConfig{SecretKey: "test-secret"})
	require.NoError(t, err)

	validator := validators.NewMemoryValidator(config.DefaultDomainConfig())
	publisher := &recordingPublisher{}
	metrics := &recordingMetrics{}
	return &fixture{
		store:     store,
		auth:      NewAuthService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens, validator, publisher, metrics, zap.NewNop()),
		memories:  NewMemoryService(store, validator, nil, publisher, metrics, zap.NewNop()),
		publisher: publisher,
		metrics:   metrics,
	}
}

// signUp registers and logs in, returning the identity the token carries
func (f *fixture) signUp(t *testing.T, username string) *entities.Identity {
	t.Helper()
	ctx := context.Background()
	_, err := f.auth.Register(ctx, commands.RegisterCommand{Username: username, Password: "secret1", Email: username + "@example.com"})
	require.NoError(t, err)
	login, err := f.auth.Login(ctx, commands.LoginCommand{Username: username, Password: "secret1"})
	require.NoError(t, err)
	identity, err := f.auth.Verify(login.Token)
	require.NoError(t, err)
	return identity
}

func float(v float64) *float64 { return &v }

func memoryFields(title, privacy string) commands.MemoryFields {
	return commands.MemoryFields{
		Title:       title,
		Theme:       "city",
		Emotion:     "happy",
		Description: "sunset over the old bridge",
		Longitude:   float(116.397128),
		Latitude:    float(39.916527),
		Date:        "2024-05-01",
		Privacy:     privacy,
	}
}

func (f *fixture) create(t *testing.T, owner *entities.Identity, title, privacy string) *MemoryView {
	t.Helper()
	view, err := f.memories.Create(context.Background(), owner, commands.CreateMemoryCommand{MemoryFields: memoryFields(title, privacy)})
	require.NoError(t, err)
	return view
}

func findView(views []MemoryView, id string) (MemoryView, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return MemoryView{}, false
}

func TestAuthService(t *testing.T) {
	ctx := context.Background()

	t.Run("Should register, log in and verify the issued token", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		registered, err := f.auth.Register(ctx, commands.RegisterCommand{Username: "alice", Password: "secret1", Email: "alice@example.com"})
		require.NoError(t, err)
		login, err := f.auth.Login(ctx, commands.LoginCommand{Username: "alice", Password: "secret1"})
		require.NoError(t, err)
		identity, err := f.auth.Verify(login.Token)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, registered.ID, identity.UserID)
		assert.Equal(t, "alice", identity.Username)
		assert.Equal(t, "alice@example.com", login.User.Email)
		assert.NotEmpty(t, login.ExpiresAt)

		stored, err := f.store.Users().GetByID(ctx, registered.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLogin())
		assert.NotEqual(t, "secret1", stored.PasswordHash())
		assert.Contains(t, f.publisher.types(), events.TypeUserRegistered)
	})

	t.Run("Should reject a taken username with status 400", func(t *testing.T) {
		f := newFixture(t)
		f.signUp(t, "bob")

		_, err := f.auth.Register(ctx, commands.RegisterCommand{Username: "bob", Password: "another1"})

		require.Error(t, err)
		appErr := pkgerrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "USERNAME_TAKEN", appErr.Code)
		assert.Equal(t, 400, appErr.HTTPStatus)
	})

	t.Run("Should reject malformed credentials", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.auth.Register(ctx, commands.RegisterCommand{Username: "ab", Password: "123"})

		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("Should reject a password bcrypt cannot hash as a validation error", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		_, err := f.auth.Register(ctx, commands.RegisterCommand{Username: "longpw", Password: strings.Repeat("a", 80)})

		// Assert
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
		assert.Equal(t, 400, pkgerrors.GetAppError(err).HTTPStatus)
		_, lookupErr := f.store.Users().GetByUsername(ctx, "longpw")
		assert.ErrorIs(t, lookupErr, ports.ErrNotFound)
	})

	t.Run("Should reject an unknown user and a wrong password", func(t *testing.T) {
		f := newFixture(t)
		f.signUp(t, "carol")

		_, unknownErr := f.auth.Login(ctx, commands.LoginCommand{Username: "nobody", Password: "secret1"})
		_, wrongErr := f.auth.Login(ctx, commands.LoginCommand{Username: "carol", Password: "wrong-pass"})

		assert.True(t, pkgerrors.IsNotFound(unknownErr))
		assert.True(t, pkgerrors.IsUnauthorized(wrongErr))
		assert.Equal(t, 400, pkgerrors.GetAppError(wrongErr).HTTPStatus)
	})

	t.Run("Should reject a forged token", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.auth.Verify("not-a-token")
		_, missing := f.auth.Verify("")

		assert.True(t, pkgerrors.IsUnauthorized(err))
		assert.True(t, pkgerrors.IsUnauthorized(missing))
	})

	t.Run("Should record metrics per operation", func(t *testing.T) {
		f := newFixture(t)
		f.signUp(t, "dave")

		assert.Equal(t, 1, f.metrics.ops["auth.register"])
		assert.Equal(t, 1, f.metrics.ops["auth.login"])
	})
}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.signUp(t, "alice")
	bob := f.signUp(t, "bob")

	m1 := f.create(t, alice, "Bridge at dusk", "public")

	t.Run("Should show a public memory to other users without likes", func(t *testing.T) {
		views, err := f.memories.List(ctx, bob, commands.ListMemoriesQuery{Scope: commands.ScopeAll})

		require.NoError(t, err)
		view, ok := findView(views, m1.ID)
		require.True(t, ok)
		assert.Equal(t, "alice", view.Username)
		assert.Equal(t, 0, view.LikeCount)
		assert.False(t, view.Liked)
	})

	t.Run("Should toggle a like on and report it in the listing", func(t *testing.T) {
		result, err := f.memories.ToggleReaction(ctx, bob, m1.ID)
		require.NoError(t, err)
		assert.Equal(t, &ToggleResult{Liked: true, LikeCount: 1}, result)

		views, err := f.memories.List(ctx, bob, commands.ListMemoriesQuery{})
		require.NoError(t, err)
		view, _ := findView(views, m1.ID)
		assert.Equal(t, 1, view.LikeCount)
		assert.True(t, view.Liked)

		ownerViews, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{Scope: commands.ScopeMine})
		require.NoError(t, err)
		ownerView, _ := findView(ownerViews, m1.ID)
		assert.Equal(t, 1, ownerView.LikeCount)
		assert.False(t, ownerView.Liked)
	})

	t.Run("Should refuse edits from other users as not found", func(t *testing.T) {
		cmd := commands.UpdateMemoryCommand{MemoryID: m1.ID, MemoryFields: memoryFields("Hijacked", "public")}

		_, updateErr := f.memories.Update(ctx, bob, cmd)
		deleteErr := f.memories.Delete(ctx, bob, m1.ID)

		assert.True(t, pkgerrors.IsNotFound(updateErr))
		assert.True(t, pkgerrors.IsNotFound(deleteErr))
	})

	t.Run("Should cascade likes when the owner deletes", func(t *testing.T) {
		require.NoError(t, f.memories.Delete(ctx, alice, m1.ID))

		views, err := f.memories.List(ctx, bob, commands.ListMemoriesQuery{})
		require.NoError(t, err)
		_, ok := findView(views, m1.ID)
		assert.False(t, ok)

		_, err = f.memories.ToggleReaction(ctx, bob, m1.ID)
		assert.True(t, pkgerrors.IsNotFound(err))

		count, err := f.store.Reactions().Count(ctx, m1.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Contains(t, f.publisher.types(), events.TypeMemoryDeleted)
	})
}

func TestMemoryVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.signUp(t, "alice")
	bob := f.signUp(t, "bob")
	private := f.create(t, alice, "Diary", "private")

	t.Run("Should hide a private memory from everyone but the owner", func(t *testing.T) {
		bobViews, err := f.memories.List(ctx, bob, commands.ListMemoriesQuery{})
		require.NoError(t, err)
		_, visible := findView(bobViews, private.ID)
		assert.False(t, visible)

		aliceViews, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{})
		require.NoError(t, err)
		_, visible = findView(aliceViews, private.ID)
		assert.True(t, visible)
	})

	t.Run("Should answer not found for reactions on a private memory", func(t *testing.T) {
		_, err := f.memories.ToggleReaction(ctx, bob, private.ID)

		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("Should keep privacy when an update omits it", func(t *testing.T) {
		fields := memoryFields("Diary, revised", "")
		fields.Longitude = float(0)

		view, err := f.memories.Update(ctx, alice, commands.UpdateMemoryCommand{MemoryID: private.ID, MemoryFields: fields})

		require.NoError(t, err)
		assert.Equal(t, "private", view.Privacy)
		assert.Equal(t, "Diary, revised", view.Title)
		assert.InDelta(t, 116.397128, view.Longitude, 1e-9)
	})

	t.Run("Should require an identity", func(t *testing.T) {
		_, err := f.memories.List(ctx, nil, commands.ListMemoriesQuery{})

		assert.True(t, pkgerrors.IsUnauthorized(err))
	})

	t.Run("Should reject an unknown scope", func(t *testing.T) {
		_, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{Scope: "everyone"})

		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestMemoryCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.signUp(t, "alice")

	tests := []struct {
		name   string
		mutate func(*commands.MemoryFields)
	}{
		{"Should reject an empty title", func(m *commands.MemoryFields) { m.Title = "  " }},
		{"Should reject an unknown theme", func(m *commands.MemoryFields) { m.Theme = "space" }},
		{"Should reject a missing latitude", func(m *commands.MemoryFields) { m.Latitude = nil }},
		{"Should reject an out of range longitude", func(m *commands.MemoryFields) { m.Longitude = float(181) }},
		{"Should reject a malformed date", func(m *commands.MemoryFields) { m.Date = "01/05/2024" }},
		{"Should reject an unknown privacy", func(m *commands.MemoryFields) { m.Privacy = "friends" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := memoryFields("Valid title", "public")
			tt.mutate(&fields)

			_, err := f.memories.Create(ctx, alice, commands.CreateMemoryCommand{MemoryFields: fields})

			assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
		})
	}

	t.Run("Should default privacy to public", func(t *testing.T) {
		view := f.create(t, alice, "Default privacy", "")

		assert.Equal(t, "public", view.Privacy)
		assert.Equal(t, "alice", view.Username)
	})
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.signUp(t, "alice")

	older := memoryFields("Older", "public")
	older.Date = "2023-01-15"
	older.Emotion = "calm"
	_, err := f.memories.Create(ctx, alice, commands.CreateMemoryCommand{MemoryFields: older})
	require.NoError(t, err)
	newer := f.create(t, alice, "Newer", "public")

	t.Run("Should order by memory date, newest first", func(t *testing.T) {
		views, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{Scope: commands.ScopeMine})

		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, newer.ID, views[0].ID)
	})

	t.Run("Should filter by emotion including legacy labels", func(t *testing.T) {
		views, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{Emotions: []string{"平静"}})

		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "Older", views[0].Title)
	})

	t.Run("Should filter by date range", func(t *testing.T) {
		views, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{From: "2024-01-01", To: "2024-12-31"})

		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, newer.ID, views[0].ID)
	})
}

func TestToggleReactionConcurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.signUp(t, "owner")
	memory := f.create(t, owner, "Popular", "public")

	const fans = 8
	identities := make([]*entities.Identity, fans)
	for i := range identities {
		identities[i] = f.signUp(t, fmt.Sprintf("fan%d", i))
	}

	t.Run("Should count one like per user under concurrent toggles", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, fans)
		for _, id := range identities {
			wg.Add(1)
			go func(id *entities.Identity) {
				defer wg.Done()
				if _, err := f.memories.ToggleReaction(ctx, id, memory.ID); err != nil {
					errs <- err
				}
			}(id)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		count, err := f.store.Reactions().Count(ctx, memory.ID)
		require.NoError(t, err)
		assert.Equal(t, fans, count)
	})

	t.Run("Should flip once per completed call when one user races", func(t *testing.T) {
		// Arrange
		const racers = 6
		before, err := f.store.Reactions().Count(ctx, memory.ID)
		require.NoError(t, err)

		// Act
		var wg sync.WaitGroup
		errs := make(chan error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.memories.ToggleReaction(ctx, owner, memory.ID); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		// Assert
		for err := range errs {
			require.NoError(t, err)
		}
		after, err := f.store.Reactions().Count(ctx, memory.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after, "an even number of toggles leaves the like absent")
	})

	t.Run("Should restore the original state after two sequential toggles", func(t *testing.T) {
		// Arrange
		fan := identities[0]
		views, err := f.memories.List(ctx, fan, commands.ListMemoriesQuery{})
		require.NoError(t, err)
		original, ok := findView(views, memory.ID)
		require.True(t, ok)

		// Act
		first, err := f.memories.ToggleReaction(ctx, fan, memory.ID)
		require.NoError(t, err)
		second, err := f.memories.ToggleReaction(ctx, fan, memory.ID)
		require.NoError(t, err)

		// Assert
		assert.Equal(t, !original.Liked, first.Liked)
		assert.Equal(t, original.Liked, second.Liked)
		assert.Equal(t, original.LikeCount, second.LikeCount)
		views, err = f.memories.List(ctx, fan, commands.ListMemoriesQuery{})
		require.NoError(t, err)
		restored, ok := findView(views, memory.ID)
		require.True(t, ok)
		assert.Equal(t, original.Liked, restored.Liked)
		assert.Equal(t, original.LikeCount, restored.LikeCount)
	})
}

// barrierReactions holds the first two Remove calls until both have
// arrived, so two toggles from a liked state both see the like as present
type barrierReactions struct {
	ports.ReactionRepository
	arrived sync.WaitGroup
	gated   atomic.Int32
}

func newBarrierReactions(inner ports.ReactionRepository) *barrierReactions {
	r := &barrierReactions{ReactionRepository: inner}
	r.arrived.Add(2)
	return r
}

func (r *barrierReactions) Remove(ctx context.Context, memoryID, userID string) (bool, error) {
	if r.gated.Add(1) <= 2 {
		r.arrived.Done()
		r.arrived.Wait()
	}
	return r.ReactionRepository.Remove(ctx, memoryID, userID)
}

type barrierStore struct {
	ports.Store
	reactions *barrierReactions
}

func (s *barrierStore) Reactions() ports.ReactionRepository { return s.reactions }

func TestToggleReactionInterleaving(t *testing.T) {
	t.Run("Should count both toggles when two calls unlike the same like", func(t *testing.T) {
		// Arrange
		ctx := context.Background()
		f := newFixture(t)
		owner := f.signUp(t, "owner")
		fan := f.signUp(t, "fan")
		memory := f.create(t, owner, "Contested", "public")
		_, err := f.memories.ToggleReaction(ctx, fan, memory.ID)
		require.NoError(t, err)

		gated := &barrierStore{Store: f.store, reactions: newBarrierReactions(f.store.Reactions())}
		validator := validators.NewMemoryValidator(config.DefaultDomainConfig())
		memories := NewMemoryService(gated, validator, nil, f.publisher, f.metrics, zap.NewNop())

		// Act
		results := make([]*ToggleResult, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = memories.ToggleReaction(ctx, fan, memory.ID)
			}(i)
		}
		wg.Wait()

		// Assert
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.ElementsMatch(t, []bool{true, false}, []bool{results[0].Liked, results[1].Liked})
		count, err := f.store.Reactions().Count(ctx, memory.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.signUp(t, "alice")
	bob := f.signUp(t, "bob")

	public := f.create(t, alice, "Shared", "public")
	f.create(t, alice, "Secret", "private")
	_, err := f.memories.ToggleReaction(ctx, bob, public.ID)
	require.NoError(t, err)

	t.Run("Should export every owned memory with like counts", func(t *testing.T) {
		envelope, err := f.memories.ExportAll(ctx, alice)

		require.NoError(t, err)
		assert.Equal(t, ExportVersion, envelope.Version)
		assert.Equal(t, "alice", envelope.Username)
		assert.Equal(t, "alice@example.com", envelope.UserInfo.Email)
		assert.NotNil(t, envelope.UserInfo.LastLogin)
		assert.Equal(t, "sqlite", envelope.StorageInfo.Type)
		require.Len(t, envelope.Memories, 2)

		likes := map[string]int{}
		for _, m := range envelope.Memories {
			likes[m.Title] = m.LikeCount
		}
		assert.Equal(t, map[string]int{"Shared": 1, "Secret": 0}, likes)
	})

	t.Run("Should replace owned memories and skip invalid records", func(t *testing.T) {
		envelope, err := f.memories.ExportAll(ctx, alice)
		require.NoError(t, err)

		records := []interface{}{envelope.Memories[0], envelope.Memories[1]}
		records = append(records,
			map[string]interface{}{"title": "Legacy", "theme": "food", "emotion": "开心", "longitude": "121.47", "latitude": "31.23", "date": "2022-10-01", "createdAt": "2022-10-01T08:00:00.000Z"},
			map[string]interface{}{"title": "", "theme": "food", "emotion": "happy", "longitude": 1, "latitude": 1, "date": "2022-10-01"},
			map[string]interface{}{"title": "Bad coords", "theme": "food", "emotion": "happy", "longitude": "east", "latitude": 1, "date": "2022-10-01"},
			"not an object",
		)
		raw, err := json.Marshal(records)
		require.NoError(t, err)
		var cmd commands.ImportCommand
		cmd.Data.Memories = raw

		result, err := f.memories.ImportAll(ctx, alice, cmd)

		require.NoError(t, err)
		assert.Equal(t, &ImportResult{Count: 3, Skipped: 3}, result)

		views, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{Scope: commands.ScopeMine})
		require.NoError(t, err)
		require.Len(t, views, 3)
		for _, v := range views {
			assert.NotEqual(t, public.ID, v.ID)
			assert.Zero(t, v.LikeCount)
		}

		legacy, ok := lookupTitle(views, "Legacy")
		require.True(t, ok)
		assert.Equal(t, "happy", legacy.Emotion)
		assert.Equal(t, "2022-10-01T08:00:00.000Z", legacy.CreatedAt)

		count, err := f.store.Reactions().Count(ctx, public.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Contains(t, f.publisher.types(), events.TypeMemoriesImported)
	})

	t.Run("Should reject a payload without a memories array and keep existing memories", func(t *testing.T) {
		payloads := map[string]string{
			"memories object": `{"data":{"memories":{"title":"one"}}}`,
			"missing data":    `{"memories":[]}`,
			"memories string": `{"data":{"memories":"[]"}}`,
		}
		for name, payload := range payloads {
			t.Run(name, func(t *testing.T) {
				// Arrange
				before, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{Scope: commands.ScopeMine})
				require.NoError(t, err)
				require.NotEmpty(t, before)
				var cmd commands.ImportCommand
				require.NoError(t, json.Unmarshal([]byte(payload), &cmd))

				// Act
				_, err = f.memories.ImportAll(ctx, alice, cmd)

				// Assert
				assert.True(t, pkgerrors.IsValidation(err))
				after, err := f.memories.List(ctx, alice, commands.ListMemoriesQuery{Scope: commands.ScopeMine})
				require.NoError(t, err)
				assert.Equal(t, before, after)
			})
		}
	})

	t.Run("Should leave other users untouched", func(t *testing.T) {
		bobMemory := f.create(t, bob, "Bob's", "public")
		var cmd commands.ImportCommand
		cmd.Data.Memories = json.RawMessage(`[]`)

		result, err := f.memories.ImportAll(ctx, alice, cmd)
		require.NoError(t, err)
		assert.Zero(t, result.Count)

		_, err = f.store.Memories().GetByID(ctx, bobMemory.ID)
		assert.NoError(t, err)
	})
}

func lookupTitle(views []MemoryView, title string) (MemoryView, bool) {
	for _, v := range views {
		if v.Title == title {
			return v, true
		}
	}
	return MemoryView{}, false
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.signUp(t, "alice")
	f.create(t, alice, "One", "public")
	f.create(t, alice, "Two", "private")

	stats, err := f.memories.Stats(ctx, alice)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMemories)
	assert.Equal(t, map[string]int{"city": 2}, stats.Themes)
	assert.Equal(t, map[string]int{"happy": 2}, stats.Emotions)
	assert.Equal(t, map[string]int{"2024-05": 2}, stats.MonthlyCount)
	assert.True(t, stats.Storage.IsPersistent)
}
