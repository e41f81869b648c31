package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"citymemory/application/commands"
	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/validators"
	"citymemory/domain/core/valueobjects"
	"citymemory/domain/events"
	"citymemory/domain/policy"
	pkgerrors "citymemory/pkg/errors"
	"citymemory/pkg/utils"
)

// usernameTTL bounds how long a resolved owner name is reused. Usernames are
// immutable, so the bound only limits memory held for inactive owners.
const usernameTTL = 3600

// maxToggleAttempts bounds the insert/delete alternation of one toggle
const maxToggleAttempts = 5

// MemoryService is the memory access engine: visibility scoping, ownership
// checks, like toggles and bulk import/export
type MemoryService struct {
	base
	store     ports.Store
	validator *validators.MemoryValidator
	usernames ports.Cache
}

// NewMemoryService creates the engine. cache may be nil.
func NewMemoryService(
	store ports.Store,
	validator *validators.MemoryValidator,
	cache ports.Cache,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *MemoryService {
	return &MemoryService{
		base:      newBase(publisher, metrics, logger),
		store:     store,
		validator: validator,
		usernames: cache,
	}
}

// List returns the memories in scope for the requester, newest first
func (s *MemoryService) List(ctx context.Context, requester *entities.Identity, q commands.ListMemoriesQuery) (_ []MemoryView, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.list", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(q); err != nil {
		return nil, err
	}

	var memories []*entities.Memory
	switch q.Scope {
	case "", commands.ScopeAll:
		memories, err = s.readableBy(ctx, requester.UserID)
	case commands.ScopeMine, "mine":
		memories, err = s.store.Memories().ListByOwner(ctx, requester.UserID)
	default:
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown view '%s'", q.Scope))
	}
	if err != nil {
		return nil, storeError("list memories", err)
	}

	memories = applyFilters(memories, q)
	sortNewestFirst(memories)
	return s.enrich(ctx, requester, memories)
}

// readableBy merges public memories with the requester's own and passes the
// result through the visibility policy
func (s *MemoryService) readableBy(ctx context.Context, userID string) ([]*entities.Memory, error) {
	own, err := s.store.Memories().ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	public, err := s.store.Memories().ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	merged := lo.UniqBy(append(own, public...), func(m *entities.Memory) string { return m.ID() })
	return policy.Readable(userID, merged), nil
}

func applyFilters(memories []*entities.Memory, q commands.ListMemoriesQuery) []*entities.Memory {
	theme := strings.ToLower(strings.TrimSpace(q.Theme))
	emotions := make(map[valueobjects.Emotion]bool)
	for _, raw := range q.Emotions {
		if e, err := valueobjects.ParseLegacyEmotion(raw); err == nil {
			emotions[e] = true
		}
	}
	if len(q.Emotions) > 0 && len(emotions) == 0 {
		return nil
	}

	return lo.Filter(memories, func(m *entities.Memory, _ int) bool {
		c := m.Content()
		if theme != "" && string(c.Theme) != theme {
			return false
		}
		if len(emotions) > 0 && !emotions[c.Emotion] {
			return false
		}
		date := c.Date.String()
		if q.From != "" && date < q.From {
			return false
		}
		if q.To != "" && date > q.To {
			return false
		}
		return true
	})
}

func sortNewestFirst(memories []*entities.Memory) {
	sort.SliceStable(memories, func(i, j int) bool { return memories[i].NewerThan(memories[j]) })
}

// enrich attaches owner names and per-request like data
func (s *MemoryService) enrich(ctx context.Context, requester *entities.Identity, memories []*entities.Memory) ([]MemoryView, error) {
	views := make([]MemoryView, 0, len(memories))
	if len(memories) == 0 {
		return views, nil
	}

	ids := lo.Map(memories, func(m *entities.Memory, _ int) string { return m.ID() })
	summaries, err := s.store.Reactions().Summaries(ctx, ids, requester.UserID)
	if err != nil {
		return nil, storeError("summarize reactions", err)
	}

	owners := lo.Uniq(lo.Map(memories, func(m *entities.Memory, _ int) string { return m.OwnerID() }))
	names, err := s.resolveUsernames(ctx, requester, owners)
	if err != nil {
		return nil, storeError("resolve usernames", err)
	}

	for _, m := range memories {
		views = append(views, newMemoryView(m, names[m.OwnerID()], summaries[m.ID()]))
	}
	return views, nil
}

func usernameKey(id string) string { return "username:" + id }

// resolveUsernames serves owner names from the cache and loads the rest
func (s *MemoryService) resolveUsernames(ctx context.Context, requester *entities.Identity, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	var missing []string
	for _, id := range ids {
		if id == requester.UserID && requester.Username != "" {
			names[id] = requester.Username
			continue
		}
		if s.usernames != nil {
			if v, ok := s.usernames.Get(ctx, usernameKey(id)); ok {
				if name, ok := v.(string); ok {
					names[id] = name
					continue
				}
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	loaded, err := s.store.Users().GetUsernames(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range loaded {
		names[id] = name
		if s.usernames != nil {
			_ = s.usernames.Set(ctx, usernameKey(id), name, usernameTTL)
		}
	}
	return names, nil
}

func memoryInput(f commands.MemoryFields) validators.MemoryInput {
	return validators.MemoryInput{
		Title:       f.Title,
		Description: f.Description,
		Theme:       f.Theme,
		Emotion:     f.Emotion,
		Date:        f.Date,
		Privacy:     f.Privacy,
		Images:      f.Images,
	}
}

// Create records a new memory owned by the requester
func (s *MemoryService) Create(ctx context.Context, requester *entities.Identity, cmd commands.CreateMemoryCommand) (_ *MemoryView, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.create", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	content, err := s.validator.BuildContent(memoryInput(cmd.MemoryFields), false)
	if err != nil {
		return nil, err
	}
	coords, err := s.validator.BuildCoordinates(cmd.Longitude, cmd.Latitude)
	if err != nil {
		return nil, err
	}
	memory, err := entities.NewMemory(requester.UserID, content, coords, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Memories().Create(ctx, memory); err != nil {
		if errors.Is(err, ports.ErrReferenceMissing) {
			return nil, pkgerrors.NewUnauthorizedError("account no longer exists")
		}
		return nil, storeError("create memory", err)
	}

	s.logger.Debug("Memory created", zap.String("memory_id", memory.ID()), zap.String("owner_id", requester.UserID))
	s.publishFrom(ctx, memory)

	view := newMemoryView(memory, requester.Username, ports.ReactionSummary{})
	return &view, nil
}

// loadAuthorized fetches a memory and applies the policy check for op.
// Every denial is reported as NotFound; the reason is only logged.
func (s *MemoryService) loadAuthorized(ctx context.Context, requester *entities.Identity, id, op string, allowed func(policy.Capabilities) bool) (*entities.Memory, error) {
	memory, err := s.store.Memories().GetByID(ctx, id)
	if err != nil && !isNotFound(err) {
		return nil, storeError(op, err)
	}
	decision := policy.Evaluate(requester.UserID, memory)
	if !allowed(decision.Capabilities) {
		s.logger.Info("Memory access denied",
			zap.String("operation", op),
			zap.String("memory_id", id),
			zap.String("user_id", requester.UserID),
			zap.String("reason", string(decision.Reason)))
		return nil, memoryNotFound()
	}
	return memory, nil
}

func canWrite(c policy.Capabilities) bool { return c.CanWrite }
func canReact(c policy.Capabilities) bool { return c.CanReact }

// Update revises the content of an owned memory. The location never changes.
func (s *MemoryService) Update(ctx context.Context, requester *entities.Identity, cmd commands.UpdateMemoryCommand) (_ *MemoryView, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.update", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	memory, err := s.loadAuthorized(ctx, requester, cmd.MemoryID, "update", canWrite)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(cmd); err != nil {
		return nil, err
	}

	input := memoryInput(cmd.MemoryFields)
	if strings.TrimSpace(input.Privacy) == "" {
		input.Privacy = string(memory.Privacy())
	}
	content, err := s.validator.BuildContent(input, false)
	if err != nil {
		return nil, err
	}
	if err := memory.Revise(content, s.now()); err != nil {
		return nil, err
	}

	if err := s.store.Memories().Update(ctx, memory); err != nil {
		if isNotFound(err) {
			return nil, memoryNotFound()
		}
		return nil, storeError("update memory", err)
	}
	s.publishFrom(ctx, memory)

	summaries, err := s.store.Reactions().Summaries(ctx, []string{memory.ID()}, requester.UserID)
	if err != nil {
		return nil, storeError("summarize reactions", err)
	}
	view := newMemoryView(memory, requester.Username, summaries[memory.ID()])
	return &view, nil
}

// Delete removes an owned memory together with all of its likes
func (s *MemoryService) Delete(ctx context.Context, requester *entities.Identity, id string) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.delete", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return err
	}
	if _, err := s.loadAuthorized(ctx, requester, id, "delete", canWrite); err != nil {
		return err
	}

	if err := s.store.Memories().DeleteWithReactions(ctx, id, requester.UserID); err != nil {
		if isNotFound(err) {
			return memoryNotFound()
		}
		return storeError("delete memory", err)
	}

	s.logger.Debug("Memory deleted", zap.String("memory_id", id), zap.String("owner_id", requester.UserID))
	s.publish(ctx, events.NewMemoryDeleted(id, requester.UserID, s.now()))
	return nil
}

// ToggleReaction likes a readable memory, or unlikes it when the requester's
// like already exists. The store's uniqueness check decides which, so racing
// calls from one user each flip the state exactly once.
func (s *MemoryService) ToggleReaction(ctx context.Context, requester *entities.Identity, id string) (_ *ToggleResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.toggle_reaction", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	if _, err := s.loadAuthorized(ctx, requester, id, "toggle_reaction", canReact); err != nil {
		return nil, err
	}

	liked, err := s.flipReaction(ctx, id, requester.UserID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.Reactions().Count(ctx, id)
	if err != nil {
		return nil, storeError("count reactions", err)
	}

	s.publish(ctx, events.NewReactionToggled(id, requester.UserID, liked, count, s.now()))
	return &ToggleResult{Liked: liked, LikeCount: count}, nil
}

// flipReaction alternates insert and delete until one of them changes the
// store. A delete that finds nothing means a racing call from the same user
// already unliked, so this call must like again to count as its own flip.
func (s *MemoryService) flipReaction(ctx context.Context, memoryID, userID string) (bool, error) {
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		err := s.store.Reactions().Add(ctx, entities.NewReaction(memoryID, userID, s.now()))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, ports.ErrReferenceMissing):
			return false, memoryNotFound()
		case !errors.Is(err, ports.ErrAlreadyExists):
			return false, storeError("add reaction", err)
		}

		removed, err := s.store.Reactions().Remove(ctx, memoryID, userID)
		if err != nil {
			return false, storeError("remove reaction", err)
		}
		if removed {
			return false, nil
		}
		s.logger.Debug("Reaction toggle lost a race, retrying",
			zap.String("memory_id", memoryID),
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1))
	}
	return false, pkgerrors.NewConflictError("reaction is changing too fast, try again").WithCode("TOGGLE_CONTENDED")
}

// ExportAll returns every memory the requester owns, regardless of privacy
func (s *MemoryService) ExportAll(ctx context.Context, requester *entities.Identity) (_ *ExportEnvelope, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.export", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByID(ctx, requester.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("user")
		}
		return nil, storeError("export", err)
	}
	memories, err := s.store.Memories().ListByOwner(ctx, requester.UserID)
	if err != nil {
		return nil, storeError("export", err)
	}
	sortNewestFirst(memories)

	summaries := map[string]ports.ReactionSummary{}
	if len(memories) > 0 {
		ids := lo.Map(memories, func(m *entities.Memory, _ int) string { return m.ID() })
		if summaries, err = s.store.Reactions().Summaries(ctx, ids, ""); err != nil {
			return nil, storeError("export", err)
		}
	}

	exported := lo.Map(memories, func(m *entities.Memory, _ int) ExportedMemory {
		v := newMemoryView(m, "", summaries[m.ID()])
		return ExportedMemory{
			ID: v.ID, Title: v.Title, Theme: v.Theme, Emotion: v.Emotion, Description: v.Description,
			Longitude: v.Longitude, Latitude: v.Latitude, Date: v.Date, Privacy: v.Privacy, Images: v.Images,
			CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt, LikeCount: v.LikeCount,
		}
	})

	return &ExportEnvelope{
		Version:    ExportVersion,
		ExportTime: utils.FormatTimestamp(s.now()),
		Username:   user.Username(),
		UserInfo: ExportUserInfo{
			Email:        user.Email(),
			RegisteredAt: utils.FormatTimestamp(user.RegisteredAt()),
			LastLogin:    utils.FormatOptionalTimestamp(user.LastLogin()),
		},
		Memories:    exported,
		StorageInfo: s.store.Info(),
	}, nil
}

// ImportAll validates every record on its own, skips the invalid ones and
// atomically replaces the requester's memories with the rest
func (s *MemoryService) ImportAll(ctx context.Context, requester *entities.Identity, cmd commands.ImportCommand) (_ *ImportResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.import", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(cmd.Data.Memories)
	var records []json.RawMessage
	if len(raw) == 0 || raw[0] != '[' || json.Unmarshal(raw, &records) != nil {
		return nil, pkgerrors.NewValidationError("data.memories must be an array").WithCode("INVALID_IMPORT")
	}
	limit := s.validator.Config().MaxImportRecords
	if limit > 0 && len(records) > limit {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("import holds %d records, at most %d are allowed", len(records), limit))
	}

	now := s.now()
	memories := make([]*entities.Memory, 0, len(records))
	skipped := 0
	for i, record := range records {
		memory, err := s.decodeRecord(requester.UserID, record, now)
		if err != nil {
			skipped++
			s.logger.Debug("Skipping import record", zap.Int("index", i), zap.Error(err))
			continue
		}
		memories = append(memories, memory)
	}

	if err := s.store.Memories().ReplaceForOwner(ctx, requester.UserID, memories); err != nil {
		if errors.Is(err, ports.ErrReferenceMissing) {
			return nil, pkgerrors.NewUnauthorizedError("account no longer exists")
		}
		return nil, storeError("import", err)
	}

	for _, m := range memories {
		m.MarkEventsAsCommitted()
	}
	s.logger.Info("Memories imported",
		zap.String("user_id", requester.UserID),
		zap.Int("count", len(memories)),
		zap.Int("skipped", skipped))
	s.publish(ctx, events.NewMemoriesImported(requester.UserID, len(memories), skipped, now))

	return &ImportResult{Count: len(memories), Skipped: skipped}, nil
}

func (s *MemoryService) decodeRecord(ownerID string, raw json.RawMessage, now time.Time) (*entities.Memory, error) {
	var rec commands.ImportRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	content, err := s.validator.BuildContent(validators.MemoryInput{
		Title:       rec.Title,
		Description: rec.Description,
		Theme:       rec.Theme,
		Emotion:     rec.Emotion,
		Date:        rec.Date,
		Privacy:     rec.Privacy,
		Images:      rec.Images,
	}, true)
	if err != nil {
		return nil, err
	}

	lng, lngErr := parseCoordinate(rec.Longitude)
	lat, latErr := parseCoordinate(rec.Latitude)
	if lngErr != nil || latErr != nil {
		return nil, pkgerrors.NewValidationError("longitude and latitude must be numbers")
	}
	coords, err := s.validator.BuildCoordinates(lng, lat)
	if err != nil {
		return nil, err
	}

	var createdAt time.Time
	if rec.CreatedAt != "" {
		if t, err := utils.ParseTimestamp(rec.CreatedAt); err == nil {
			createdAt = t
		}
	}
	return entities.NewImportedMemory(ownerID, content, coords, createdAt, now)
}

// parseCoordinate accepts a JSON number or a numeric string. Absent or null
// yields nil.
func parseCoordinate(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Stats aggregates the requester's own memories
func (s *MemoryService) Stats(ctx context.Context, requester *entities.Identity) (_ *Stats, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "memory.stats", start, err) }()

	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	memories, err := s.store.Memories().ListByOwner(ctx, requester.UserID)
	if err != nil {
		return nil, storeError("stats", err)
	}

	return &Stats{
		TotalMemories: len(memories),
		Themes:        lo.CountValuesBy(memories, func(m *entities.Memory) string { return string(m.Content().Theme) }),
		Emotions:      lo.CountValuesBy(memories, func(m *entities.Memory) string { return string(m.Content().Emotion) }),
		MonthlyCount:  lo.CountValuesBy(memories, func(m *entities.Memory) string { return m.Date().Month() }),
		Storage:       s.store.Info(),
	}, nil
}
