package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/valueobjects"
)

// MemoryRepository stores memories in the memories table
type MemoryRepository struct {
	db *sql.DB
	d  Dialect
}

var _ ports.MemoryRepository = (*MemoryRepository)(nil)

const memoryColumns = `id, owner_id, title, theme, emotion, description, longitude, latitude, memory_date, privacy, images, created_at, updated_at`

const memoryOrder = ` ORDER BY memory_date DESC, created_at DESC`

// Create inserts a memory; an unknown owner yields ports.ErrReferenceMissing
func (r *MemoryRepository) Create(ctx context.Context, memory *entities.Memory) error {
	return classify("create memory", r.insert(ctx, r.db, memory))
}

func (r *MemoryRepository) insert(ctx context.Context, q queryer, m *entities.Memory) error {
	images, err := json.Marshal(m.Content().Images.Items())
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	c := m.Content()
	_, err = q.ExecContext(ctx, r.d.Rebind(`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID(), m.OwnerID(), c.Title, string(c.Theme), string(c.Emotion), c.Description,
		m.Coordinates().Longitude(), m.Coordinates().Latitude(),
		c.Date.String(), string(c.Privacy), string(images),
		m.CreatedAt().UTC(), m.UpdatedAt().UTC())
	return err
}

// GetByID retrieves a memory by id
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*entities.Memory, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`), id)
	m, err := scanMemory(row)
	return m, classify("get memory", err)
}

// Update overwrites the editable columns. Location and owner are never
// written.
func (r *MemoryRepository) Update(ctx context.Context, m *entities.Memory) error {
	images, err := json.Marshal(m.Content().Images.Items())
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	c := m.Content()
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`
UPDATE memories
SET title = ?, theme = ?, emotion = ?, description = ?, memory_date = ?, privacy = ?, images = ?, updated_at = ?
WHERE id = ? AND owner_id = ?`),
		c.Title, string(c.Theme), string(c.Emotion), c.Description, c.Date.String(), string(c.Privacy), string(images),
		m.UpdatedAt().UTC(), m.ID(), m.OwnerID())
	if err != nil {
		return classify("update memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update memory: %w", ports.ErrNotFound)
	}
	return nil
}

// ListPublic returns every public memory, newest first
func (r *MemoryRepository) ListPublic(ctx context.Context) ([]*entities.Memory, error) {
	return r.list(ctx, "list public memories", `SELECT `+memoryColumns+` FROM memories WHERE privacy = ?`+memoryOrder, string(valueobjects.PrivacyPublic))
}

// ListByOwner returns every memory of one owner, newest first
func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Memory, error) {
	return r.list(ctx, "list owner memories", `SELECT `+memoryColumns+` FROM memories WHERE owner_id = ?`+memoryOrder, ownerID)
}

func (r *MemoryRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]*entities.Memory, error) {
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*entities.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// DeleteWithReactions removes the memory and its likes in one transaction
func (r *MemoryRepository) DeleteWithReactions(ctx context.Context, id, ownerID string) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM reactions WHERE memory_id IN (SELECT id FROM memories WHERE id = ? AND owner_id = ?)`), id, ownerID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM memories WHERE id = ? AND owner_id = ?`), id, ownerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ports.ErrNotFound
		}
		return nil
	})
	return classify("delete memory", err)
}

// ReplaceForOwner swaps the owner's memory set in one transaction
func (r *MemoryRepository) ReplaceForOwner(ctx context.Context, ownerID string, memories []*entities.Memory) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM reactions WHERE user_id = ?`), ownerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM reactions WHERE memory_id IN (SELECT id FROM memories WHERE owner_id = ?)`), ownerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`DELETE FROM memories WHERE owner_id = ?`), ownerID); err != nil {
			return err
		}
		for _, m := range memories {
			if m.OwnerID() != ownerID {
				return fmt.Errorf("memory %s is not owned by %s", m.ID(), ownerID)
			}
			if err := r.insert(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("replace memories", err)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(s scanner) (*entities.Memory, error) {
	var (
		id, ownerID, title, theme, emotion, description string
		longitude, latitude                             float64
		date, privacy, imagesJSON                       string
		createdAt, updatedAt                            time.Time
	)
	if err := s.Scan(&id, &ownerID, &title, &theme, &emotion, &description,
		&longitude, &latitude, &date, &privacy, &imagesJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var images []string
	if imagesJSON != "" {
		if err := json.Unmarshal([]byte(imagesJSON), &images); err != nil {
			return nil, fmt.Errorf("decode images of memory %s: %w", id, err)
		}
	}

	return entities.ReconstructMemory(
		id,
		ownerID,
		entities.Content{
			Title:       title,
			Description: description,
			Theme:       valueobjects.Theme(theme),
			Emotion:     valueobjects.Emotion(emotion),
			Date:        valueobjects.ReconstructCalendarDate(date),
			Privacy:     valueobjects.Privacy(privacy),
			Images:      valueobjects.ReconstructImages(images),
		},
		valueobjects.ReconstructCoordinates(longitude, latitude),
		createdAt.UTC(),
		updatedAt.UTC(),
	), nil
}
