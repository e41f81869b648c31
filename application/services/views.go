package services

import (
	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/pkg/utils"
)

// MemoryView is a memory enriched for one requester
type MemoryView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Theme       string   `json:"theme"`
	Emotion     string   `json:"emotion"`
	Description string   `json:"description"`
	Longitude   float64  `json:"longitude"`
	Latitude    float64  `json:"latitude"`
	Date        string   `json:"date"`
	Privacy     string   `json:"privacy"`
	Images      []string `json:"images"`
	Username    string   `json:"username"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	LikeCount   int      `json:"likeCount"`
	Liked       bool     `json:"liked"`
}

func newMemoryView(m *entities.Memory, username string, summary ports.ReactionSummary) MemoryView {
	c := m.Content()
	return MemoryView{
		ID:          m.ID(),
		Title:       c.Title,
		Theme:       string(c.Theme),
		Emotion:     string(c.Emotion),
		Description: c.Description,
		Longitude:   m.Coordinates().Longitude(),
		Latitude:    m.Coordinates().Latitude(),
		Date:        c.Date.String(),
		Privacy:     string(c.Privacy),
		Images:      c.Images.Items(),
		Username:    username,
		CreatedAt:   utils.FormatTimestamp(m.CreatedAt()),
		UpdatedAt:   utils.FormatTimestamp(m.UpdatedAt()),
		LikeCount:   summary.Count,
		Liked:       summary.LikedByRequester,
	}
}

// ToggleResult is the state after a like toggle
type ToggleResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// ExportedMemory is one owned memory in an export file
type ExportedMemory struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Theme       string   `json:"theme"`
	Emotion     string   `json:"emotion"`
	Description string   `json:"description"`
	Longitude   float64  `json:"longitude"`
	Latitude    float64  `json:"latitude"`
	Date        string   `json:"date"`
	Privacy     string   `json:"privacy"`
	Images      []string `json:"images"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	LikeCount   int      `json:"likeCount"`
}

// ExportUserInfo describes the exporting account
type ExportUserInfo struct {
	Email        string  `json:"email"`
	RegisteredAt string  `json:"registeredAt"`
	LastLogin    *string `json:"lastLogin"`
}

// ExportEnvelope is the full export file
type ExportEnvelope struct {
	Version     string            `json:"version"`
	ExportTime  string            `json:"exportTime"`
	Username    string            `json:"username"`
	UserInfo    ExportUserInfo    `json:"userInfo"`
	Memories    []ExportedMemory  `json:"memories"`
	StorageInfo ports.StorageInfo `json:"storageInfo"`
}

// ExportVersion is written into every export file
const ExportVersion = "6.0"

// ImportResult reports how many records were imported and how many were
// skipped as invalid
type ImportResult struct {
	Count   int `json:"count"`
	Skipped int `json:"skipped"`
}

// Stats aggregates the requester's own memories
type Stats struct {
	TotalMemories int               `json:"totalMemories"`
	Themes        map[string]int    `json:"themes"`
	Emotions      map[string]int    `json:"emotions"`
	MonthlyCount  map[string]int    `json:"monthlyCount"`
	Storage       ports.StorageInfo `json:"storage"`
}

// IdentityView is the public form of an account
type IdentityView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newIdentityView(i entities.Identity) IdentityView {
	return IdentityView{ID: i.UserID, Username: i.Username, Email: i.Email}
}

// LoginResult is a successful login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      IdentityView `json:"user"`
}
