package validators

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"citymemory/domain/config"
	"citymemory/domain/core/entities"
	"citymemory/domain/core/valueobjects"
	"citymemory/pkg/errors"
)

// MemoryInput is the raw, untrusted form of a memory's editable fields
type MemoryInput struct {
	Title       string
	Description string
	Theme       string
	Emotion     string
	Date        string
	Privacy     string
	Images      []string
}

// MemoryValidator turns raw input into validated domain values
type MemoryValidator struct {
	cfg             *config.DomainConfig
	usernamePattern *regexp.Regexp
}

// NewMemoryValidator creates a validator bound to the given business rules
func NewMemoryValidator(cfg *config.DomainConfig) *MemoryValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &MemoryValidator{
		cfg:             cfg,
		usernamePattern: regexp.MustCompile(`^[\p{L}\p{N}_.\-]+$`),
	}
}

// Config returns the rules the validator enforces
func (v *MemoryValidator) Config() *config.DomainConfig {
	return v.cfg
}

// BuildContent validates every editable field. When legacy is set, emotion
// labels from older export files are accepted as well. All failing fields are
// reported together in the error details.
func (v *MemoryValidator) BuildContent(in MemoryInput, legacy bool) (entities.Content, error) {
	fields := newFieldErrors()

	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		fields.add("title", "title is required")
	case utf8.RuneCountInString(title) > v.cfg.MaxTitleLength:
		fields.add("title", fmt.Sprintf("title cannot exceed %d characters", v.cfg.MaxTitleLength))
	}

	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > v.cfg.MaxDescriptionLength {
		fields.add("description", fmt.Sprintf("description cannot exceed %d characters", v.cfg.MaxDescriptionLength))
	}

	theme, err := valueobjects.ParseTheme(in.Theme)
	fields.addErr("theme", err)

	parseEmotion := valueobjects.ParseEmotion
	if legacy {
		parseEmotion = valueobjects.ParseLegacyEmotion
	}
	emotion, err := parseEmotion(in.Emotion)
	fields.addErr("emotion", err)

	date, err := valueobjects.ParseCalendarDate(in.Date)
	fields.addErr("date", err)

	privacy, err := valueobjects.ParsePrivacy(in.Privacy)
	fields.addErr("privacy", err)

	images, err := valueobjects.NewImages(in.Images, v.cfg.MaxImages, v.cfg.MaxImageBytes)
	fields.addErr("images", err)

	if err := fields.err(); err != nil {
		return entities.Content{}, err
	}
	return entities.Content{
		Title:       title,
		Description: description,
		Theme:       theme,
		Emotion:     emotion,
		Date:        date,
		Privacy:     privacy,
		Images:      images,
	}, nil
}

// BuildCoordinates validates a location. Both axes must be present.
func (v *MemoryValidator) BuildCoordinates(longitude, latitude *float64) (valueobjects.Coordinates, error) {
	if longitude == nil || latitude == nil {
		return valueobjects.Coordinates{}, errors.NewValidationError("location with longitude and latitude is required").
			WithDetails(map[string]interface{}{"field": "location"})
	}
	return valueobjects.NewCoordinates(*longitude, *latitude, v.cfg.CoordinatePrecision)
}

// ValidateCredentials checks the shape of a username and password pair
func (v *MemoryValidator) ValidateCredentials(username, password string) error {
	fields := newFieldErrors()

	username = strings.TrimSpace(username)
	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		fields.add("username", "username is required")
	case n < v.cfg.MinUsernameLength || n > v.cfg.MaxUsernameLength:
		fields.add("username", fmt.Sprintf("username must be %d to %d characters", v.cfg.MinUsernameLength, v.cfg.MaxUsernameLength))
	case !v.usernamePattern.MatchString(username):
		fields.add("username", "username may only contain letters, digits, '_', '.' and '-'")
	}

	switch {
	case password == "":
		fields.add("password", "password is required")
	case utf8.RuneCountInString(password) < v.cfg.MinPasswordLength:
		fields.add("password", fmt.Sprintf("password must be at least %d characters", v.cfg.MinPasswordLength))
	case len(password) > v.cfg.MaxPasswordBytes:
		fields.add("password", fmt.Sprintf("password must be at most %d bytes", v.cfg.MaxPasswordBytes))
	}

	return fields.err()
}

type fieldErrors struct {
	order    []string
	messages map[string]string
}

func newFieldErrors() *fieldErrors {
	return &fieldErrors{messages: map[string]string{}}
}

func (f *fieldErrors) add(field, message string) {
	if _, exists := f.messages[field]; exists {
		return
	}
	f.order = append(f.order, field)
	f.messages[field] = message
}

func (f *fieldErrors) addErr(field string, err error) {
	if err == nil {
		return
	}
	if appErr := errors.GetAppError(err); appErr != nil {
		f.add(field, appErr.Message)
		return
	}
	f.add(field, err.Error())
}

func (f *fieldErrors) err() error {
	if len(f.order) == 0 {
		return nil
	}
	parts := make([]string, 0, len(f.order))
	details := make(map[string]interface{}, len(f.order))
	for _, field := range f.order {
		parts = append(parts, f.messages[field])
		details[field] = f.messages[field]
	}
	return errors.NewValidationError(strings.Join(parts, "; ")).WithDetails(details)
}
