package valueobjects

import (
	"fmt"
	"strings"

	pkgerrors "citymemory/pkg/errors"
)

// Theme is the fixed category a memory is filed under
type Theme string

const (
	ThemeCity    Theme = "city"
	ThemeNature  Theme = "nature"
	ThemeFood    Theme = "food"
	ThemeTravel  Theme = "travel"
	ThemeCulture Theme = "culture"
	ThemeStudy   Theme = "study"
	ThemeWork    Theme = "work"
	ThemeFriends Theme = "friends"
	ThemeFamily  Theme = "family"
	ThemeOther   Theme = "other"
)

// Themes lists every accepted theme in display order
var Themes = []Theme{
	ThemeCity, ThemeNature, ThemeFood, ThemeTravel, ThemeCulture,
	ThemeStudy, ThemeWork, ThemeFriends, ThemeFamily, ThemeOther,
}

// Emotion is the mood attached to a memory
type Emotion string

const (
	EmotionHappy   Emotion = "happy"
	EmotionSad     Emotion = "sad"
	EmotionAngry   Emotion = "angry"
	EmotionLove    Emotion = "love"
	EmotionCalm    Emotion = "calm"
	EmotionExcited Emotion = "excited"
)

// Emotions lists every accepted emotion in display order
var Emotions = []Emotion{
	EmotionHappy, EmotionSad, EmotionAngry, EmotionLove, EmotionCalm, EmotionExcited,
}

// legacyEmotions maps the mood labels written by the first web client
var legacyEmotions = map[string]Emotion{
	"开心": EmotionHappy,
	"难过": EmotionSad,
	"生气": EmotionAngry,
	"喜欢": EmotionLove,
	"平静": EmotionCalm,
	"兴奋": EmotionExcited,
}

// Privacy controls who besides the owner can read a memory
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// ParseTheme validates a theme value
func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return "", pkgerrors.NewValidationError("theme is required")
	}
	for _, known := range Themes {
		if t == known {
			return t, nil
		}
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown theme '%s'", s))
}

// ParseEmotion validates an emotion value
func ParseEmotion(s string) (Emotion, error) {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if e == "" {
		return "", pkgerrors.NewValidationError("emotion is required")
	}
	for _, known := range Emotions {
		if e == known {
			return e, nil
		}
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown emotion '%s'", s))
}

// ParseLegacyEmotion accepts both current values and the legacy labels
// found in older export files.
func ParseLegacyEmotion(s string) (Emotion, error) {
	if e, ok := legacyEmotions[strings.TrimSpace(s)]; ok {
		return e, nil
	}
	return ParseEmotion(s)
}

// ParsePrivacy validates a privacy value; empty means public
func ParsePrivacy(s string) (Privacy, error) {
	switch Privacy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PrivacyPublic:
		return PrivacyPublic, nil
	case PrivacyPrivate:
		return PrivacyPrivate, nil
	default:
		return "", pkgerrors.NewValidationError(fmt.Sprintf("privacy must be 'public' or 'private', got '%s'", s))
	}
}

// IsPublic reports whether anyone may read the memory
func (p Privacy) IsPublic() bool {
	return p == PrivacyPublic
}
