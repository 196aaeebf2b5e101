// Package profile stores player skill profiles keyed by username.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DoyleJ11/rally-backend/internal/engine"
	"golang.org/x/text/unicode/norm"
)

const (
	MinProficiency    = -100
	MaxProficiency    = 100
	maxUsernameLength = 32
)

var (
	ErrNotFound        = errors.New("profile not found")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidSkill    = errors.New("invalid skill")
)

type Profile struct {
	Username  string         `json:"username"`
	Skills    map[string]int `json:"skills"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

type Store interface {
	// Load returns ErrNotFound when username has no stored profile.
	Load(ctx context.Context, username string) (Profile, error)
	Save(ctx context.Context, p Profile) error
}

// NormalizeUsername trims and NFC-normalizes a username so that visually
// identical names map to one key.
func NormalizeUsername(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func ValidateUsername(name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxUsernameLength {
		return ErrInvalidUsername
	}
	if strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return ErrInvalidUsername
	}
	return nil
}

// Validate checks the username and that every skill is known and within
// [MinProficiency, MaxProficiency].
func Validate(p Profile) error {
	if err := ValidateUsername(p.Username); err != nil {
		return err
	}
	for skill, level := range p.Skills {
		if !engine.IsSkill(skill) {
			return fmt.Errorf("%w: unknown skill %q", ErrInvalidSkill, skill)
		}
		if level < MinProficiency || level > MaxProficiency {
			return fmt.Errorf("%w: %s proficiency %d outside [%d, %d]", ErrInvalidSkill, skill, level, MinProficiency, MaxProficiency)
		}
	}
	return nil
}

// Default is the profile served for unknown usernames: every skill at 0.
func Default(username string) Profile {
	skills := make(map[string]int, len(engine.Skills))
	for _, s := range engine.Skills {
		skills[s] = 0
	}
	return Profile{Username: username, Skills: skills}
}

func cloneSkills(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
