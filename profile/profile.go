// Package profile holds the character and user descriptors the pipeline
// personalizes against.
package profile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Companion types with recognized semantics elsewhere in the pipeline.
const (
	TypeRomantic  = "romantic"
	TypePartner   = "partner"
	TypeFriend    = "friend"
	TypePlatonic  = "platonic"
	TypeCompanion = "companion"
)

// Character describes one roleplay character.
type Character struct {
	Name          string   `yaml:"name" json:"name"`
	CompanionType string   `yaml:"companion_type" json:"companion_type"`
	Gender        string   `yaml:"gender,omitempty" json:"gender,omitempty"`
	Species       string   `yaml:"species,omitempty" json:"species,omitempty"`
	Age           string   `yaml:"age,omitempty" json:"age,omitempty"`
	Role          string   `yaml:"role,omitempty" json:"role,omitempty"`
	Persona       string   `yaml:"persona,omitempty" json:"persona,omitempty"`
	Backstory     string   `yaml:"backstory,omitempty" json:"backstory,omitempty"`
	Greeting      string   `yaml:"greeting,omitempty" json:"greeting,omitempty"`
	Interests     []string `yaml:"interests,omitempty" json:"interests,omitempty"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	SelectedTags  []string `yaml:"selected_tags,omitempty" json:"selected_tags,omitempty"`
	Boundaries    []string `yaml:"boundaries,omitempty" json:"boundaries,omitempty"`
	AvoidWords    []string `yaml:"avoid_words,omitempty" json:"avoid_words,omitempty"`

	// Wellness characters get conservative generation parameters and
	// reflective prompting.
	Wellness bool `yaml:"wellness,omitempty" json:"wellness,omitempty"`
}

// Validate checks the minimum fields the pipeline relies on.
func (c *Character) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("profile: character name required")
	}
	if strings.TrimSpace(c.CompanionType) == "" {
		return fmt.Errorf("profile: character %q: companion_type required", c.Name)
	}
	return nil
}

// Platonic reports whether the character's companion type excludes
// romantic content.
func (c *Character) Platonic() bool {
	switch c.CompanionType {
	case TypeFriend, TypePlatonic, TypeCompanion:
		return true
	}
	return false
}

// Describe builds a short identity sentence from the optional
// descriptor fields. Empty when none are set.
func (c *Character) Describe() string {
	var parts []string
	if c.Age != "" {
		parts = append(parts, c.Age+"-year-old")
	}
	if c.Gender != "" {
		parts = append(parts, c.Gender)
	}
	if c.Species != "" {
		parts = append(parts, c.Species)
	}
	if c.Role != "" {
		parts = append(parts, c.Role)
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%s is a %s.", c.Name, strings.Join(parts, " "))
}

// SelectedTagSet returns the selected tags as a lookup set.
func (c *Character) SelectedTagSet() map[string]bool {
	set := make(map[string]bool, len(c.SelectedTags))
	for _, t := range c.SelectedTags {
		set[t] = true
	}
	return set
}

// User describes the human the character is talking to.
type User struct {
	Name        string   `yaml:"name" json:"name"`
	Timezone    string   `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Gender      string   `yaml:"gender,omitempty" json:"gender,omitempty"`
	Species     string   `yaml:"species,omitempty" json:"species,omitempty"`
	Backstory   string   `yaml:"backstory,omitempty" json:"backstory,omitempty"`
	Preferences []string `yaml:"preferences,omitempty" json:"preferences,omitempty"`
	LifeEvents  []string `yaml:"life_events,omitempty" json:"life_events,omitempty"`

	// CommunicationBoundaries record how the user wants to be spoken to.
	CommunicationBoundaries []string `yaml:"communication_boundaries,omitempty" json:"communication_boundaries,omitempty"`
}

// Location resolves the user's timezone, falling back to UTC when unset
// or unparseable.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DisplayName returns the user's name with a generic fallback.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.Name) == "" {
		return "friend"
	}
	return u.Name
}

// LoadCharacter reads a character profile from a YAML file.
func LoadCharacter(path string) (*Character, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}
	var c Character
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("profile: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadUser reads a user profile from a YAML file.
func LoadUser(path string) (*User, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}
	var u User
	if err := yaml.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("profile: parse %s: %w", path, err)
	}
	return &u, nil
}
