package models

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultTimezone is assigned to profiles created without one.
const DefaultTimezone = "America/New_York"

// Profile holds a user's preferences and the facts the assistant has learned
// about them. There is exactly one profile per user.
type Profile struct {
	gorm.Model
	UserID            string         `gorm:"uniqueIndex;not null"`
	Name              string         `gorm:"default:null"`
	Email             string         `gorm:"default:null"`
	Location          string         `gorm:"default:null"`
	Timezone          string         `gorm:"default:'America/New_York'"`
	DietaryPreference string         `gorm:"default:null"`
	LearningLevel     string         `gorm:"default:null"`
	PreferredVoice    string         `gorm:"default:null"`
	Interests         pq.StringArray `gorm:"type:text[]"`
}

// ProfileField names a clearable profile column.
type ProfileField string

// Clearable profile fields.
const (
	FieldName              ProfileField = "name"
	FieldEmail             ProfileField = "email"
	FieldLocation          ProfileField = "location"
	FieldDietaryPreference ProfileField = "dietary_preference"
	FieldLearningLevel     ProfileField = "learning_level"
	FieldPreferredVoice    ProfileField = "preferred_voice"
	FieldInterests         ProfileField = "interests"
)

// IsClearable reports whether the field may be reset by the user.
func (f ProfileField) IsClearable() bool {
	switch f {
	case FieldName, FieldEmail, FieldLocation, FieldDietaryPreference,
		FieldLearningLevel, FieldPreferredVoice, FieldInterests:
		return true
	default:
		return false
	}
}

// TimeLocation returns the profile's time zone, falling back to the default when
// the stored name is unknown.
func (p *Profile) TimeLocation() *time.Location {
	name := p.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HasInterest reports whether the interest is already recorded.
func (p *Profile) HasInterest(interest string) bool {
	for _, i := range p.Interests {
		if i == interest {
			return true
		}
	}
	return false
}

// BeforeSave is a GORM hook that runs before creating or saving a Profile.
func (p *Profile) BeforeSave(tx *gorm.DB) (err error) {
	if p.UserID == "" {
		return errors.New("profile must belong to a user")
	}
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return errors.New("invalid timezone provided")
	}
	return nil
}
