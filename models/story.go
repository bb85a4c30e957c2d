package models

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPublic  = "public"
	StatusPrivate = "private"
)

var (
	ErrTitleRequired = errors.New("story title is required")
	ErrBodyRequired  = errors.New("story body is required")
	ErrBadStatus     = errors.New("story status must be public or private")
)

// Story is one piece of user-authored content. UserID is set from the
// session identity at creation and never appears in an update patch.
type Story struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"not null"`
	Body      string    `gorm:"type:text;not null"`
	Status    string    `gorm:"default:'public';not null"`
	UserID    uint      `gorm:"index;not null"`
	User      User      `gorm:"foreignKey:UserID"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (s *Story) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(s.Body) == "" {
		return ErrBodyRequired
	}
	if s.Status != StatusPublic && s.Status != StatusPrivate {
		return ErrBadStatus
	}
	return nil
}
