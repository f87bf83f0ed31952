package todo

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("todo not found")
	ErrValidation = errors.New("invalid todo")
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
	MinPriority          = 1
	MaxPriority          = 5
)

type Todo struct {
	ID          int        `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Done        bool       `json:"done" db:"done"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
	Description *string    `json:"description,omitempty" db:"description"`
	Category    *string    `json:"category,omitempty" db:"category"`
	Priority    int        `json:"priority" db:"priority"`
}

// Normalize applies defaults and checks field constraints.
func (t *Todo) Normalize() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Priority == 0 {
		t.Priority = MinPriority
	}

	switch {
	case t.Title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case len([]rune(t.Title)) > MaxTitleLength:
		return fmt.Errorf("%w: title must be at most %d characters", ErrValidation, MaxTitleLength)
	case t.Description != nil && len([]rune(*t.Description)) > MaxDescriptionLength:
		return fmt.Errorf("%w: description must be at most %d characters", ErrValidation, MaxDescriptionLength)
	case t.Priority < MinPriority || t.Priority > MaxPriority:
		return fmt.Errorf("%w: priority must be between %d and %d", ErrValidation, MinPriority, MaxPriority)
	}
	return nil
}
