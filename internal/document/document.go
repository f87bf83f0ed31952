package document

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrValidation = errors.New("invalid document")
)

type Document struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Content   string             `json:"content" bson:"content"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	Metadata  map[string]any     `json:"metadata" bson:"metadata"`
	Tags      []string           `json:"tags" bson:"tags"`
}

// Validate checks required fields and fills empty collections.
func (d *Document) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if d.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return nil
}
