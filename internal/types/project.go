package types

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project groups sources under a shared topic.
type Project struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// Name is the human-readable label, 1-200 characters.
	Name string `bson:"name" json:"name"`

	// Domain is a free-form topic tag (e.g. "fintech", "energy").
	Domain string `bson:"domain" json:"domain"`

	// Keywords are the target terms this project tracks.
	Keywords []string `bson:"keywords,omitempty" json:"keywords,omitempty"`

	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// Icon is a display glyph shown in listings.
	Icon string `bson:"icon" json:"icon"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DefaultProjectIcon is applied when a project is created without one.
const DefaultProjectIcon = "📊"

// NewProject builds a project with the default icon and fresh timestamps.
func NewProject(name, domain string) *Project {
	now := time.Now().UTC()
	return &Project{
		Name:      name,
		Domain:    domain,
		Icon:      DefaultProjectIcon,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the project's fields.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Msg: "must not be empty"}
	}
	if len(p.Name) > 200 {
		return &ValidationError{Field: "name", Msg: "must be at most 200 characters"}
	}
	return nil
}
