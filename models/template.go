package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/leebenson/conform"
)

// Template is a reusable message body owned by a landlord or vendor.
// UsageCount only ever grows.
type Template struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title      string    `gorm:"not null" json:"title" conform:"trim"`
	Body       string    `gorm:"not null" json:"body"`
	Category   string    `gorm:"index" json:"category" conform:"trim,lower"`
	Favorite   bool      `json:"favorite"`
	UsageCount int64     `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type TemplateRequest struct {
	Title    string `json:"title" binding:"required,max=120" conform:"trim"`
	Body     string `json:"body" binding:"required,max=4000"`
	Category string `json:"category" binding:"max=60" conform:"trim,lower"`
	Favorite bool   `json:"favorite"`
}

// Sanitize trims user supplied text fields in place.
func (r *TemplateRequest) Sanitize() error {
	return conform.Strings(r)
}

// Apply copies the request onto t, leaving ownership and counters alone.
func (r *TemplateRequest) Apply(t *Template) {
	t.Title = r.Title
	t.Body = r.Body
	t.Category = r.Category
	t.Favorite = r.Favorite
}
