package entity

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a school. Every notification belongs to exactly one tenant and
// its recipient set never crosses tenant boundaries.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Validate checks the tenant fields against domain rules.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return nil
}
