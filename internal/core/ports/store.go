package ports

import (
	"context"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
)

// StateStore persists the handoff document between workflow phases.
type StateStore interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
	Path() string
}
