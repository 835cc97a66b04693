package ports

import (
	"context"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
)

type Reporter interface {
	Report(ctx context.Context, doc *domain.Document) error
}
