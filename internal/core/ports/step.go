package ports

import (
	"context"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
)

// Step is one provisioning action. Provision creates the external
// resources and writes their identifiers into the document; Destroy is
// the compensating action, tolerant of resources that no longer exist.
//
// Requires and Produces declare the document fields a step consumes and
// fills in. The sequencer checks Requires against the document before
// invoking Provision and refuses to re-run a step whose Produces fields
// are already recorded.
type Step interface {
	ID() domain.StepID
	Describe() string
	Requires() []domain.Field
	Produces() []domain.Field
	Provision(ctx context.Context, doc *domain.Document) error
	Destroy(ctx context.Context, doc *domain.Document) error
}
