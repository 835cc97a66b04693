package ports

import "context"

type Sequencer interface {
	Run(ctx context.Context) error
	Teardown(ctx context.Context) error
}
