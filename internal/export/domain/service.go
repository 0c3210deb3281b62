package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
)

// Service is the transition engine's public surface, consumed by each
// organization's thin HTTP adapter.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Export, error)
	Update(ctx context.Context, id snowflake.ID, actor Actor, fields UpdateFields) (*Export, error)
	Apply(ctx context.Context, id snowflake.ID, action catalog.Action, actor Actor, payload Payload) (*TransitionResult, error)
	Get(ctx context.Context, id snowflake.ID) (*Export, error)
	List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]*Export, *pagination.PageInfo, error)
	// AvailableActions computes the UI-facing action set for the caller on
	// this export, including the ownership restriction on exporter actions.
	AvailableActions(ctx context.Context, id snowflake.ID, actor Actor) ([]catalog.Action, error)
}

// Nudger wakes the side-effect dispatcher after a commit. Implementations
// must never block the caller.
type Nudger interface {
	Nudge()
}
