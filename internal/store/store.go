// Package store persists business profiles, pipeline items and their
// status history behind a backend-agnostic interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscope/internal/model"
)

// ErrNotFound marks a lookup for a record that does not exist.
var ErrNotFound = eris.New("store: not found")

// ProfileFilter specifies criteria for listing business profiles.
type ProfileFilter struct {
	Domain         string `json:"domain,omitempty"`
	MinLeadScore   int    `json:"min_lead_score,omitempty"`
	MinOpportunity int    `json:"min_opportunity,omitempty"`
	// RankByLead orders results by composite lead score (highest first)
	// instead of last update time.
	RankByLead bool `json:"rank_by_lead,omitempty"`
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}

// ItemFilter specifies criteria for listing pipeline items.
type ItemFilter struct {
	ItemType model.ItemType `json:"item_type,omitempty"`
	Status   model.Status   `json:"status,omitempty"`
	Priority model.Priority `json:"priority,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scoring engine.
type Store interface {
	// Profiles. SaveProfile upserts by domain and replaces the whole
	// record; a save carrying a lower sequence than the stored row is a
	// no-op so replayed recomputes never clobber fresher results.
	SaveProfile(ctx context.Context, p *model.BusinessProfile) error
	SaveProfiles(ctx context.Context, ps []*model.BusinessProfile) error
	GetProfile(ctx context.Context, id string) (*model.BusinessProfile, error)
	GetProfileByDomain(ctx context.Context, domain string) (*model.BusinessProfile, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.BusinessProfile, error)
	DeleteProfile(ctx context.Context, id string) error

	// Pipeline items
	CreateItem(ctx context.Context, item *model.PipelineItem) error
	GetItem(ctx context.Context, id string) (*model.PipelineItem, error)
	UpdateItem(ctx context.Context, item *model.PipelineItem) error
	ListItems(ctx context.Context, filter ItemFilter) ([]model.PipelineItem, error)
	DeleteItem(ctx context.Context, id string) error

	// CommitTransition persists an item update and its status-change record
	// in a single transaction.
	CommitTransition(ctx context.Context, item *model.PipelineItem, change *model.StatusChange) error
	ListStatusChanges(ctx context.Context, itemID string) ([]model.StatusChange, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
