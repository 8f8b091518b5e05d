package model

import "time"

// ItemType distinguishes the two pipeline tracks.
type ItemType string

const (
	ItemTypeProspect ItemType = "prospect"
	ItemTypeWebsite  ItemType = "website"
)

// Status is a sales-pipeline status value. Which values are legal depends on
// the item type; see the lifecycle package for the per-type vocabularies.
type Status string

// Watchlist (website) statuses.
const (
	StatusActive     Status = "active"
	StatusMonitoring Status = "monitoring"
	StatusConverted  Status = "converted"
	StatusLost       Status = "lost"
)

// Prospect statuses. StatusContacted is shared by both tracks.
const (
	StatusNew         Status = "new"
	StatusContacted   Status = "contacted"
	StatusQualified   Status = "qualified"
	StatusProposal    Status = "proposal"
	StatusNegotiation Status = "negotiation"
	StatusClosedWon   Status = "closed-won"
	StatusClosedLost  Status = "closed-lost"
)

// Priority buckets for pipeline items.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PipelineItem is a prospect or watchlist entry tracked through the sales
// pipeline. Status and priority mutate only through the lifecycle manager so
// illegal transitions are rejected in one place.
type PipelineItem struct {
	ID            string     `json:"id"`
	ProfileID     string     `json:"profile_id"`
	ItemType      ItemType   `json:"item_type"`
	Status        Status     `json:"status"`
	Priority      Priority   `json:"priority"`
	Notes         string     `json:"notes,omitempty"`
	LastContacted *time.Time `json:"last_contacted,omitempty"`
	AddedAt       time.Time  `json:"added_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StatusChange is one recorded lifecycle transition.
type StatusChange struct {
	ID     string    `json:"id"`
	ItemID string    `json:"item_id"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// MetadataPatch carries the optional fields committed atomically with a
// status transition. Nil fields are left untouched.
type MetadataPatch struct {
	Notes         *string    `json:"notes,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	LastContacted *time.Time `json:"last_contacted,omitempty"`
}
