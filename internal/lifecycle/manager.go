// Package lifecycle owns status transitions for pipeline items. Prospects
// and watchlist entries carry different status vocabularies; transitions are
// free-form within the vocabulary (terminal states can be reopened) but a
// status outside the item's vocabulary is rejected outright.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/store"
)

// ErrInvalidTransition marks a requested status the item's track does not
// recognize. The item is left untouched.
var ErrInvalidTransition = eris.New("lifecycle: invalid transition")

var prospectStatuses = map[model.Status]bool{
	model.StatusNew:         true,
	model.StatusContacted:   true,
	model.StatusQualified:   true,
	model.StatusProposal:    true,
	model.StatusNegotiation: true,
	model.StatusClosedWon:   true,
	model.StatusClosedLost:  true,
}

var watchlistStatuses = map[model.Status]bool{
	model.StatusActive:     true,
	model.StatusContacted:  true,
	model.StatusMonitoring: true,
	model.StatusConverted:  true,
	model.StatusLost:       true,
}

// Manager mediates all pipeline item mutations. A per-item lock serializes
// concurrent transitions so the status row and its history never diverge.
type Manager struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a lifecycle manager on top of the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{
		store: st,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(itemID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[itemID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[itemID] = l
	}
	return l
}

// Vocabulary returns the legal statuses for an item type, or nil for an
// unknown type.
func Vocabulary(itemType model.ItemType) map[model.Status]bool {
	switch itemType {
	case model.ItemTypeProspect:
		return prospectStatuses
	case model.ItemTypeWebsite:
		return watchlistStatuses
	default:
		return nil
	}
}

// InitialStatus returns the status a freshly added item starts in.
func InitialStatus(itemType model.ItemType) (model.Status, error) {
	switch itemType {
	case model.ItemTypeProspect:
		return model.StatusNew, nil
	case model.ItemTypeWebsite:
		return model.StatusActive, nil
	default:
		return "", eris.Wrapf(ErrInvalidTransition, "unknown item type %q", itemType)
	}
}

// Add creates a new pipeline item for a profile in its track's initial status.
func (m *Manager) Add(ctx context.Context, profileID string, itemType model.ItemType, priority model.Priority, notes string) (*model.PipelineItem, error) {
	status, err := InitialStatus(itemType)
	if err != nil {
		return nil, err
	}
	if priority == "" {
		priority = model.PriorityMedium
	}

	item := &model.PipelineItem{
		ProfileID: profileID,
		ItemType:  itemType,
		Status:    status,
		Priority:  priority,
		Notes:     notes,
	}
	if err := m.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline item added",
		zap.String("item_id", item.ID),
		zap.String("profile_id", profileID),
		zap.String("item_type", string(itemType)),
		zap.String("status", string(status)))
	return item, nil
}

// Transition moves an item to a new status and records the change. The item
// update, the optional metadata patch and the history row commit together;
// a rejected status leaves the item exactly as it was.
func (m *Manager) Transition(ctx context.Context, itemID string, to model.Status, note string, patch *model.MetadataPatch) (*model.PipelineItem, error) {
	lock := m.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()

	item, err := m.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	vocab := Vocabulary(item.ItemType)
	if !vocab[to] {
		return nil, eris.Wrapf(ErrInvalidTransition, "%s -> %s for %s item", item.Status, to, item.ItemType)
	}

	now := time.Now().UTC()
	change := &model.StatusChange{
		ItemID: itemID,
		From:   item.Status,
		To:     to,
		Note:   note,
		At:     now,
	}

	applyPatch(item, patch)
	item.Status = to
	item.UpdatedAt = now

	if err := m.store.CommitTransition(ctx, item, change); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline status changed",
		zap.String("item_id", itemID),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)))
	return item, nil
}

// UpdateMetadata patches notes, priority or last-contacted without touching
// the status or the history.
func (m *Manager) UpdateMetadata(ctx context.Context, itemID string, patch *model.MetadataPatch) (*model.PipelineItem, error) {
	lock := m.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()

	item, err := m.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	applyPatch(item, patch)
	item.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// History returns an item's recorded transitions, oldest first.
func (m *Manager) History(ctx context.Context, itemID string) ([]model.StatusChange, error) {
	return m.store.ListStatusChanges(ctx, itemID)
}

// Remove deletes an item and its history.
func (m *Manager) Remove(ctx context.Context, itemID string) error {
	lock := m.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()

	return m.store.DeleteItem(ctx, itemID)
}

func applyPatch(item *model.PipelineItem, patch *model.MetadataPatch) {
	if patch == nil {
		return
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	if patch.Priority != nil {
		item.Priority = *patch.Priority
	}
	if patch.LastContacted != nil {
		item.LastContacted = patch.LastContacted
	}
}
