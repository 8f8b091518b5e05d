package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/store"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewManager(st), st
}

func addProfile(t *testing.T, st store.Store, domain string) *model.BusinessProfile {
	t.Helper()
	p := &model.BusinessProfile{
		Domain: domain,
		Name:   "Test " + domain,
		Scores: model.ScoreBreakdown{Lead: 50},
	}
	require.NoError(t, st.SaveProfile(context.Background(), p))
	return p
}

func TestManager_AddInitialStatus(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	p := addProfile(t, st, "acme.com")

	prospect, err := m.Add(ctx, p.ID, model.ItemTypeProspect, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, prospect.Status)
	assert.Equal(t, model.PriorityMedium, prospect.Priority)

	watch, err := m.Add(ctx, p.ID, model.ItemTypeWebsite, model.PriorityHigh, "keep an eye on them")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, watch.Status)
	assert.Equal(t, model.PriorityHigh, watch.Priority)
}

func TestManager_AddUnknownType(t *testing.T) {
	m, st := newTestManager(t)
	p := addProfile(t, st, "acme.com")

	_, err := m.Add(context.Background(), p.ID, model.ItemType("lead"), "", "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidTransition))
}

func TestManager_TransitionRecordsHistory(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	p := addProfile(t, st, "acme.com")

	item, err := m.Add(ctx, p.ID, model.ItemTypeProspect, "", "")
	require.NoError(t, err)
	before := item.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	updated, err := m.Transition(ctx, item.ID, model.StatusContacted, "intro call", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContacted, updated.Status)
	assert.True(t, updated.UpdatedAt.After(before))

	history, err := m.History(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.StatusNew, history[0].From)
	assert.Equal(t, model.StatusContacted, history[0].To)
	assert.Equal(t, "intro call", history[0].Note)
}

func TestManager_TerminalStatesReopen(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	p := addProfile(t, st, "acme.com")

	item, err := m.Add(ctx, p.ID, model.ItemTypeWebsite, "", "")
	require.NoError(t, err)

	// Nothing pins a watchlist entry in a terminal state.
	for _, to := range []model.Status{model.StatusConverted, model.StatusLost, model.StatusActive} {
		item, err = m.Transition(ctx, item.ID, to, "", nil)
		require.NoError(t, err)
		assert.Equal(t, to, item.Status)
	}

	history, err := m.History(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestManager_UnknownStatusRejected(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	p := addProfile(t, st, "acme.com")

	item, err := m.Add(ctx, p.ID, model.ItemTypeProspect, "", "")
	require.NoError(t, err)

	_, err = m.Transition(ctx, item.ID, model.Status("paused"), "", nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidTransition))

	// A watchlist-only status is just as illegal for a prospect.
	_, err = m.Transition(ctx, item.ID, model.StatusMonitoring, "", nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidTransition))

	// The rejected transitions left no trace.
	got, err := st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.Status)

	history, err := m.History(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestManager_TransitionAppliesPatchAtomically(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	p := addProfile(t, st, "acme.com")

	item, err := m.Add(ctx, p.ID, model.ItemTypeProspect, "", "")
	require.NoError(t, err)

	notes := "sent proposal deck"
	priority := model.PriorityHigh
	contacted := time.Now().UTC().Truncate(time.Second)
	updated, err := m.Transition(ctx, item.ID, model.StatusProposal, "deck sent", &model.MetadataPatch{
		Notes:         &notes,
		Priority:      &priority,
		LastContacted: &contacted,
	})
	require.NoError(t, err)

	got, err := st.GetItem(ctx, updated.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProposal, got.Status)
	assert.Equal(t, "sent proposal deck", got.Notes)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	require.NotNil(t, got.LastContacted)
}

func TestManager_UpdateMetadataOnly(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	p := addProfile(t, st, "acme.com")

	item, err := m.Add(ctx, p.ID, model.ItemTypeProspect, "", "original")
	require.NoError(t, err)

	notes := "updated after call"
	updated, err := m.UpdateMetadata(ctx, item.ID, &model.MetadataPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "updated after call", updated.Notes)
	assert.Equal(t, model.StatusNew, updated.Status)

	history, err := m.History(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "metadata updates are not status changes")
}

func TestManager_MissingItem(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Transition(context.Background(), "ghost", model.StatusContacted, "", nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestManager_ConcurrentTransitionsSerialized(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	p := addProfile(t, st, "acme.com")

	item, err := m.Add(ctx, p.ID, model.ItemTypeProspect, "", "")
	require.NoError(t, err)

	statuses := []model.Status{
		model.StatusContacted, model.StatusQualified, model.StatusProposal,
		model.StatusNegotiation, model.StatusClosedWon,
	}

	var g errgroup.Group
	for i, to := range statuses {
		g.Go(func() error {
			_, err := m.Transition(ctx, item.ID, to, fmt.Sprintf("step %d", i), nil)
			return err
		})
	}
	require.NoError(t, g.Wait())

	// Every transition landed exactly once; the history chain is unbroken.
	history, err := m.History(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, len(statuses))
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].To, history[i].From)
	}

	got, err := st.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, history[len(history)-1].To, got.Status)
}
