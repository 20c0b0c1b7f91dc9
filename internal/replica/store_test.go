package replica

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/leadsync/internal/entity"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func lead(id string, created, updated int, status entity.LeadStatus) entity.Lead {
	return entity.Lead{
		ID:        id,
		UserID:    "user-1",
		Name:      "Lead " + id,
		Status:    status,
		LeadType:  entity.LeadTypeOutbound,
		CreatedAt: base.Add(time.Duration(created) * time.Minute),
		UpdatedAt: base.Add(time.Duration(updated) * time.Minute),
	}
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	s := New[entity.Lead]()
	changes := 0
	s.Watch(func() { changes++ })

	rec := lead("a", 1, 1, entity.StatusCold)
	assert.True(t, s.Insert(rec))
	assert.False(t, s.Insert(rec))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, changes)
}

func TestStore_InsertDoesNotOverwriteOptimisticCopy(t *testing.T) {
	s := New[entity.Lead]()
	local := lead("a", 1, 2, entity.StatusHot)
	s.Insert(local)

	echo := lead("a", 1, 1, entity.StatusCold)
	assert.False(t, s.Insert(echo))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, entity.StatusHot, got.Status)
}

func TestStore_UpsertKeepsNewestVersion(t *testing.T) {
	s := New[entity.Lead]()
	s.Upsert(lead("a", 1, 5, entity.StatusWarm))

	assert.False(t, s.Upsert(lead("a", 1, 3, entity.StatusCold)), "older version must be ignored")
	assert.False(t, s.Upsert(lead("a", 1, 5, entity.StatusWarm)), "same version twice is a no-op")
	assert.True(t, s.Upsert(lead("a", 1, 6, entity.StatusHot)))

	got, _ := s.Get("a")
	assert.Equal(t, entity.StatusHot, got.Status)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := New[entity.Lead]()
	s.Insert(lead("old", 1, 1, entity.StatusCold))
	s.Insert(lead("new", 9, 9, entity.StatusCold))
	s.Insert(lead("mid", 5, 5, entity.StatusCold))

	var ids []string
	for _, l := range s.List() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestStore_RemoveSuppressesLateRedelivery(t *testing.T) {
	s := New[entity.Lead]()
	rec := lead("a", 1, 1, entity.StatusCold)
	s.Insert(rec)

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Insert(rec))
	assert.False(t, s.Upsert(rec))
	assert.Equal(t, 0, s.Len())

	assert.False(t, s.Remove("never-seen"))
	assert.False(t, s.Insert(lead("never-seen", 1, 1, entity.StatusCold)))
}

func TestStore_EvictAllowsNewerVersionBack(t *testing.T) {
	s := New[entity.Lead]()
	v1 := lead("a", 1, 1, entity.StatusCold)
	s.Insert(v1)

	v2 := lead("a", 1, 2, entity.StatusCold)
	assert.True(t, s.Evict(v2))
	assert.False(t, s.Upsert(v1))
	assert.False(t, s.Upsert(v2))

	assert.True(t, s.Upsert(lead("a", 1, 3, entity.StatusHot)))
}

func TestStore_ReplaceResetsState(t *testing.T) {
	s := New[entity.Lead]()
	s.Insert(lead("a", 1, 1, entity.StatusCold))
	s.Remove("a")

	s.Replace([]entity.Lead{lead("a", 1, 1, entity.StatusCold), lead("b", 2, 2, entity.StatusHot)})
	assert.Equal(t, 2, s.Len())
}

func TestStore_RemoveWhere(t *testing.T) {
	s := New[entity.AutomationLog]()
	for i := 0; i < 3; i++ {
		s.Insert(entity.AutomationLog{ID: fmt.Sprintf("mine-%d", i), UserID: "me", CreatedAt: base})
	}
	s.Insert(entity.AutomationLog{ID: "theirs", UserID: "other", CreatedAt: base})

	n := s.RemoveWhere(func(l entity.AutomationLog) bool { return l.UserID == "me" })
	assert.Equal(t, 3, n)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "theirs", list[0].ID)
}

func TestStore_WatchCancel(t *testing.T) {
	s := New[entity.Lead]()
	calls := 0
	cancel := s.Watch(func() { calls++ })

	s.Insert(lead("a", 1, 1, entity.StatusCold))
	cancel()
	cancel()
	s.Insert(lead("b", 1, 1, entity.StatusCold))

	assert.Equal(t, 1, calls)
}

// Any interleaving of events leaves one entry per live id holding its latest version.
func TestStore_RandomEventSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		s := New[entity.Lead]()
		latest := map[string]int{}
		deleted := map[string]bool{}

		for step := 1; step <= 200; step++ {
			id := fmt.Sprintf("id-%d", rng.Intn(8))
			if deleted[id] {
				continue
			}
			switch rng.Intn(4) {
			case 0:
				rec := lead(id, 0, step, entity.StatusCold)
				if _, ok := latest[id]; !ok {
					latest[id] = step
				}
				s.Insert(rec)
				if s.Insert(rec) {
					t.Fatalf("duplicate insert for %s changed the replica", id)
				}
			case 1, 2:
				latest[id] = step
				s.Upsert(lead(id, 0, step, entity.StatusWarm))
			case 3:
				if _, ok := latest[id]; ok {
					s.Remove(id)
					delete(latest, id)
					deleted[id] = true
				}
			}
		}

		list := s.List()
		seen := map[string]bool{}
		for _, rec := range list {
			require.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
			seen[rec.ID] = true
			want, ok := latest[rec.ID]
			require.True(t, ok, "unexpected id %s", rec.ID)
			assert.Equal(t, base.Add(time.Duration(want)*time.Minute), rec.UpdatedAt)
		}
		assert.Len(t, list, len(latest))
	}
}

func TestStore_MergeKeepsInsertAppliedDuringReload(t *testing.T) {
	s := New[entity.Lead]()
	s.Insert(lead("a", 1, 1, entity.StatusCold))

	r := s.BeginReload()
	s.Insert(lead("b", 2, 2, entity.StatusHot))
	s.Merge(r, []entity.Lead{lead("a", 1, 1, entity.StatusCold)})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("b")
	assert.True(t, ok)
}

func TestStore_MergeKeepsRemovalAppliedDuringReload(t *testing.T) {
	s := New[entity.Lead]()
	s.Insert(lead("a", 1, 1, entity.StatusCold))
	s.Insert(lead("b", 2, 2, entity.StatusCold))

	r := s.BeginReload()
	s.Remove("a")
	s.Merge(r, []entity.Lead{lead("a", 1, 1, entity.StatusCold), lead("b", 2, 2, entity.StatusCold)})

	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	assert.False(t, s.Insert(lead("a", 1, 1, entity.StatusCold)), "removal is still remembered")
}

func TestStore_MergeTakesNewerSnapshotVersion(t *testing.T) {
	s := New[entity.Lead]()
	s.Insert(lead("a", 1, 1, entity.StatusCold))
	s.Insert(lead("b", 2, 2, entity.StatusCold))

	r := s.BeginReload()
	s.Upsert(lead("a", 1, 5, entity.StatusHot))
	s.Upsert(lead("b", 2, 3, entity.StatusWarm))
	s.Merge(r, []entity.Lead{lead("a", 1, 4, entity.StatusWarm), lead("b", 2, 6, entity.StatusQualified)})

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	assert.Equal(t, entity.StatusHot, a.Status, "feed write is newer than the snapshot")
	assert.Equal(t, entity.StatusQualified, b.Status, "snapshot is newer than the feed write")
}

func TestStore_MergeDropsRecordsWrittenBeforeReload(t *testing.T) {
	s := New[entity.Lead]()
	s.Insert(lead("stale", 1, 1, entity.StatusCold))
	s.Remove("gone")

	r := s.BeginReload()
	s.Merge(r, []entity.Lead{lead("gone", 2, 2, entity.StatusCold)})

	_, ok := s.Get("stale")
	assert.False(t, ok)
	_, ok = s.Get("gone")
	assert.True(t, ok, "removal memory from before the reload is reset")
}

func TestStore_CancelReloadStopsTracking(t *testing.T) {
	s := New[entity.Lead]()

	r := s.BeginReload()
	s.Insert(lead("a", 1, 1, entity.StatusCold))
	s.CancelReload(r)
	assert.Empty(t, s.touched)

	r = s.BeginReload()
	s.Merge(r, nil)
	assert.Equal(t, 0, s.Len(), "writes from the cancelled reload are not carried over")
}
