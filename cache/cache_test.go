package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlog/routinecache/envelope"
	"github.com/liftlog/routinecache/logger"
	"github.com/liftlog/routinecache/routine"
	"github.com/liftlog/routinecache/source"
	"github.com/liftlog/routinecache/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, opts ...Option) (*Service, store.Store, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	st := store.NewInMemory()
	t.Cleanup(func() { st.Close() })
	svc := New(st, append([]Option{
		WithClock(clk.Now),
		WithLogger(logger.NewTestLogger()),
	}, opts...)...)
	return svc, st, clk
}

func testRoutine(id string, createdAt int64) routine.Routine {
	return routine.Routine{
		ID:        id,
		Name:      "routine " + id,
		OwnerID:   "u1",
		CreatedAt: routine.FromSeconds(createdAt),
	}
}

func TestPreferencesSaveGet(t *testing.T) {
	svc, _, _ := newTestService(t)
	prefs := svc.Preferences()

	assert.Nil(t, prefs.Get("u1"))
	assert.True(t, prefs.Save("u1", routine.Preferences{AccentColor: "teal", Language: "en"}))

	got := prefs.Get("u1")
	require.NotNil(t, got)
	assert.Equal(t, "teal", got.AccentColor)

	// replaced wholesale, not merged
	assert.True(t, prefs.Save("u1", routine.Preferences{Language: "de"}))
	got = prefs.Get("u1")
	require.NotNil(t, got)
	assert.Empty(t, got.AccentColor)
	assert.Equal(t, "de", got.Language)

	prefs.ForceInvalidate("u1")
	assert.Nil(t, prefs.Get("u1"))
}

func TestRoutinesSaveSortsAndTruncates(t *testing.T) {
	svc, _, _ := newTestService(t)
	owned := svc.OwnedRoutines()

	var items []routine.Routine
	for i := 0; i < 25; i++ {
		items = append(items, testRoutine(fmt.Sprintf("r%d", i), int64(1000+i)))
	}
	require.True(t, owned.Save("u1", items))

	got := owned.Get("u1")
	require.Len(t, got, MaxRoutines)
	// newest first; the five oldest fell off
	assert.Equal(t, "r24", got[0].ID)
	assert.Equal(t, "r5", got[len(got)-1].ID)
}

func TestRoutinesRoundTripPreservesDates(t *testing.T) {
	svc, _, _ := newTestService(t)
	owned := svc.OwnedRoutines()

	start := routine.FromSeconds(1771000000)
	item := testRoutine("r1", 1770000000)
	item.StartDate = &start
	require.True(t, owned.Save("u1", []routine.Routine{item}))

	got := owned.Get("u1")
	require.Len(t, got, 1)
	assert.Equal(t, item.CreatedAt.Time().Unix(), got[0].CreatedAt.Time().Unix())
	require.NotNil(t, got[0].StartDate)
	assert.Equal(t, start.Time().Unix(), got[0].StartDate.Time().Unix())
}

func TestUpsertOneIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	owned := svc.OwnedRoutines()

	item := testRoutine("r1", 1000)
	require.True(t, owned.UpsertOne("u1", item))
	require.True(t, owned.UpsertOne("u1", item))

	got := owned.Get("u1")
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestUpsertOneReplacesAndPrepends(t *testing.T) {
	svc, _, _ := newTestService(t)
	owned := svc.OwnedRoutines()

	require.True(t, owned.Save("u1", []routine.Routine{
		testRoutine("r1", 3000),
		testRoutine("r2", 2000),
	}))

	updated := testRoutine("r2", 2000)
	updated.Name = "renamed"
	require.True(t, owned.UpsertOne("u1", updated))
	got := owned.Get("u1")
	require.Len(t, got, 2)
	assert.Equal(t, "renamed", got[1].Name)

	require.True(t, owned.UpsertOne("u1", testRoutine("r3", 4000)))
	got = owned.Get("u1")
	require.Len(t, got, 3)
	assert.Equal(t, "r3", got[0].ID)
}

func TestRemoveOne(t *testing.T) {
	svc, _, _ := newTestService(t)
	owned := svc.OwnedRoutines()

	require.True(t, owned.Save("u1", []routine.Routine{
		testRoutine("r1", 3000),
		testRoutine("r2", 2000),
	}))
	require.True(t, owned.RemoveOne("u1", "r1"))
	got := owned.Get("u1")
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)

	// removing an absent id still rewrites the collection
	require.True(t, owned.RemoveOne("u1", "ghost"))
	assert.Len(t, owned.Get("u1"), 1)
}

func TestSharedRoutinesDedupesByID(t *testing.T) {
	svc, _, _ := newTestService(t)
	shared := svc.SharedRoutines()

	require.True(t, shared.Save("u1", []routine.Routine{
		testRoutine("r1", 3000),
		testRoutine("r1", 3000),
		testRoutine("r2", 2000),
	}))
	got := shared.Get("u1")
	require.Len(t, got, 2)
}

func TestSharedRoutinesTTL(t *testing.T) {
	svc, _, clk := newTestService(t)
	shared := svc.SharedRoutines()

	// no envelope counts as expired
	assert.True(t, shared.IsExpired("u1"))

	require.True(t, shared.Save("u1", []routine.Routine{testRoutine("r1", 1000)}))
	assert.False(t, shared.IsExpired("u1"))

	clk.Advance(SharedTTL - time.Second)
	assert.False(t, shared.IsExpired("u1"))

	clk.Advance(2 * time.Second)
	assert.True(t, shared.IsExpired("u1"))

	// expired data is still readable until refreshed or invalidated
	assert.Len(t, shared.Get("u1"), 1)
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	svc, st, _ := newTestService(t)

	require.NoError(t, st.Put(PrefixPreferences+"u1", []byte("not json {")))
	assert.Nil(t, svc.Preferences().Get("u1"))

	_, found, err := st.Get(PrefixPreferences + "u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStaleSchemaVersionReadsAsMissAndDeletes(t *testing.T) {
	svc, st, _ := newTestService(t)

	stale := `{"data":{"accentColor":"teal"},"timestamp":123,"version":"v0.1"}`
	require.NoError(t, st.Put(PrefixPreferences+"u1", []byte(stale)))

	assert.Nil(t, svc.Preferences().Get("u1"))
	_, found, err := st.Get(PrefixPreferences + "u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEnvelopeWithoutDataReadsAsMissAndDeletes(t *testing.T) {
	svc, st, _ := newTestService(t)

	hollow := `{"timestamp":1771057815000,"version":"` + envelope.SchemaVersion + `"}`
	require.NoError(t, st.Put(PrefixPreferences+"u1", []byte(hollow)))

	assert.Nil(t, svc.Preferences().Get("u1"))
	_, found, err := st.Get(PrefixPreferences + "u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveGetObservesOwnWrite(t *testing.T) {
	svc, _, _ := newTestService(t)
	owned := svc.OwnedRoutines()
	require.True(t, owned.Save("u1", []routine.Routine{testRoutine("r1", 1000)}))
	require.Len(t, owned.Get("u1"), 1)
}

func TestQuotaEvictionKeepsPreferences(t *testing.T) {
	clk := newFakeClock()
	st := store.NewInMemory(store.WithMaxBytes(2048))
	defer st.Close()
	svc := New(st, WithClock(clk.Now), WithLogger(logger.NewTestLogger()))
	owned := svc.OwnedRoutines()

	require.True(t, svc.Preferences().Save("u1", routine.Preferences{AccentColor: "teal"}))

	// Fill the store until saves start needing eviction. Each owner's
	// collection is one entry; keep writing until the budget forces the
	// adapter to evict and retry.
	for i := 0; i < 12; i++ {
		owner := fmt.Sprintf("owner-%02d", i)
		items := []routine.Routine{
			{ID: fmt.Sprintf("r%d", i), Name: "full body strength program", OwnerID: owner, CreatedAt: routine.FromSeconds(int64(1000 + i))},
		}
		require.True(t, owned.Save(owner, items))
		clk.Advance(time.Second)
	}

	// preferences survived every eviction
	got := svc.Preferences().Get("u1")
	require.NotNil(t, got)
	assert.Equal(t, "teal", got.AccentColor)

	// something had to give: the oldest collections are gone
	n, err := st.Len()
	require.NoError(t, err)
	assert.Less(t, n, 13)
}

func TestEventsEmittedOnSave(t *testing.T) {
	svc, _, _ := newTestService(t)

	var got []Event
	cancel := svc.Subscribe(func(e Event) { got = append(got, e) })
	defer cancel()

	require.True(t, svc.Preferences().Save("u1", routine.Preferences{}))
	require.True(t, svc.OwnedRoutines().Save("u1", nil))

	// local events are synchronous within the emitting call
	require.Len(t, got, 2)
	assert.Equal(t, PreferencesUpdated, got[0].Kind)
	assert.Equal(t, "u1", got[0].OwnerID)
	assert.Equal(t, PrefixPreferences+"u1", got[0].Key)
	assert.Equal(t, RoutinesUpdated, got[1].Kind)
	assert.Equal(t, PrefixOwnedRoutines+"u1", got[1].Key)
}

func TestSubscribeCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	var calls int
	cancel := svc.Subscribe(func(Event) { calls++ })
	require.True(t, svc.Preferences().Save("u1", routine.Preferences{}))
	cancel()
	require.True(t, svc.Preferences().Save("u1", routine.Preferences{}))
	assert.Equal(t, 1, calls)
}

func TestInitCachePopulatesFromSource(t *testing.T) {
	src := source.NewMemory()
	src.PutOwner(source.OwnerRecord{ID: "u1", Preferences: &routine.Preferences{Language: "de"}})
	src.PutRoutines("u1", []routine.Routine{
		{ID: "r1", Name: "PPL", CreatedAt: routine.FromSeconds(2000)},
		{ID: "r2", Name: "5x5", CreatedAt: routine.FromSeconds(3000)},
	})
	svc, _, _ := newTestService(t, WithSource(src))

	require.NoError(t, svc.InitCache(context.Background(), "u1", false))

	prefs := svc.Preferences().Get("u1")
	require.NotNil(t, prefs)
	assert.Equal(t, "de", prefs.Language)

	got := svc.OwnedRoutines().Get("u1")
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)
}

func TestInitCacheSkipsValidCachedValue(t *testing.T) {
	src := source.NewMemory()
	src.PutOwner(source.OwnerRecord{ID: "u1", Preferences: &routine.Preferences{Language: "remote"}})
	svc, _, _ := newTestService(t, WithSource(src))

	require.True(t, svc.Preferences().Save("u1", routine.Preferences{Language: "cached"}))
	require.NoError(t, svc.Preferences().InitCache(context.Background(), "u1", false))
	assert.Equal(t, "cached", svc.Preferences().Get("u1").Language)

	// force refetches
	require.NoError(t, svc.Preferences().InitCache(context.Background(), "u1", true))
	assert.Equal(t, "remote", svc.Preferences().Get("u1").Language)
}

func TestInitCacheFailureLeavesCacheUntouched(t *testing.T) {
	src := source.NewMemory()
	svc, _, clk := newTestService(t, WithSource(src))

	require.True(t, svc.Preferences().Save("u1", routine.Preferences{Language: "cached"}))
	src.FailWith(errors.New("network down"))

	err := svc.Preferences().InitCache(context.Background(), "u1", true)
	assert.Error(t, err)
	assert.Equal(t, "cached", svc.Preferences().Get("u1").Language)

	// the failed marker paces retries: immediate re-init is skipped
	assert.NoError(t, svc.Preferences().InitCache(context.Background(), "u1", true))

	// after the marker expires the source is consulted again
	clk.Advance(LoadingExpiry)
	src.FailWith(nil)
	src.PutOwner(source.OwnerRecord{ID: "u1", Preferences: &routine.Preferences{Language: "fresh"}})
	require.NoError(t, svc.Preferences().InitCache(context.Background(), "u1", true))
	assert.Equal(t, "fresh", svc.Preferences().Get("u1").Language)
}

func TestInitCacheMissingOwnerIsNotAnError(t *testing.T) {
	svc, _, _ := newTestService(t, WithSource(source.NewMemory()))
	assert.NoError(t, svc.InitCache(context.Background(), "ghost", false))
	assert.Nil(t, svc.Preferences().Get("ghost"))
	assert.Nil(t, svc.OwnedRoutines().Get("ghost"))
}

func TestInitCacheWithoutSource(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.NoError(t, svc.InitCache(context.Background(), "u1", true))
}

func TestEnvelopeTimestampStamped(t *testing.T) {
	svc, st, clk := newTestService(t)
	require.True(t, svc.OwnedRoutines().Save("u1", nil))

	raw, found, err := st.Get(PrefixOwnedRoutines + "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(raw), fmt.Sprintf(`"timestamp":%d`, clk.Now().UnixMilli()))
	assert.Contains(t, string(raw), fmt.Sprintf(`"version":%q`, envelope.SchemaVersion))
}
