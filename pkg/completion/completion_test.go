package completion

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/metadata"
	"github.com/otakuflix/adata/pkg/storage"
	"github.com/stretchr/testify/require"
)

// scripted answers each lookup through answer, which sees the call number
// for that query name.
type scripted struct {
	name   string
	answer func(call int, q metadata.Query) (metadata.Record, error)

	mu    sync.Mutex
	calls map[string]int
}

func newScripted(name string, answer func(call int, q metadata.Query) (metadata.Record, error)) *scripted {
	return &scripted{name: name, answer: answer, calls: map[string]int{}}
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Lookup(_ context.Context, q metadata.Query) (metadata.Record, error) {
	s.mu.Lock()
	s.calls[q.Name]++
	call := s.calls[q.Name]
	s.mu.Unlock()
	return s.answer(call, q)
}

func (s *scripted) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// table answers from a fixed map and never changes its mind.
func table(name string, records map[string]metadata.Record) *scripted {
	return newScripted(name, func(_ int, q metadata.Query) (metadata.Record, error) {
		rec, ok := records[q.Name]
		if !ok {
			return metadata.Record{}, metadata.ErrNoMatch
		}
		return rec, nil
	})
}

// memStore is an in-memory Store with a change log.
type memStore struct {
	mu      sync.Mutex
	doc     catalog.Catalog
	version int
	writes  int
	changes []storage.Change
}

func (m *memStore) Read(context.Context) (catalog.Catalog, storage.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone(), m.ver(), nil
}

func (m *memStore) Write(_ context.Context, c catalog.Catalog, v storage.Version) (storage.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v != m.ver() {
		return "", storage.ErrConflict
	}
	m.doc = c.Sorted()
	m.version++
	m.writes++
	return m.ver(), nil
}

func (m *memStore) LogChanges(_ context.Context, changes []storage.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, changes...)
	return nil
}

func (m *memStore) ver() storage.Version {
	if m.version == 0 {
		return ""
	}
	return storage.Version(fmt.Sprint("v", m.version))
}

// recordSleep returns a SleepFunc that records every requested wait.
func recordSleep(waits *[]time.Duration) SleepFunc {
	var mu sync.Mutex
	return func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		return ctx.Err()
	}
}

func entry(id int, name, status string, airing bool) catalog.Entry {
	e := catalog.NewEntry(id, name, []catalog.Location{{Provider: "xfs", ID: fmt.Sprint(id)}})
	e.Status = status
	e.Airing = airing
	return e
}

func TestStatusRecheckCommitsConfirmedChange(t *testing.T) {
	kitsu := table(metadata.Kitsu, map[string]metadata.Record{
		"Naruto": {Status: catalog.StatusFinished},
	})
	var waits []time.Duration
	cfg := &Config{Providers: []metadata.Provider{kitsu}, Debounce: 2 * time.Second, Sleep: recordSleep(&waits)}

	c := catalog.Catalog{entry(1, "Naruto", catalog.StatusCurrent, true)}
	n, err := NewStatusRecheck(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, catalog.StatusFinished, c[0].Status)
	require.False(t, c[0].Airing)
	require.Equal(t, 2, kitsu.total())
	require.Equal(t, []time.Duration{2 * time.Second}, waits)
}

func TestStatusRecheckSuppressesFlapping(t *testing.T) {
	kitsu := newScripted(metadata.Kitsu, func(call int, _ metadata.Query) (metadata.Record, error) {
		if call == 1 {
			return metadata.Record{Status: catalog.StatusFinished}, nil
		}
		return metadata.Record{Status: catalog.StatusCurrent}, nil
	})
	cfg := &Config{Providers: []metadata.Provider{kitsu}, Sleep: recordSleep(new([]time.Duration))}

	c := catalog.Catalog{entry(1, "Naruto", catalog.StatusCurrent, true)}
	before := c.Clone()
	n, err := NewStatusRecheck(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Zero(t, n)
	require.True(t, before.Equal(c))
	require.Equal(t, 2, kitsu.total())
}

func TestStatusRecheckRepairsAiringOnly(t *testing.T) {
	kitsu := table(metadata.Kitsu, map[string]metadata.Record{
		"Bleach": {Status: catalog.StatusFinished},
	})
	cfg := &Config{Providers: []metadata.Provider{kitsu}, Sleep: recordSleep(new([]time.Duration))}

	c := catalog.Catalog{
		entry(1, "Bleach", catalog.StatusFinished, true),
		entry(2, "Done", catalog.StatusFinished, false),
	}
	n, err := NewStatusRecheck(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, c[0].Airing)
	require.Equal(t, 1, kitsu.total())
	require.True(t, NeedsRecheck(entry(3, "x", catalog.NotAvailable, false)))
	require.False(t, NeedsRecheck(c[1]))
}

func TestStatusRecheckRepairsLocallyWithoutProviders(t *testing.T) {
	kitsu := table(metadata.Kitsu, nil)
	cfg := &Config{Providers: []metadata.Provider{kitsu}, Sleep: recordSleep(new([]time.Duration))}

	c := catalog.Catalog{entry(1, "Unlisted", catalog.StatusCurrent, false)}
	n, err := NewStatusRecheck(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, c[0].Airing)
	require.Equal(t, catalog.StatusCurrent, c[0].Status)
}

func TestStatusRecheckFallsBackAndPaces(t *testing.T) {
	kitsu := table(metadata.Kitsu, nil)
	jikan := table(metadata.Jikan, map[string]metadata.Record{
		"A": {Status: catalog.StatusCurrent},
		"B": {Status: catalog.StatusCurrent},
	})
	var waits []time.Duration
	cfg := &Config{
		Providers:  []metadata.Provider{jikan, kitsu},
		EntryDelay: time.Second,
		Debounce:   3 * time.Second,
		Sleep:      recordSleep(&waits),
	}

	c := catalog.Catalog{entry(1, "A", catalog.StatusUpcoming, false), entry(2, "B", catalog.StatusCurrent, true)}
	n, err := NewStatusRecheck(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, catalog.StatusCurrent, c[0].Status)
	require.True(t, c[0].Airing)
	require.Equal(t, []time.Duration{3 * time.Second, time.Second}, waits)
}

func TestRunWritesOnceAndIsIdempotent(t *testing.T) {
	store := &memStore{}
	_, err := store.Write(context.Background(), catalog.Catalog{
		entry(1, "Naruto", catalog.StatusCurrent, true),
		entry(2, "Bleach", catalog.StatusFinished, false),
	}, "")
	require.NoError(t, err)

	kitsu := table(metadata.Kitsu, map[string]metadata.Record{"Naruto": {Status: catalog.StatusFinished}})
	pass := NewStatusRecheck(&Config{Providers: []metadata.Provider{kitsu}, Sleep: recordSleep(new([]time.Duration))})

	res, err := Run(context.Background(), store, pass, nil)
	require.NoError(t, err)
	require.True(t, res.Written)
	require.Equal(t, "status", res.Pass)
	require.Equal(t, 2, res.Scanned)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 2, store.writes)
	require.Len(t, store.changes, 1)
	require.Equal(t, storage.ChangeUpdated, store.changes[0].ChangeType)

	res, err = Run(context.Background(), store, pass, nil)
	require.NoError(t, err)
	require.False(t, res.Written)
	require.Equal(t, 2, store.writes)
}

// conflictingStore changes the document between Read and Write.
type conflictingStore struct{ *memStore }

func (c conflictingStore) Read(ctx context.Context) (catalog.Catalog, storage.Version, error) {
	doc, v, err := c.memStore.Read(ctx)
	c.memStore.mu.Lock()
	c.memStore.version++
	c.memStore.mu.Unlock()
	return doc, v, err
}

func TestRunReturnsConflict(t *testing.T) {
	store := &memStore{doc: catalog.Catalog{entry(1, "Naruto", catalog.StatusCurrent, true)}}
	kitsu := table(metadata.Kitsu, map[string]metadata.Record{"Naruto": {Status: catalog.StatusFinished}})
	pass := NewStatusRecheck(&Config{Providers: []metadata.Provider{kitsu}, Sleep: recordSleep(new([]time.Duration))})

	_, err := Run(context.Background(), conflictingStore{store}, pass, nil)
	require.ErrorIs(t, err, storage.ErrConflict)
	require.Zero(t, store.writes)
	require.Equal(t, catalog.StatusCurrent, store.doc[0].Status)
}

func TestImageFill(t *testing.T) {
	jikan := table(metadata.Jikan, map[string]metadata.Record{
		"Attack on Titan": {Poster: "https://cdn.myanimelist.net/p.jpg", AltNames: []string{"Attack on Titan", "Shingeki no Kyojin"}},
	})
	anilist := newScripted(metadata.AniList, func(_ int, q metadata.Query) (metadata.Record, error) {
		if slices.Contains(q.AltNames, "Shingeki no Kyojin") {
			return metadata.Record{Banner: "https://s4.anilist.co/b.jpg"}, nil
		}
		return metadata.Record{}, metadata.ErrNoMatch
	})
	tmdb := table(metadata.TMDB, nil)
	cfg := &Config{
		Providers: []metadata.Provider{jikan, anilist, tmdb},
		Shortener: shortener{},
		Sleep:     recordSleep(new([]time.Duration)),
	}

	withPoster := catalog.NewEntry(2, "Has Poster", nil)
	withPoster.Poster = "https://iili.io/keep.webp"
	withPoster.Banner = "https://iili.io/keep-banner.webp"

	c := catalog.Catalog{catalog.NewEntry(1, "Attack on Titan", nil), withPoster}
	n, err := NewImageFill(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "short:https://cdn.myanimelist.net/p.jpg", c[0].Poster)
	require.Equal(t, "short:https://s4.anilist.co/b.jpg", c[0].Banner)
	require.Equal(t, 1, jikan.total())
	require.Zero(t, tmdb.total())
	require.Equal(t, "https://iili.io/keep.webp", c[1].Poster)
}

type shortener struct{}

func (shortener) Shorten(_ context.Context, u string) string { return "short:" + u }

func TestRatingFill(t *testing.T) {
	jikan := table(metadata.Jikan, nil)
	anilist := table(metadata.AniList, map[string]metadata.Record{
		"Naruto": {Rating: catalog.KnownRating(8.1), Votes: catalog.KnownCount(100)},
	})
	kitsu := table(metadata.Kitsu, nil)
	cfg := &Config{Providers: []metadata.Provider{kitsu, anilist, jikan}, Sleep: recordSleep(new([]time.Duration))}

	rated := catalog.NewEntry(2, "Rated", nil)
	rated.Rating = catalog.KnownRating(5)
	rated.Votes = catalog.KnownCount(1)

	c := catalog.Catalog{catalog.NewEntry(1, "Naruto", nil), rated}
	n, err := NewRatingFill(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, catalog.KnownRating(8.1), c[0].Rating)
	require.Equal(t, catalog.KnownCount(100), c[0].Votes)
	require.Equal(t, 1, jikan.total())
	require.Zero(t, kitsu.total())
}

func TestRatingFillTakesVotesWithTheirRating(t *testing.T) {
	jikan := table(metadata.Jikan, map[string]metadata.Record{
		"Naruto": {Votes: catalog.KnownCount(100)},
		"Bleach": {Votes: catalog.KnownCount(100)},
	})
	anilist := table(metadata.AniList, map[string]metadata.Record{
		"Naruto": {Rating: catalog.KnownRating(7.5), Votes: catalog.KnownCount(5000)},
		"Bleach": {Rating: catalog.KnownRating(6.9)},
	})
	tmdb := table(metadata.TMDB, map[string]metadata.Record{
		"Bleach": {Rating: catalog.KnownRating(7.2), Votes: catalog.KnownCount(42)},
	})
	cfg := &Config{Providers: []metadata.Provider{jikan, anilist, tmdb}, Sleep: recordSleep(new([]time.Duration))}

	// A stray vote count on an unrated entry is replaced with the pair.
	naruto := catalog.NewEntry(1, "Naruto", nil)
	naruto.Votes = catalog.KnownCount(3)

	c := catalog.Catalog{naruto, catalog.NewEntry(2, "Bleach", nil)}
	n, err := NewRatingFill(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, catalog.KnownRating(7.5), c[0].Rating)
	require.Equal(t, catalog.KnownCount(5000), c[0].Votes)

	require.Equal(t, catalog.KnownRating(6.9), c[1].Rating)
	require.False(t, c[1].Votes.Known)
	require.Zero(t, tmdb.total())
}

func TestStatsFill(t *testing.T) {
	jikan := table(metadata.Jikan, map[string]metadata.Record{
		"Naruto": {Type: "TV", Status: catalog.StatusFinished, Airing: boolPtr(true)},
	})
	kitsu := table(metadata.Kitsu, map[string]metadata.Record{
		"Naruto": {Type: "OVA", Episodes: catalog.KnownCount(220)},
	})
	cfg := &Config{Providers: []metadata.Provider{jikan, kitsu}, Sleep: recordSleep(new([]time.Duration))}

	c := catalog.Catalog{catalog.NewEntry(1, "Naruto", nil)}
	n, err := NewStatsFill(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "TV", c[0].Type)
	require.Equal(t, catalog.StatusFinished, c[0].Status)
	require.False(t, c[0].Airing)
	require.Equal(t, catalog.KnownCount(220), c[0].TotalEpisodes)

	n, err = NewStatsFill(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestStatsFillStudiosAndInconsistentStatus(t *testing.T) {
	jikan := table(metadata.Jikan, map[string]metadata.Record{
		"Bleach": {Status: catalog.StatusFinished, Airing: boolPtr(false), Studio: "Pierrot", Producers: "TV Tokyo"},
	})
	cfg := &Config{Providers: []metadata.Provider{jikan}, Sleep: recordSleep(new([]time.Duration))}

	e := entry(1, "Bleach", catalog.StatusCurrent, false)
	e.Type = "TV"
	e.TotalEpisodes = catalog.KnownCount(366)
	c := catalog.Catalog{e}

	n, err := NewStatsFill(cfg).Fill(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, catalog.StatusFinished, c[0].Status)
	require.False(t, c[0].Airing)
	require.Equal(t, "Pierrot", c[0].Studio)
	require.Equal(t, "TV Tokyo", c[0].Producers)
	require.False(t, c[0].Rating.Known)
}

func boolPtr(b bool) *bool { return &b }

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.NoError(t, Sleep(context.Background(), 0))
}
