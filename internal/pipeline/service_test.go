package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newswatch/internal/db"
	"horse.fit/newswatch/internal/normalize"
	"horse.fit/newswatch/internal/semantic"
	"horse.fit/newswatch/internal/source"
	"horse.fit/newswatch/schema"
)

type fakeStore struct {
	urls       map[string]struct{}
	clusters   map[string][]db.Article
	standalone []db.Article
	cleanups   []time.Time
	failAdds   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		urls:     make(map[string]struct{}),
		clusters: make(map[string][]db.Article),
	}
}

func (f *fakeStore) AddCluster(_ context.Context, cluster db.Cluster, articles []db.Article) (int, error) {
	if f.failAdds {
		return 0, fmt.Errorf("connection reset")
	}
	added := 0
	for _, article := range articles {
		if _, exists := f.urls[article.URL]; exists {
			continue
		}
		f.urls[article.URL] = struct{}{}
		f.clusters[cluster.ClusterID] = append(f.clusters[cluster.ClusterID], article)
		added++
	}
	return added, nil
}

func (f *fakeStore) AddStandaloneArticle(_ context.Context, article db.Article) (bool, error) {
	if f.failAdds {
		return false, fmt.Errorf("connection reset")
	}
	if _, exists := f.urls[article.URL]; exists {
		return false, nil
	}
	f.urls[article.URL] = struct{}{}
	f.standalone = append(f.standalone, article)
	return true, nil
}

func (f *fakeStore) CleanupOlderThan(_ context.Context, cutoff time.Time) (db.CleanupResult, error) {
	f.cleanups = append(f.cleanups, cutoff)
	return db.CleanupResult{}, nil
}

func (f *fakeStore) StoriesGrouped(context.Context, time.Duration, string) ([]db.StoryGroup, error) {
	return nil, nil
}

type fakeSource struct {
	name          string
	groupsLocally bool
	result        *source.Result
	err           error

	calls     int
	languages []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) GroupsLocally() bool { return f.groupsLocally }

func (f *fakeSource) Search(_ context.Context, query source.Query) (*source.Result, error) {
	f.calls++
	f.languages = append(f.languages, query.Language)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type acceptAllGate struct{}

func (acceptAllGate) IsAbout(string, watchschema.TrackedEntity) bool { return true }

type fakeGrouper struct {
	grouping semantic.Grouping
	batches  [][]string
}

func (f *fakeGrouper) Group(_ context.Context, texts []string) (semantic.Grouping, error) {
	f.batches = append(f.batches, texts)
	if len(f.grouping.Groups) > 0 {
		return f.grouping, nil
	}
	groups := make([][]int, len(texts))
	for i := range groups {
		groups[i] = []int{i}
	}
	return semantic.Grouping{Mode: f.grouping.Mode, Groups: groups}, nil
}

func testWatchlist() *watchschema.Watchlist {
	return &watchschema.Watchlist{
		WatchlistVersion: "v1",
		Entities: []watchschema.TrackedEntity{
			{Name: "Narendra Modi", Query: `"Narendra Modi"`, Languages: []string{"en"}},
		},
	}
}

func newTestService(store Store, sources []source.Client, grouper Grouper) *Service {
	normalizer := normalize.NewNormalizer(normalize.NewCategorizer(), zerolog.Nop())
	return NewService(store, sources, acceptAllGate{}, normalizer, grouper, Options{
		Country:       "IN",
		RetentionDays: 90,
	}, zerolog.Nop())
}

func TestRunCycleGroupsSimilarFeedItems(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feed := &fakeSource{
		name:          "google_news",
		groupsLocally: true,
		result: &source.Result{Items: []source.RawItem{
			{Title: "Modi inaugurates expressway", Link: "https://a.example/1", SourceName: "The Hindu", Language: "en"},
			{Title: "PM opens new expressway", Link: "https://b.example/2", SourceName: "NDTV", Language: "en"},
		}},
	}
	grouper := &fakeGrouper{grouping: semantic.Grouping{Mode: semantic.ModeSemantic, Groups: [][]int{{0, 1}}}}

	result, err := newTestService(store, []source.Client{feed}, grouper).RunCycle(context.Background(), testWatchlist())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if result.NewArticles != 2 {
		t.Fatalf("expected 2 new articles, got %d", result.NewArticles)
	}
	if result.ClustersTouched != 1 {
		t.Fatalf("expected 1 cluster, got %d", result.ClustersTouched)
	}
	if result.Standalone != 0 {
		t.Fatalf("expected no standalone articles, got %d", result.Standalone)
	}
	if len(store.clusters) != 1 {
		t.Fatalf("expected one stored cluster, got %d", len(store.clusters))
	}
	for _, members := range store.clusters {
		if len(members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(members))
		}
	}
	if len(store.cleanups) != 1 {
		t.Fatalf("expected one cleanup call, got %d", len(store.cleanups))
	}
}

func TestRunCycleStoresFeedSingletonsStandalone(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feed := &fakeSource{
		name:          "google_news",
		groupsLocally: true,
		result: &source.Result{Items: []source.RawItem{
			{Title: "Budget speech", Link: "https://a.example/1", Language: "en"},
			{Title: "Cricket final", Link: "https://b.example/2", Language: "en"},
			{Title: "Metro opening", Link: "https://c.example/3", Language: "en"},
		}},
	}
	grouper := &fakeGrouper{grouping: semantic.Grouping{Mode: semantic.ModeSemantic}}

	result, err := newTestService(store, []source.Client{feed}, grouper).RunCycle(context.Background(), testWatchlist())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if result.Standalone != 3 {
		t.Fatalf("expected 3 standalone articles, got %d", result.Standalone)
	}
	if len(store.clusters) != 0 {
		t.Fatalf("expected no clusters, got %d", len(store.clusters))
	}
	if result.NewArticles != 3 {
		t.Fatalf("expected 3 new articles, got %d", result.NewArticles)
	}
}

func TestRunCycleFlatAPIResponseStaysUngrouped(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	api := &fakeSource{
		name: "newscatcher",
		result: &source.Result{Items: []source.RawItem{
			{Title: "Modi opens bridge", Link: "https://a.example/1", Language: "en"},
			{Title: "PM inaugurates bridge", Link: "https://b.example/2", Language: "en"},
			{Title: "Bridge opening ceremony", Link: "https://c.example/3", Language: "en"},
		}},
	}
	// A grouper that would merge everything; it must never be consulted for a
	// source that clusters upstream.
	grouper := &fakeGrouper{grouping: semantic.Grouping{Mode: semantic.ModeSemantic, Groups: [][]int{{0, 1, 2}}}}

	result, err := newTestService(store, []source.Client{api}, grouper).RunCycle(context.Background(), testWatchlist())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if len(grouper.batches) != 0 {
		t.Fatalf("expected grouper to stay unused, got %d batches", len(grouper.batches))
	}
	if len(store.clusters) != 0 {
		t.Fatalf("expected no cluster rows, got %v", store.clusters)
	}
	if result.Standalone != 3 || result.NewArticles != 3 {
		t.Fatalf("expected 3 standalone articles, got %+v", result)
	}
}

func TestRunCyclePersistsNativeClusters(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	api := &fakeSource{
		name: "newscatcher",
		result: &source.Result{
			Clustered: true,
			Clusters: []source.RawCluster{{
				ClusterID: "7",
				Items: []source.RawItem{
					{Title: "Story A", Link: "https://a.example/1", Language: "en"},
					{Title: "Story A again", Link: "https://b.example/2", Language: "en"},
				},
			}},
		},
	}

	result, err := newTestService(store, []source.Client{api}, &fakeGrouper{}).RunCycle(context.Background(), testWatchlist())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	members, ok := store.clusters["newscatcher_7"]
	if !ok {
		t.Fatalf("expected cluster newscatcher_7, got %v", store.clusters)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if result.NewArticles != 2 || result.ClustersTouched != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunCycleGrouperSeesTitleAndBody(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feed := &fakeSource{
		name:          "google_news",
		groupsLocally: true,
		result: &source.Result{Items: []source.RawItem{
			{Title: "Modi opens bridge", Summary: "The new river bridge was inaugurated today", Link: "https://a.example/1", Language: "en"},
		}},
	}
	grouper := &fakeGrouper{}

	if _, err := newTestService(store, []source.Client{feed}, grouper).RunCycle(context.Background(), testWatchlist()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if len(grouper.batches) != 1 || len(grouper.batches[0]) != 1 {
		t.Fatalf("expected one single-text batch, got %v", grouper.batches)
	}
	want := "Modi opens bridge The new river bridge was inaugurated today"
	if grouper.batches[0][0] != want {
		t.Fatalf("expected grouper to see title plus body, got %q", grouper.batches[0][0])
	}
}

func TestRunCycleQueriesFeedPerLanguageAndAPIsOnce(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	api := &fakeSource{name: "newscatcher", result: &source.Result{}}
	feed := &fakeSource{name: "google_news", groupsLocally: true, result: &source.Result{}}

	watchlist := &watchschema.Watchlist{
		WatchlistVersion: "v1",
		Entities: []watchschema.TrackedEntity{
			{Name: "Narendra Modi", Query: `"Narendra Modi"`, Languages: []string{"en", "hi"}},
		},
	}

	if _, err := newTestService(store, []source.Client{api, feed}, &fakeGrouper{}).RunCycle(context.Background(), watchlist); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if api.calls != 1 {
		t.Fatalf("expected one API query per entity, got %d", api.calls)
	}
	if api.languages[0] != "en" {
		t.Fatalf("expected API query in the primary language, got %v", api.languages)
	}
	if feed.calls != 2 {
		t.Fatalf("expected one feed query per language, got %d", feed.calls)
	}
	if feed.languages[0] != "en" || feed.languages[1] != "hi" {
		t.Fatalf("unexpected feed languages %v", feed.languages)
	}
}

func TestRunCycleContainsSourceFailures(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	broken := &fakeSource{name: "newscatcher", err: fmt.Errorf("upstream down")}
	working := &fakeSource{
		name:          "google_news",
		groupsLocally: true,
		result: &source.Result{Items: []source.RawItem{
			{Title: "Still collected", Link: "https://a.example/1", Language: "en"},
		}},
	}

	result, err := newTestService(store, []source.Client{broken, working}, &fakeGrouper{}).RunCycle(context.Background(), testWatchlist())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if result.SourceErrors != 1 {
		t.Fatalf("expected 1 source error, got %d", result.SourceErrors)
	}
	if result.NewArticles != 1 {
		t.Fatalf("expected the healthy source to still land articles, got %d", result.NewArticles)
	}
}

func TestRunCycleContainsRevokedKey(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	revoked := &fakeSource{name: "newscatcher", err: fmt.Errorf("search: %w", source.ErrUnauthorized)}
	working := &fakeSource{
		name:          "google_news",
		groupsLocally: true,
		result: &source.Result{Items: []source.RawItem{
			{Title: "Still collected", Link: "https://a.example/1", Language: "en"},
		}},
	}

	watchlist := &watchschema.Watchlist{
		WatchlistVersion: "v1",
		Entities: []watchschema.TrackedEntity{
			{Name: "Narendra Modi", Query: `"Narendra Modi"`, Languages: []string{"en"}},
			{Name: "CR Patil", Query: `"CR Patil"`, Languages: []string{"en"}},
		},
	}

	result, err := newTestService(store, []source.Client{revoked, working}, &fakeGrouper{}).RunCycle(context.Background(), watchlist)
	if err != nil {
		t.Fatalf("a rejected key must not abort the cycle: %v", err)
	}

	if result.SourceErrors != 1 {
		t.Fatalf("expected 1 source error, got %d", result.SourceErrors)
	}
	// Retrying a rejected key cannot succeed; the source is skipped for the
	// remaining entities instead of failing twice.
	if revoked.calls != 1 {
		t.Fatalf("expected revoked source queried once, got %d", revoked.calls)
	}
	if working.calls != 2 {
		t.Fatalf("expected healthy source to run for both entities, got %d", working.calls)
	}
	if result.NewArticles != 1 {
		t.Fatalf("expected healthy source articles to land, got %d", result.NewArticles)
	}
	if len(store.cleanups) != 1 {
		t.Fatalf("expected retention cleanup to still run, got %d calls", len(store.cleanups))
	}
}

func TestRunCycleContainsStorageFailures(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failAdds = true
	feed := &fakeSource{
		name:          "google_news",
		groupsLocally: true,
		result: &source.Result{Items: []source.RawItem{
			{Title: "Budget speech", Link: "https://a.example/1", Language: "en"},
		}},
	}

	result, err := newTestService(store, []source.Client{feed}, &fakeGrouper{}).RunCycle(context.Background(), testWatchlist())
	if err != nil {
		t.Fatalf("a failed insert must not abort the cycle: %v", err)
	}
	if result.NewArticles != 0 {
		t.Fatalf("expected zero effect from failed inserts, got %d", result.NewArticles)
	}
	if len(store.cleanups) != 1 {
		t.Fatalf("expected cleanup to still run, got %d calls", len(store.cleanups))
	}
}

func TestRunCycleRejectsEmptyWatchlist(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), nil, &fakeGrouper{})
	if _, err := svc.RunCycle(context.Background(), &watchschema.Watchlist{}); err == nil {
		t.Fatalf("expected empty watchlist to be rejected")
	}
}
