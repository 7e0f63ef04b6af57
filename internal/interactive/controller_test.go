package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cidash/internal/pagestate"
	"cidash/internal/params"
	"cidash/internal/reqcache"
	"cidash/internal/transport"
	"cidash/internal/urlstore"
)

const endpoint = "/api/0/projects/server/commits/"

// fakeBackend answers canned responses per URL. A gated URL blocks until its
// gate is closed.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]*transport.Response
	gates     map[string]chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: make(map[string]*transport.Response),
		gates:     make(map[string]chan struct{}),
	}
}

type page struct {
	Data        []string `json:"data"`
	HasNext     bool     `json:"hasNext"`
	HasPrevious bool     `json:"hasPrevious"`
}

func (f *fakeBackend) respond(url string, status int, p page) {
	body, _ := json.Marshal(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &transport.Response{
		URL:        url,
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       body,
	}
}

func (f *fakeBackend) gate(url string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[url] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeBackend) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Load(ctx context.Context, url string) (*transport.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	gate := f.gates[url]
	resp := f.responses[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp == nil {
		return nil, &transport.NetworkError{URL: url, Err: errors.New("connection refused")}
	}
	if !resp.OK() {
		return resp, &transport.HTTPError{Response: resp}
	}
	return resp, nil
}

func decodePage(resp *transport.Response, _ params.Params) (*pagestate.Result[string], error) {
	var p page
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, err
	}
	return &pagestate.Result[string]{
		Data: p.Data,
		Pagination: pagestate.Pagination{
			HasNext:     p.HasNext,
			HasPrevious: p.HasPrevious,
		},
	}, nil
}

type fixture struct {
	backend *fakeBackend
	cache   *reqcache.Cache[*pagestate.Result[string]]
	url     *urlstore.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cache := reqcache.New[*pagestate.Result[string]](reqcache.WithFailureGrace(50 * time.Millisecond))
	t.Cleanup(cache.Stop)
	loc, err := urlstore.Parse("https://changes.example.com/projects/server/")
	require.NoError(t, err)
	return &fixture{backend: newFakeBackend(), cache: cache, url: loc}
}

func (f *fixture) controller(t *testing.T) *Controller[string] {
	t.Helper()
	c := New(context.Background(), Config[string]{
		Name:      "commits",
		Endpoint:  endpoint,
		Defaults:  params.Params{params.PageKey: params.FirstPage},
		Transport: f.backend,
		Cache:     f.cache,
		Decode:    decodePage,
		URL:       f.url,
		Logger:    logr.Discard(),
	})
	t.Cleanup(c.Close)
	return c
}

func waitSettled(t *testing.T, c *Controller[string]) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State().Phase() != pagestate.Loading
	}, 2*time.Second, 5*time.Millisecond)
}

func urlFor(p params.Params) string {
	return endpoint + "?" + params.MustEncode(p)
}

func TestInitializeLoadsFirstPage(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"c1", "c2"}, HasNext: true})

	c := f.controller(t)
	assert.True(t, c.HasNotLoadedInitialData())
	assert.False(t, c.HasRunInitialize())

	c.Initialize(params.Params{})
	assert.True(t, c.HasRunInitialize())
	waitSettled(t, c)

	assert.False(t, c.HasNotLoadedInitialData())
	require.NotNil(t, c.DataToShow())
	assert.Equal(t, []string{"c1", "c2"}, c.DataToShow().Data)
	assert.True(t, c.HasNextPage())
	assert.False(t, c.HasPreviousPage())
	assert.Equal(t, "page=0", f.url.Query(), "URL reflects displayed data")
}

func TestInitializeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"c1"}})

	c := f.controller(t)
	c.Initialize(nil)
	waitSettled(t, c)
	c.Initialize(params.Params{"branch": "other"})

	assert.Equal(t, params.Params{"page": 0}, c.CurrentParams())
	assert.Equal(t, 1, f.backend.callCount(first))
}

func TestInitializeUsesGivenParamsOverDefaults(t *testing.T) {
	f := newFixture(t)
	target := urlFor(params.Params{"branch": "main", "page": "3"})
	f.backend.respond(target, http.StatusOK, page{Data: []string{"x"}, HasPrevious: true})

	f.url.SetQuery("branch=main&page=3")
	initial := ParamsFromURL(f.url, logr.Discard())

	c := f.controller(t)
	c.Initialize(initial)
	waitSettled(t, c)

	assert.Equal(t, 3, c.CurrentParams().Page())
	assert.True(t, c.HasPreviousPage())
}

func TestParamsFromMalformedURLFallsBack(t *testing.T) {
	f := newFixture(t)
	f.url.SetQuery("branch=%zz")
	assert.Nil(t, ParamsFromURL(f.url, logr.Discard()))
	assert.Nil(t, ParamsFromURL(nil, logr.Discard()))
}

func TestUpdateKeepsDataWhileLoading(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	next := urlFor(params.Params{"branch": "main", "page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"old"}})
	f.backend.respond(next, http.StatusOK, page{Data: []string{"new"}})

	c := f.controller(t)
	c.Initialize(nil)
	waitSettled(t, c)
	before := c.DataToShow()

	gate := f.backend.gate(next)
	c.UpdateWithParams(params.Params{"branch": "main"}, true)

	assert.True(t, c.IsLoadingUpdatedData())
	assert.False(t, c.HasNotLoadedInitialData())
	assert.Same(t, before, c.DataToShow())

	close(gate)
	waitSettled(t, c)
	assert.False(t, c.IsLoadingUpdatedData())
	assert.Equal(t, []string{"new"}, c.DataToShow().Data)
	assert.Equal(t, "branch=main&page=0", f.url.Query())
}

func TestUpdateWithResetPage(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)
	c.Initialize(params.Params{"page": 7})
	waitSettled(t, c)

	c.UpdateWithParams(params.Params{"filter": "x"}, true)
	assert.Equal(t, 0, c.CurrentParams().Page())

	c.UpdateWithParams(params.Params{"page": 4}, false)
	assert.Equal(t, 4, c.CurrentParams().Page())
}

func TestStaleResponseIsSuppressed(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	urlA := urlFor(params.Params{"branch": "a", "page": 0})
	urlB := urlFor(params.Params{"branch": "b", "page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"initial"}})
	f.backend.respond(urlA, http.StatusOK, page{Data: []string{"A"}})
	f.backend.respond(urlB, http.StatusOK, page{Data: []string{"B"}})

	c := f.controller(t)
	c.Initialize(nil)
	waitSettled(t, c)

	gateA := f.backend.gate(urlA)
	gateB := f.backend.gate(urlB)
	c.UpdateWithParams(params.Params{"branch": "a"}, true)
	c.UpdateWithParams(params.Params{"branch": "b"}, true)

	close(gateB)
	waitSettled(t, c)
	assert.Equal(t, []string{"B"}, c.DataToShow().Data)

	close(gateA)
	require.Eventually(t, func() bool {
		_, ok := f.cache.Peek(urlA)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"B"}, c.DataToShow().Data)
	assert.Equal(t, "b", c.CurrentParams().String("branch"))
	assert.Equal(t, "branch=b&page=0", f.url.Query())
}

func TestHTTPErrorKeepsPreviousData(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	broken := urlFor(params.Params{"branch": "broken", "page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"good"}})
	f.backend.respond(broken, http.StatusInternalServerError, page{})

	c := f.controller(t)
	c.Initialize(nil)
	waitSettled(t, c)
	good := c.DataToShow()

	c.UpdateWithParams(params.Params{"branch": "broken"}, true)
	waitSettled(t, c)

	assert.True(t, c.FailedToLoadUpdatedData())
	assert.Same(t, good, c.DataToShow())

	info := c.DataForErrorMessage()
	require.NotNil(t, info)
	require.NotNil(t, info.Response)
	assert.Equal(t, http.StatusInternalServerError, info.Response.StatusCode)
	assert.Equal(t, "page=0", f.url.Query(), "failed loads do not move the URL")
}

func TestInitialNetworkFailure(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)
	c.Initialize(nil)
	waitSettled(t, c)

	assert.False(t, c.HasNotLoadedInitialData())
	assert.True(t, c.FailedToLoadUpdatedData())
	assert.Nil(t, c.DataToShow())

	info := c.DataForErrorMessage()
	require.NotNil(t, info)
	assert.Nil(t, info.Response)
	var nerr *transport.NetworkError
	assert.ErrorAs(t, info.Err, &nerr)
}

func TestProgrammingErrorBecomesFailedState(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)

	c.Initialize(params.Params{"tags": []string{"a", "b"}})

	assert.True(t, c.FailedToLoadUpdatedData())
	var perr *ProgrammingError
	assert.ErrorAs(t, c.DataForErrorMessage().Err, &perr)
}

func TestMissingCollaboratorIsReportedNotPanicked(t *testing.T) {
	c := New(context.Background(), Config[string]{Name: "builds", Endpoint: endpoint})
	defer c.Close()

	c.Initialize(nil)
	var perr *ProgrammingError
	assert.ErrorAs(t, c.DataForErrorMessage().Err, &perr)
}

func TestEndpointQueryIsSentButNotExposed(t *testing.T) {
	f := newFixture(t)
	target := "/api/0/projects/server/commits/?all_builds=1&page=0"
	f.backend.respond(target, http.StatusOK, page{Data: []string{"c"}})

	c := New(context.Background(), Config[string]{
		Name:      "commits",
		Endpoint:  "/api/0/projects/server/commits/?all_builds=1",
		Defaults:  params.Params{"page": 0},
		Transport: f.backend,
		Cache:     f.cache,
		Decode:    decodePage,
		URL:       f.url,
	})
	defer c.Close()
	c.Initialize(nil)
	waitSettled(t, c)

	assert.Equal(t, 1, f.backend.callCount(target))
	assert.Equal(t, "page=0", f.url.Query())
}

func TestCachedPageResolvesSynchronously(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	second := urlFor(params.Params{"page": 1})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"p0"}, HasNext: true})
	f.backend.respond(second, http.StatusOK, page{Data: []string{"p1"}, HasPrevious: true})

	c := f.controller(t)
	c.Initialize(nil)
	waitSettled(t, c)

	require.True(t, c.NextPage())
	waitSettled(t, c)
	assert.Equal(t, []string{"p1"}, c.DataToShow().Data)

	require.True(t, c.PreviousPage())
	assert.Equal(t, pagestate.Loaded, c.State().Phase(), "revisited page comes from cache")
	assert.Equal(t, []string{"p0"}, c.DataToShow().Data)
	assert.Equal(t, 1, f.backend.callCount(first))
}

func TestTwoControllersShareOneRequest(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"shared"}})
	gate := f.backend.gate(first)

	a := f.controller(t)
	b := f.controller(t)
	a.Initialize(nil)
	b.Initialize(nil)
	time.Sleep(20 * time.Millisecond)
	close(gate)

	waitSettled(t, a)
	waitSettled(t, b)
	assert.Equal(t, 1, f.backend.callCount(first))
	assert.Equal(t, []string{"shared"}, a.DataToShow().Data)
	assert.Equal(t, []string{"shared"}, b.DataToShow().Data)
}

func TestRefreshBypassesCache(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"v1"}})

	c := f.controller(t)
	c.Refresh()
	assert.False(t, c.HasRunInitialize(), "refresh before initialize is a no-op")

	c.Initialize(nil)
	waitSettled(t, c)

	f.backend.respond(first, http.StatusOK, page{Data: []string{"v2"}})
	gate := f.backend.gate(first)
	c.Refresh()
	assert.True(t, c.IsLoadingUpdatedData())
	assert.Equal(t, []string{"v1"}, c.DataToShow().Data)
	close(gate)
	waitSettled(t, c)

	assert.Equal(t, []string{"v2"}, c.DataToShow().Data)
	assert.Equal(t, 2, f.backend.callCount(first))
}

func TestURLSyncCanBeDisabled(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"c"}})
	f.url.SetQuery("tab=builds")

	c := f.controller(t)
	c.SetURLSync(false)
	c.Initialize(nil)
	waitSettled(t, c)
	assert.Equal(t, "tab=builds", f.url.Query())

	c.UpdateWindowURL()
	assert.Equal(t, "page=0", f.url.Query())
}

func TestSubscribeSeesTransitions(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"c"}})

	c := f.controller(t)
	var mu sync.Mutex
	var phases []pagestate.Phase
	cancel := c.Subscribe(func() {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, c.State().Phase())
	})

	c.Initialize(nil)
	waitSettled(t, c)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []pagestate.Phase{pagestate.Loading, pagestate.Loaded}, phases)
	mu.Unlock()

	cancel()
	c.UpdateWithParams(params.Params{"page": 0}, false)
	mu.Lock()
	assert.Len(t, phases, 2)
	mu.Unlock()
}

func TestPaginationLinks(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t)

	links := c.PaginationLinks()
	require.Len(t, links, 2)
	assert.False(t, links[0].Enabled)
	assert.False(t, links[1].Enabled)
	assert.Empty(t, c.PagingLinks())

	mid := urlFor(params.Params{"page": 2})
	f.backend.respond(mid, http.StatusOK, page{Data: []string{"m"}, HasNext: true, HasPrevious: true})
	c.Initialize(params.Params{"page": 2})
	waitSettled(t, c)

	links = c.PaginationLinks()
	assert.True(t, links[0].Enabled)
	assert.True(t, links[1].Enabled)
	assert.Len(t, c.PagingLinks(), 2)

	links[1].OnClick()
	assert.Equal(t, 3, c.CurrentParams().Page())
}

func TestCloseDropsPendingResponse(t *testing.T) {
	f := newFixture(t)
	first := urlFor(params.Params{"page": 0})
	f.backend.respond(first, http.StatusOK, page{Data: []string{"late"}})
	gate := f.backend.gate(first)

	c := f.controller(t)
	c.Initialize(nil)
	c.Close()
	close(gate)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, pagestate.Loading, c.State().Phase())
	assert.Nil(t, c.DataToShow())
}
