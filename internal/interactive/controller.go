// Package interactive owns the data-fetching lifecycle of one paginated view:
// it fetches pages, tracks loading and error states, keeps the view's params
// in the shareable URL and decides whether stale data is shown while a
// refresh is in flight.
//
// Views only read the Controller and call its methods; they never touch the
// params codec, request cache or page state directly. Every transition is
// reported to subscribers, and no error ever escapes to the view: failures of
// any kind become the Failed state.
package interactive

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"cidash/internal/logging"
	"cidash/internal/metrics"
	"cidash/internal/pagestate"
	"cidash/internal/params"
	"cidash/internal/reqcache"
	"cidash/internal/transport"
	"cidash/internal/urlstore"
)

// Decoder turns a successful response for the given params into a page.
type Decoder[T any] func(resp *transport.Response, current params.Params) (*pagestate.Result[T], error)

// Config wires a Controller to its collaborators.
type Config[T any] struct {
	// Name identifies the view in logs, e.g. "commits".
	Name string
	// Endpoint is the backend path. A query on it is sent with every
	// request but never becomes part of the view's params.
	Endpoint string
	// Defaults fill params missing at Initialize.
	Defaults  params.Params
	Transport transport.Loader
	Cache     *reqcache.Cache[*pagestate.Result[T]]
	Decode    Decoder[T]
	// URL may be nil for views that are not bookmarkable.
	URL    urlstore.Store
	Logger logr.Logger
}

// ProgrammingError is a misconfiguration or invalid value that reached the
// controller. It is rendered as a failure rather than raised.
type ProgrammingError struct {
	Msg string
	Err error
}

func (e *ProgrammingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ProgrammingError) Unwrap() error { return e.Err }

// ErrorInfo is what an error banner needs.
type ErrorInfo struct {
	Err error
	// Response is set when the backend answered with a non-2xx status.
	Response *transport.Response
}

// Controller is safe for concurrent use. Create one per mounted view and
// Close it on unmount.
type Controller[T any] struct {
	cfg      Config[T]
	path     string
	fixed    params.Params
	setupErr error
	log      logr.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	initialized bool
	current     params.Params
	state       pagestate.State[T]
	seq         uint64 // id of the latest issued request
	urlSync     bool
	observers   map[uint64]func()
	nextObs     uint64
}

// New returns a controller in the NotLoaded state. Nothing is fetched until
// Initialize or UpdateWithParams.
func New[T any](ctx context.Context, cfg Config[T]) *Controller[T] {
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Controller[T]{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		current:   cfg.Defaults.Clone(),
		urlSync:   true,
		observers: make(map[uint64]func()),
		log: cfg.Logger.WithName("interactive").WithValues(
			"view", cfg.Name, "controller", uuid.NewString()),
	}
	c.setupErr = c.setup()
	return c
}

func (c *Controller[T]) setup() error {
	switch {
	case c.cfg.Transport == nil:
		return &ProgrammingError{Msg: "no transport configured for " + c.cfg.Name}
	case c.cfg.Cache == nil:
		return &ProgrammingError{Msg: "no request cache configured for " + c.cfg.Name}
	case c.cfg.Decode == nil:
		return &ProgrammingError{Msg: "no decoder configured for " + c.cfg.Name}
	}
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil || c.cfg.Endpoint == "" {
		return &ProgrammingError{Msg: fmt.Sprintf("invalid endpoint %q", c.cfg.Endpoint), Err: err}
	}
	fixed, err := params.Decode(u.RawQuery)
	if err != nil {
		return &ProgrammingError{Msg: "invalid endpoint query", Err: err}
	}
	u.RawQuery = ""
	c.path = u.String()
	c.fixed = fixed
	return nil
}

// Close stops delivery of pending responses and drops subscribers.
func (c *Controller[T]) Close() {
	c.cancel()
	c.mu.Lock()
	c.observers = make(map[uint64]func())
	c.mu.Unlock()
}

// ParamsFromURL decodes the store's query. Malformed queries are not an
// error for the user: they yield nil and the view falls back to defaults.
func ParamsFromURL(store urlstore.Store, logger logr.Logger) params.Params {
	if store == nil {
		return nil
	}
	p, err := params.Decode(store.Query())
	if err != nil {
		logger.V(logging.DEBUG).Info("Ignoring malformed URL params", "err", err)
		return nil
	}
	return p
}

// HasRunInitialize reports whether the first fetch has been issued.
func (c *Controller[T]) HasRunInitialize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Initialize seeds params from initial over the defaults and issues the
// first fetch. Later calls are no-ops.
func (c *Controller[T]) Initialize(initial params.Params) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	next := params.Merge(c.cfg.Defaults, initial, false)
	c.mu.Unlock()

	c.log.V(logging.VERBOSE).Info("Initializing", "params", next)
	c.fetch(next, false)
}

// UpdateWithParams merges patch into the current params and fetches. The
// displayed data stays until the new page arrives. resetPage returns to the
// first page, as a filter change should.
func (c *Controller[T]) UpdateWithParams(patch params.Params, resetPage bool) {
	c.mu.Lock()
	c.initialized = true
	next := params.Merge(c.current, patch, resetPage)
	c.mu.Unlock()

	c.fetch(next, false)
}

// Refresh refetches the current params, bypassing the cache. Used by live
// update polling.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	next := c.current.Clone()
	c.mu.Unlock()

	c.fetch(next, true)
}

func (c *Controller[T]) fetch(next params.Params, invalidate bool) {
	c.mu.Lock()
	c.current = next
	c.seq++
	seq := c.seq

	key, err := c.requestURL(next)
	if err != nil {
		c.state = c.state.Begin().Reject(err)
		c.mu.Unlock()
		c.log.Error(err, "Cannot issue request")
		c.notify()
		return
	}
	if invalidate {
		c.cfg.Cache.Invalidate(key)
	}
	if r, ok := c.cfg.Cache.Peek(key); ok {
		c.state = c.state.Begin().Resolve(r)
		syncURL := c.urlSync
		c.mu.Unlock()
		c.log.V(logging.DEBUG).Info("Served from cache", "url", key)
		if syncURL {
			c.UpdateWindowURL()
		}
		c.notify()
		return
	}
	c.state = c.state.Begin()
	c.mu.Unlock()

	c.notify()
	go c.load(seq, key, next)
}

func (c *Controller[T]) load(seq uint64, key string, p params.Params) {
	r, err := c.cfg.Cache.Fetch(c.ctx, key, func(ctx context.Context) (*pagestate.Result[T], error) {
		resp, err := c.cfg.Transport.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		res, err := c.cfg.Decode(resp, p)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return res, nil
	})

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	if seq != c.seq {
		c.mu.Unlock()
		metrics.RecordStaleResponse()
		c.log.V(logging.DEBUG).Info("Dropping superseded response", "url", key)
		return
	}
	if err != nil {
		c.state = c.state.Reject(err)
	} else {
		c.state = c.state.Resolve(r)
	}
	syncURL := err == nil && c.urlSync
	c.mu.Unlock()

	if err != nil {
		c.log.V(logging.DEFAULT).Info("Load failed", "url", key, "err", err)
	}
	if syncURL {
		c.UpdateWindowURL()
	}
	c.notify()
}

// requestURL is the request identity: endpoint path plus the canonical
// encoding of the endpoint's fixed query and p. Callers hold c.mu.
func (c *Controller[T]) requestURL(p params.Params) (string, error) {
	if c.setupErr != nil {
		return "", c.setupErr
	}
	q, err := params.Encode(params.Merge(c.fixed, p, false))
	if err != nil {
		return "", &ProgrammingError{Msg: "cannot encode params", Err: err}
	}
	if q == "" {
		return c.path, nil
	}
	return c.path + "?" + q, nil
}

// SetURLSync turns automatic URL updates after each load on or off. Views
// that are not on screen should not own the URL.
func (c *Controller[T]) SetURLSync(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urlSync = enabled
}

// UpdateWindowURL writes the canonical encoding of the current params to the
// URL store without navigating.
func (c *Controller[T]) UpdateWindowURL() {
	if c.cfg.URL == nil {
		return
	}
	c.mu.Lock()
	q, err := params.Encode(c.current)
	c.mu.Unlock()
	if err != nil {
		c.log.Error(err, "Cannot encode params for URL")
		return
	}
	c.cfg.URL.SetQuery(q)
}

// Subscribe registers fn to run after every state transition. fn runs on the
// goroutine that caused the transition and must not block.
func (c *Controller[T]) Subscribe(fn func()) (cancel func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller[T]) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// State returns a snapshot of the fetch state.
func (c *Controller[T]) State() pagestate.State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DataToShow is the most recent good page, nil before any successful load.
func (c *Controller[T]) DataToShow() *pagestate.Result[T] {
	return c.State().DataToShow()
}

// HasNotLoadedInitialData is true until the first response, good or bad.
func (c *Controller[T]) HasNotLoadedInitialData() bool {
	return c.State().HasNotLoadedInitialData()
}

// IsLoadingUpdatedData is true while a refresh runs over displayed data.
func (c *Controller[T]) IsLoadingUpdatedData() bool {
	return c.State().IsLoadingUpdatedData()
}

// FailedToLoadUpdatedData is true after the latest request failed.
func (c *Controller[T]) FailedToLoadUpdatedData() bool {
	return c.State().FailedToLoadUpdatedData()
}

// DataForErrorMessage describes the latest failure, nil if there is none.
func (c *Controller[T]) DataForErrorMessage() *ErrorInfo {
	err := c.State().Err()
	if err == nil {
		return nil
	}
	return &ErrorInfo{Err: err, Response: transport.ResponseOf(err)}
}

// CurrentParams returns a copy of the params of the latest request.
func (c *Controller[T]) CurrentParams() params.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// HasPreviousPage reads the displayed page's pagination.
func (c *Controller[T]) HasPreviousPage() bool {
	r := c.DataToShow()
	return r != nil && r.Pagination.HasPrevious
}

// HasNextPage reads the displayed page's pagination.
func (c *Controller[T]) HasNextPage() bool {
	r := c.DataToShow()
	return r != nil && r.Pagination.HasNext
}
