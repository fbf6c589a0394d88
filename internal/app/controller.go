package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hylla/nudger/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Default refresh cadence per source.
const (
	DefaultLeadsInterval    = 60 * time.Second
	DefaultDealsInterval    = 60 * time.Second
	DefaultCapturesInterval = 30 * time.Second
	DefaultFetchTimeout     = 10 * time.Second
	DefaultDismissDuration  = 100 * 365 * 24 * time.Hour
)

// View is the latest published worklist.
type View struct {
	Nudges      []domain.Nudge      `json:"nudges"`
	Summary     domain.NudgeSummary `json:"summary"`
	Enabled     bool                `json:"enabled"`
	IsLoading   bool                `json:"is_loading"`
	GeneratedAt time.Time           `json:"generated_at"`
	CycleID     string              `json:"cycle_id"`
}

// ControllerConfig holds configuration for the refresh controller.
type ControllerConfig struct {
	LeadsInterval    time.Duration
	DealsInterval    time.Duration
	CapturesInterval time.Duration
	// FetchTimeout bounds each individual source fetch; zero disables the bound.
	FetchTimeout    time.Duration
	DismissDuration time.Duration
	IDGen           func() string
	Logger          Logger
}

// DefaultControllerConfig returns the default cadence.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		LeadsInterval:    DefaultLeadsInterval,
		DealsInterval:    DefaultDealsInterval,
		CapturesInterval: DefaultCapturesInterval,
		FetchTimeout:     DefaultFetchTimeout,
		DismissDuration:  DefaultDismissDuration,
	}
}

// Controller owns the current view and refreshes each source on its own schedule.
type Controller struct {
	engine *Engine
	cfg    ControllerConfig
	log    Logger

	group    singleflight.Group
	inflight map[SourceKind]*atomic.Bool
	loading  atomic.Int32
	// life bounds shared fetches; it ends when the controller shuts down.
	life context.Context
	stop context.CancelFunc
	// seq orders recomputes by when they began reading state.
	seq atomic.Uint64

	mu        sync.Mutex
	records   domain.Records
	fetched   bool
	view      View
	published uint64
	subs    map[chan View]struct{}
	running bool
	closed  bool
}

// NewController constructs a refresh controller over engine.
func NewController(engine *Engine, cfg ControllerConfig) *Controller {
	defaults := DefaultControllerConfig()
	if cfg.LeadsInterval <= 0 {
		cfg.LeadsInterval = defaults.LeadsInterval
	}
	if cfg.DealsInterval <= 0 {
		cfg.DealsInterval = defaults.DealsInterval
	}
	if cfg.CapturesInterval <= 0 {
		cfg.CapturesInterval = defaults.CapturesInterval
	}
	if cfg.DismissDuration <= 0 {
		cfg.DismissDuration = defaults.DismissDuration
	}
	if cfg.IDGen == nil {
		cfg.IDGen = func() string { return "" }
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	inflight := make(map[SourceKind]*atomic.Bool, len(AllSources))
	for _, kind := range AllSources {
		inflight[kind] = &atomic.Bool{}
	}
	life, stop := context.WithCancel(context.Background())
	return &Controller{
		engine:   engine,
		cfg:      cfg,
		log:      cfg.Logger,
		inflight: inflight,
		life:     life,
		stop:     stop,
		view:     View{Nudges: []domain.Nudge{}, Enabled: true},
		subs:     map[chan View]struct{}{},
	}
}

// Snoozes returns the snooze store backing the controller.
func (c *Controller) Snoozes() *SnoozeStore {
	return c.engine.Snoozes()
}

// Now returns the controller clock's current time.
func (c *Controller) Now() time.Time {
	return c.engine.Now()
}

// Current returns the latest published view.
func (c *Controller) Current() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Subscribe returns a channel receiving every published view, starting with the current one.
// Slow subscribers only ever see the newest view. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- c.view
	c.subs[ch] = struct{}{}
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

// Run performs an initial refresh, then refreshes each source on its interval until ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrControllerClosed
	case c.running:
		c.mu.Unlock()
		return ErrControllerRunning
	}
	c.running = true
	c.mu.Unlock()
	defer c.shutdown()

	if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.log.Warn("initial refresh failed", "err", err)
	}

	var ticks sync.WaitGroup
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range AllSources {
		g.Go(func() error {
			ticker := time.NewTicker(c.interval(kind))
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if c.inflight[kind].Load() {
						c.log.Debug("refresh tick ignored; fetch in flight", "source", kind)
						continue
					}
					ticks.Go(func() { c.refreshSource(gctx, kind) })
				}
			}
		})
	}
	err := g.Wait()
	ticks.Wait()
	return err
}

// Refresh fetches all sources concurrently and publishes once every fetch has resolved.
// Nothing is published when ctx ends first.
func (c *Controller) Refresh(ctx context.Context) (View, error) {
	if err := c.checkOpen(); err != nil {
		return View{}, err
	}
	settings := c.engine.Settings(ctx)
	if !settings.Enabled {
		return c.recompute(ctx)
	}

	c.beginLoad()
	var g errgroup.Group
	for _, kind := range AllSources {
		g.Go(func() error {
			c.fetch(ctx, kind)
			return nil
		})
	}
	_ = g.Wait()
	c.endLoad()

	if err := ctx.Err(); err != nil {
		return c.Current(), err
	}
	c.mu.Lock()
	c.fetched = true
	c.mu.Unlock()
	return c.recompute(ctx)
}

// Snooze suppresses id for duration and republishes from cached records.
func (c *Controller) Snooze(ctx context.Context, id string, duration time.Duration) (View, error) {
	if err := c.checkOpen(); err != nil {
		return View{}, err
	}
	if _, err := c.engine.Snoozes().Snooze(ctx, id, duration, c.engine.Now()); err != nil {
		return c.Current(), err
	}
	return c.recompute(ctx)
}

// Dismiss suppresses id for the configured dismiss duration.
func (c *Controller) Dismiss(ctx context.Context, id string) (View, error) {
	return c.Snooze(ctx, id, c.cfg.DismissDuration)
}

// Unsnooze ends any active snooze for id and republishes.
func (c *Controller) Unsnooze(ctx context.Context, id string) (View, error) {
	return c.Snooze(ctx, id, 0)
}

// SettingsChanged recomputes the view after a settings update.
// Records are fetched first when no cycle has completed yet.
func (c *Controller) SettingsChanged(ctx context.Context) (View, error) {
	c.mu.Lock()
	fetched := c.fetched
	c.mu.Unlock()
	if !fetched {
		return c.Refresh(ctx)
	}
	if err := c.checkOpen(); err != nil {
		return View{}, err
	}
	return c.recompute(ctx)
}

// refreshSource fetches one source and republishes.
func (c *Controller) refreshSource(ctx context.Context, kind SourceKind) {
	if !c.engine.Settings(ctx).Enabled {
		return
	}
	c.beginLoad()
	c.fetch(ctx, kind)
	c.endLoad()
	if ctx.Err() != nil {
		return
	}
	if _, err := c.recompute(ctx); err != nil && ctx.Err() == nil {
		c.log.Warn("recompute failed", "source", kind, "err", err)
	}
}

// fetch loads one source into the record cache. Concurrent callers for the same source share one fetch,
// which runs detached from every caller and ends only on FetchTimeout or shutdown.
// A failed source is cached as empty. A caller whose ctx ends stops waiting and merges nothing.
func (c *Controller) fetch(ctx context.Context, kind SourceKind) {
	ch := c.group.DoChan(string(kind), func() (any, error) {
		flag := c.inflight[kind]
		flag.Store(true)
		defer flag.Store(false)

		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		defer context.AfterFunc(c.life, cancel)()
		if c.cfg.FetchTimeout > 0 {
			var cancelTimeout context.CancelFunc
			fctx, cancelTimeout = context.WithTimeout(fctx, c.cfg.FetchTimeout)
			defer cancelTimeout()
		}
		records, err := c.engine.FetchSource(fctx, kind)
		if err != nil {
			if c.life.Err() != nil {
				return nil, c.life.Err()
			}
			c.log.Warn("source fetch failed", "source", kind, "err", err)
			return domain.Records{}, nil
		}
		return records, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return
	case res = <-ch:
	}
	if res.Err != nil || ctx.Err() != nil {
		return
	}
	records, _ := res.Val.(domain.Records)
	c.mu.Lock()
	mergeSource(&c.records, records, kind)
	c.mu.Unlock()
}

// recompute evaluates cached records and publishes the result unless ctx has ended.
// A result is dropped when a recompute that began later has already published.
func (c *Controller) recompute(ctx context.Context) (View, error) {
	seq := c.seq.Add(1)
	settings := c.engine.Settings(ctx)
	c.mu.Lock()
	records := c.records
	c.mu.Unlock()

	result := c.engine.Evaluate(ctx, settings, records, c.engine.Now())
	if err := ctx.Err(); err != nil {
		return c.Current(), err
	}
	view := View{
		Nudges:      result.Nudges,
		Summary:     result.Summary,
		Enabled:     result.Enabled,
		IsLoading:   c.loading.Load() > 0,
		GeneratedAt: result.GeneratedAt,
		CycleID:     c.cfg.IDGen(),
	}
	if !c.publish(view, seq) {
		c.log.Debug("stale nudges dropped", "cycle", view.CycleID, "seq", seq)
		return c.Current(), nil
	}
	c.log.Debug("nudges published", "cycle", view.CycleID, "total", view.Summary.Total, "enabled", view.Enabled)
	return view, nil
}

func (c *Controller) beginLoad() {
	if c.loading.Add(1) != 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	view := c.view
	view.IsLoading = true
	c.broadcastLocked(view)
}

func (c *Controller) endLoad() {
	c.loading.Add(-1)
}

// publish stores view unless a newer recompute already published, then offers it to every subscriber.
func (c *Controller) publish(view View, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq < c.published {
		return false
	}
	c.published = seq
	c.broadcastLocked(view)
	return true
}

// broadcastLocked replaces the current view and any unread subscriber view. c.mu must be held.
func (c *Controller) broadcastLocked(view View) {
	c.view = view
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	return nil
}

// shutdown closes the controller and every subscriber channel.
func (c *Controller) shutdown() {
	c.stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.running = false
	for ch := range c.subs {
		close(ch)
	}
	clear(c.subs)
}

func (c *Controller) interval(kind SourceKind) time.Duration {
	switch kind {
	case SourceLeads:
		return c.cfg.LeadsInterval
	case SourceDeals:
		return c.cfg.DealsInterval
	default:
		return c.cfg.CapturesInterval
	}
}
