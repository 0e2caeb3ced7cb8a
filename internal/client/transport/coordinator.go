package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/apierr"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/session"
)

// RefreshFunc performs the token refresh call and returns the new access
// token expiry.
type RefreshFunc func(ctx context.Context) (time.Time, error)

// ReplayFunc re-sends a request that was parked behind a refresh.
type ReplayFunc func(ctx context.Context, req *Request) (*Response, error)

type CoordinatorConfig struct {
	State   *session.State
	Store   session.Store
	Refresh RefreshFunc
	Replay  ReplayFunc
	// OnRefreshFailure applies the session-loss policy. It runs before
	// parked requests are rejected.
	OnRefreshFailure func(ctx context.Context, reason apierr.Error)
	Logger           logging.Logger
	Metrics          *metrics.Metrics
	Now              func() time.Time
}

type result struct {
	resp *Response
	err  error
}

// pending is a request parked behind an in-flight refresh. A nil req is a
// caller that only waits for the refresh to settle.
type pending struct {
	ctx  context.Context
	req  *Request
	done chan result
}

// Coordinator is the single-flight refresh state machine. It is the only
// writer of the session state.
//
// It is Idle when the state's refreshing flag is clear and Refreshing
// otherwise. The queue only grows while Refreshing and is emptied in the
// same critical section that returns to Idle.
type Coordinator struct {
	mu    sync.Mutex
	queue []*pending

	state            *session.State
	store            session.Store
	refresh          RefreshFunc
	replay           ReplayFunc
	onRefreshFailure func(ctx context.Context, reason apierr.Error)

	logger  logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		state:            cfg.State,
		store:            cfg.Store,
		refresh:          cfg.Refresh,
		replay:           cfg.Replay,
		onRefreshFailure: cfg.OnRefreshFailure,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		now:              cfg.Now,
	}
	if c.state == nil {
		c.state = session.NewState()
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.onRefreshFailure == nil {
		c.onRefreshFailure = func(ctx context.Context, _ apierr.Error) { c.Clear(ctx) }
	}
	return c
}

// Pending returns the number of parked requests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Proactive refreshes the token ahead of expiry. When a refresh is already
// in flight it returns nil at once; that refresh covers the need. A failed
// refresh is returned wrapped in ErrSessionExpired.
func (c *Coordinator) Proactive(ctx context.Context) error {
	if !c.begin() {
		return nil
	}
	if err := c.run(ctx, metrics.TriggerProactive); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return nil
}

// Reactive handles a request that was rejected with 401. The first caller
// refreshes; callers arriving while the refresh runs are parked and get
// the result of their replay (or the refresh error) once it settles.
// The returned response comes from re-sending req exactly once.
func (c *Coordinator) Reactive(ctx context.Context, req *Request) (*Response, error) {
	if p := c.park(ctx, req); p != nil {
		return c.wait(ctx, p)
	}

	if err := c.run(ctx, metrics.TriggerReactive); err != nil {
		return nil, err
	}
	return c.replay(ctx, req)
}

// Refresh forces a token refresh, or waits for the one in flight.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if p := c.park(ctx, nil); p != nil {
		_, err := c.wait(ctx, p)
		return err
	}
	return c.run(ctx, metrics.TriggerManual)
}

// Establish records a freshly issued session, e.g. after sign-in.
func (c *Coordinator) Establish(ctx context.Context, expiry time.Time) {
	if !c.state.Establish(expiry) {
		c.logger.Warn(ctx, "ignoring session without expiry")
		return
	}
	c.persist(ctx)
}

// Clear signs the session out.
func (c *Coordinator) Clear(ctx context.Context) {
	c.state.Clear()
	c.persist(ctx)
}

func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TryBeginRefresh()
}

// park takes ownership of the refresh and returns nil, or, when a refresh
// is already running, queues the caller and returns its handle.
func (c *Coordinator) park(ctx context.Context, req *Request) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.TryBeginRefresh() {
		return nil
	}
	p := &pending{ctx: ctx, req: req, done: make(chan result, 1)}
	c.queue = append(c.queue, p)
	c.metrics.RequestParked()
	return p
}

// wait blocks until p is settled. A cancelled caller stops waiting, but p
// stays queued and is still drained; done is buffered so the drain never
// blocks on it.
func (c *Coordinator) wait(ctx context.Context, p *pending) (*Response, error) {
	select {
	case r := <-p.done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run performs the refresh owned by the caller and settles the queue.
// The refresh outlives the caller's cancellation: abandoning it halfway
// would log the user out.
func (c *Coordinator) run(ctx context.Context, trigger string) error {
	refreshCtx := context.WithoutCancel(ctx)
	c.logger.Info(ctx, "refreshing access token", "trigger", trigger)

	start := c.now()
	expiry, err := c.refresh(refreshCtx)
	c.metrics.ObserveRefresh(trigger, err == nil, c.now().Sub(start))

	if err != nil {
		reason := classifyRefreshError(err)
		c.logger.Warn(ctx, "access token refresh failed", "trigger", trigger, "kind", reason.Kind.String())
		c.onRefreshFailure(refreshCtx, reason)
		c.settle(reason)
		return reason
	}

	c.Establish(refreshCtx, expiry)
	n := c.settle(nil)
	c.logger.Info(ctx, "access token refreshed", "trigger", trigger, "expires_at", expiry, "replayed", n)
	return nil
}

// settle returns to Idle and drains the queue exactly once. On failure
// each parked request is rejected with failure. On success each is replayed
// in its own goroutine, and a replay is not written to the wire before the
// one parked ahead of it; responses still complete in any order.
func (c *Coordinator) settle(failure error) int {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.state.EndRefresh()
	c.mu.Unlock()

	prev := make(chan struct{})
	close(prev)
	for _, p := range queue {
		switch {
		case failure != nil:
			p.done <- result{err: failure}
		case p.req == nil:
			p.done <- result{}
		default:
			sent := make(chan struct{})
			go c.replayParked(p, prev, sent)
			prev = sent
		}
	}
	return len(queue)
}

// replayParked waits for the previous replay to be sent, then replays p.
// sent is closed once p's request is written or its replay has returned,
// whichever comes first.
func (c *Coordinator) replayParked(p *pending, prev <-chan struct{}, sent chan struct{}) {
	var once sync.Once
	markSent := func() { once.Do(func() { close(sent) }) }
	defer markSent()

	<-prev

	req := *p.req
	req.sent = markSent
	resp, err := c.replay(p.ctx, &req)
	c.metrics.ObserveReplay(err == nil)
	p.done <- result{resp: resp, err: err}
}

func (c *Coordinator) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(context.WithoutCancel(ctx), c.state.Persisted()); err != nil {
		c.logger.Warn(ctx, "failed to persist session", "err", err)
	}
}

func classifyRefreshError(err error) apierr.Error {
	if e, ok := apierr.As(err); ok {
		return e
	}
	return apierr.Classify(apierr.Failure{Err: err})
}
