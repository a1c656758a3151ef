package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"supervisor-console/internal/logger"
	"supervisor-console/internal/model"
	"supervisor-console/internal/ticker"
	"supervisor-console/internal/upstream"
	"supervisor-console/internal/worker"
)

// Collaborator is the external supervisor API.
type Collaborator interface {
	Login(ctx context.Context, supervisorID, mobile string) (string, error)
	VerifyOTP(ctx context.Context, challengeToken, supervisorID, mobile, otp string) (string, error)
	ResendOTP(ctx context.Context, supervisorID, mobile string) (string, error)
	SupervisorDetails(ctx context.Context, accessToken, supervisorID string) (model.SupervisorProfile, error)
	MeterReaders(ctx context.Context, accessToken, supervisorID string) ([]model.MeterReader, error)
}

// Notifier presents notices to the user.
type Notifier interface {
	Publish(n model.Notice)
}

// Journal records flow transitions.
type Journal interface {
	RecordTransition(ctx context.Context, ev *model.FlowEvent) error
}

// Deps are the collaborators of a Controller. Journal and Notices may be nil.
type Deps struct {
	Upstream Collaborator
	Notices  Notifier
	Journal  Journal
	Ticker   ticker.Source
	Pool     *worker.Pool
	Now      func() time.Time
	NewID    func() string
}

const journalTimeout = 2 * time.Second

type request struct {
	ev    Event
	reply chan result
}

type result struct {
	snap Snapshot
	err  error
}

// Controller serialises every event of the login flow on one goroutine.
// Upstream calls run on the worker pool and report back as events.
type Controller struct {
	opts Options
	deps Deps

	requests    chan request
	completions chan Event
	done        chan struct{}

	mu   sync.RWMutex
	snap Snapshot
	subs map[int]chan Snapshot
	next int

	stopTick func()
	stale    atomic.Int64
}

// NewController creates a controller in the LoggedOut state. Call Run to start it.
func NewController(opts Options, deps Deps) *Controller {
	if deps.Ticker == nil {
		deps.Ticker = ticker.Clock{}
	}
	if deps.Pool == nil {
		deps.Pool = worker.NewPool(4, 16)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{
		opts:        opts,
		deps:        deps,
		requests:    make(chan request),
		completions: make(chan Event, 16),
		done:        make(chan struct{}),
		snap:        Initial(),
		subs:        make(map[int]chan Snapshot),
	}
}

// Run processes events until ctx is cancelled. Cancelling ctx also stops the
// ticker and the worker pool, which cancels in-flight upstream requests.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	defer c.stopTicker()

	c.deps.Pool.Start(ctx)
	logger.Log.Info("Login flow controller started")

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Login flow controller stopped")
			return
		case req := <-c.requests:
			snap, err := c.handle(ctx, req.ev)
			req.reply <- result{snap: snap, err: err}
		case ev := <-c.completions:
			c.handle(ctx, ev)
		}
	}
}

// Dispatch submits a user event and waits until it has been reduced. It
// returns the snapshot after the reduction and the reduction error, if any.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	req := request{ev: ev, reply: make(chan result, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		return c.Snapshot(), ErrStopped
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.snap, r.err
	case <-c.done:
		return c.Snapshot(), ErrStopped
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Snapshot returns the current snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// Subscribe returns a channel that always holds the latest snapshot after a
// change. Intermediate snapshots may be skipped. Call cancel to unsubscribe.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// WaitFor blocks until pred holds for the current snapshot.
func (c *Controller) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	ch, cancel := c.Subscribe()
	defer cancel()

	if s := c.Snapshot(); pred(s) {
		return s, nil
	}
	for {
		select {
		case s := <-ch:
			if pred(s) {
				return s, nil
			}
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case <-c.done:
			return c.Snapshot(), ErrStopped
		}
	}
}

// Stale returns how many completions and ticks were discarded as stale.
func (c *Controller) Stale() int64 {
	return c.stale.Load()
}

// handle reduces ev and any failure events produced while running its
// effects. The returned error belongs to ev itself.
func (c *Controller) handle(ctx context.Context, ev Event) (Snapshot, error) {
	queue := []Event{ev}
	var first error
	for i := 0; len(queue) > 0; i++ {
		e := queue[0]
		queue = queue[1:]

		prev := c.current()
		next, effects, err := Reduce(prev, e, c.opts, Env{Now: c.deps.Now(), NewID: c.deps.NewID})
		if i == 0 {
			first = err
		}
		if errors.Is(err, ErrStale) {
			c.stale.Add(1)
			logger.Log.WithField("event", e.Name()).Debug("Discarded stale event")
			continue
		}
		if err == nil {
			c.set(next)
			c.record(ctx, prev, next, e, effects)
		}

		for _, eff := range effects {
			if failed := c.run(ctx, eff); failed != nil {
				queue = append(queue, failed)
			}
		}
	}
	return c.current(), first
}

// run carries out one effect. When a call cannot be queued it returns the
// failure completion to reduce instead.
func (c *Controller) run(ctx context.Context, eff Effect) Event {
	up := c.deps.Upstream
	switch eff := eff.(type) {
	case CallLogin:
		ok := c.deps.Pool.TryDispatch(func(ctx context.Context) {
			token, err := up.Login(ctx, eff.SupervisorID, eff.Mobile)
			logFailure("login", eff.SupervisorID, err)
			c.post(LoginCompleted{Attempt: eff.Attempt, SupervisorID: eff.SupervisorID, Mobile: eff.Mobile, Token: token, Err: err})
		})
		if !ok {
			return LoginCompleted{Attempt: eff.Attempt, SupervisorID: eff.SupervisorID, Mobile: eff.Mobile, Err: saturated("login")}
		}
	case CallVerify:
		ok := c.deps.Pool.TryDispatch(func(ctx context.Context) {
			token, err := up.VerifyOTP(ctx, eff.Token, eff.SupervisorID, eff.Mobile, eff.Code)
			logFailure("verify-otp", eff.SupervisorID, err)
			c.post(VerifyCompleted{ChallengeID: eff.ChallengeID, AccessToken: token, Err: err})
		})
		if !ok {
			return VerifyCompleted{ChallengeID: eff.ChallengeID, Err: saturated("verify-otp")}
		}
	case CallResend:
		ok := c.deps.Pool.TryDispatch(func(ctx context.Context) {
			token, err := up.ResendOTP(ctx, eff.SupervisorID, eff.Mobile)
			logFailure("resend-otp", eff.SupervisorID, err)
			c.post(ResendCompleted{ChallengeID: eff.ChallengeID, Token: token, Err: err})
		})
		if !ok {
			return ResendCompleted{ChallengeID: eff.ChallengeID, Err: saturated("resend-otp")}
		}
	case FetchProfile:
		ok := c.deps.Pool.TryDispatch(func(ctx context.Context) {
			profile, err := up.SupervisorDetails(ctx, eff.AccessToken, eff.SupervisorID)
			logFailure("supervisor-details", eff.SupervisorID, err)
			c.post(ProfileLoaded{SessionID: eff.SessionID, Profile: profile, Err: err})
		})
		if !ok {
			return ProfileLoaded{SessionID: eff.SessionID, Err: saturated("supervisor-details")}
		}
	case FetchReaders:
		ok := c.deps.Pool.TryDispatch(func(ctx context.Context) {
			readers, err := up.MeterReaders(ctx, eff.AccessToken, eff.SupervisorID)
			logFailure("meter-readers", eff.SupervisorID, err)
			c.post(ReadersLoaded{SessionID: eff.SessionID, Readers: readers, Err: err})
		})
		if !ok {
			return ReadersLoaded{SessionID: eff.SessionID, Err: saturated("meter-readers")}
		}
	case StartTicker:
		c.stopTicker()
		id := eff.ChallengeID
		c.stopTick = c.deps.Ticker.Start(time.Second, func() {
			c.postTick(Tick{ChallengeID: id})
		})
	case StopTicker:
		c.stopTicker()
	case Publish:
		if c.deps.Notices != nil {
			c.deps.Notices.Publish(eff.Notice)
		}
	}
	return nil
}

// post delivers a completion to the loop, or drops it once the loop has exited.
func (c *Controller) post(ev Event) {
	select {
	case c.completions <- ev:
	case <-c.done:
	}
}

// postTick never blocks. stopTicker waits for the ticker goroutine from
// inside the loop, so a full queue drops the tick.
func (c *Controller) postTick(ev Tick) {
	select {
	case c.completions <- ev:
	default:
		logger.Log.Debug("Dropped countdown tick, event queue full")
	}
}

func (c *Controller) stopTicker() {
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
}

func (c *Controller) current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Controller) set(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s
	for _, ch := range c.subs {
		select {
		case ch <- s.Clone():
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s.Clone()
		}
	}
}

// record journals state changes and the outcome of every upstream completion.
func (c *Controller) record(ctx context.Context, prev, next Snapshot, ev Event, effects []Effect) {
	completion := false
	switch ev.(type) {
	case LoginCompleted, VerifyCompleted, ResendCompleted:
		completion = true
	}
	if prev.State == next.State && !completion {
		return
	}

	outcome := "ok"
	for _, eff := range effects {
		if p, ok := eff.(Publish); ok && p.Notice.Kind == model.NoticeFailure {
			outcome = string(p.Notice.Category)
		}
	}

	supervisorID := next.SupervisorID()
	if supervisorID == "" {
		supervisorID = prev.SupervisorID()
	}
	if supervisorID == "" {
		if lc, ok := ev.(LoginCompleted); ok {
			supervisorID = lc.SupervisorID
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"supervisor_id": supervisorID,
		"event":         ev.Name(),
		"from":          prev.State,
		"to":            next.State,
		"outcome":       outcome,
	}).Info("Flow transition")

	if c.deps.Journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	err := c.deps.Journal.RecordTransition(jctx, &model.FlowEvent{
		SupervisorID: supervisorID,
		FromState:    prev.State,
		ToState:      next.State,
		Event:        ev.Name(),
		Outcome:      outcome,
		CreatedAt:    c.deps.Now().UTC(),
	})
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to record flow transition")
	}
}

func saturated(op string) error {
	return &upstream.Error{Op: op, Kind: upstream.KindTransport, Err: ErrPoolSaturated}
}

func logFailure(op, supervisorID string, err error) {
	if err == nil {
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"op":            op,
		"supervisor_id": supervisorID,
		"kind":          upstream.KindOf(err),
	}).WithError(err).Warn("Upstream call failed")
}
