// internal/game/engine.go
//
// Round controller for the number guessing game.
// Responsibilities:
//   - Start rounds with a secret drawn from [1, UpperBound].
//   - Track the pending guess text and apply submissions.
//   - Produce the hint for each submission: empty → invalid → low/high/correct.
//   - Schedule the automatic restart after a correct guess and hand the
//     caller a cancellable handle for it.
//   - Notify subscribers with a copy of the round after every transition.
//
// Notes:
//   - The restart timer fires on its own goroutine, so all state is guarded by mu.
//   - Each round carries a generation number; a timer from an older round never
//     resets a newer one.
//   - Round.Version increases with every transition, so observers that receive
//     snapshots out of order (subscribers run after mu is released) can drop
//     the older one.

package game

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultUpperBound   = 100
	DefaultRestartDelay = 5 * time.Second
)

// Controller owns one Round and the transitions over it.
type Controller struct {
	mu      sync.Mutex
	round   Round
	gen     uint64 // bumped by every round start
	restart Timer  // pending automatic restart, if any

	upper int
	delay time.Duration
	src   Source
	clock Clock
	log   zerolog.Logger

	subs    map[int]func(Round)
	nextSub int
}

// Option configures a Controller.
type Option func(*Controller)

// WithUpperBound sets the inclusive maximum of the range. Values below 1 are ignored.
func WithUpperBound(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.upper = n
		}
	}
}

// WithRestartDelay sets how long a solved round stays on screen before the next one starts.
func WithRestartDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithSource injects the random source used to draw answers.
func WithSource(s Source) Option {
	return func(c *Controller) {
		if s != nil {
			c.src = s
		}
	}
}

// WithClock injects the clock used for timestamps and the restart timer.
func WithClock(clk Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithID fixes the session ID instead of generating a UUID.
func WithID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.round.ID = id
		}
	}
}

func newController(opts []Option) *Controller {
	c := &Controller{
		upper: DefaultUpperBound,
		delay: DefaultRestartDelay,
		src:   DefaultSource,
		clock: SystemClock,
		log:   zerolog.Nop(),
		subs:  make(map[int]func(Round)),
	}
	for _, o := range opts {
		o(c)
	}
	if c.round.ID == "" {
		c.round.ID = uuid.NewString()
	}
	c.log = c.log.With().Str("roundId", c.round.ID).Logger()
	return c
}

// New constructs a controller and starts its first round.
func New(opts ...Option) *Controller {
	c := newController(opts)
	c.mu.Lock()
	c.startLocked()
	c.mu.Unlock()
	return c
}

// Restore rebuilds a controller from a previously captured round.
// The upper bound and ID come from r. A solved round resumes its restart
// countdown from SolvedAt; if the delay has already elapsed a new round
// starts immediately.
func Restore(r Round, opts ...Option) *Controller {
	opts = append(opts[:len(opts):len(opts)], WithID(r.ID), WithUpperBound(r.UpperBound))
	c := newController(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.round = r.clone()
	if !c.round.Hint.Valid() {
		c.round.Hint = HintNoRoundYet
	}
	c.gen = uint64(max(r.Number, 0))
	if c.round.Solved() {
		left := c.delay - c.clock.Now().Sub(r.SolvedAt)
		if left <= 0 {
			c.startLocked()
		} else {
			c.scheduleLocked(left)
		}
	}
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round.ID
}

// Snapshot returns a copy of the current round.
func (c *Controller) Snapshot() Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round.clone()
}

// StartNewRound draws a fresh answer and resets every other field.
// Any pending automatic restart is cancelled.
func (c *Controller) StartNewRound() Round {
	c.mu.Lock()
	c.startLocked()
	snap, subs := c.round.clone(), c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
	return snap
}

// UpdatePendingGuess replaces the text of the next guess. No validation
// happens here. It is ignored while the round is solved.
func (c *Controller) UpdatePendingGuess(text string) Round {
	c.mu.Lock()
	if c.round.Solved() {
		snap := c.round.clone()
		c.mu.Unlock()
		return snap
	}
	c.round.Pending = text
	c.round.Version++
	snap, subs := c.round.clone(), c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
	return snap
}

// SubmitGuess applies the pending text and returns the resulting round.
//
// Rules:
//   - Blank text → HintEmptySubmission, nothing recorded.
//   - Text that is not a base-10 integer → HintInvalidInput, nothing recorded.
//   - Otherwise the value is appended to Guesses and compared with Answer.
//
// A correct guess schedules StartNewRound after the restart delay and the
// returned *Restart can cancel it; for every other outcome it is nil.
// Submitting to a solved round changes nothing.
func (c *Controller) SubmitGuess() (Round, *Restart) {
	c.mu.Lock()
	if c.round.Solved() {
		snap := c.round.clone()
		c.mu.Unlock()
		return snap, nil
	}

	text := c.round.Pending
	c.round.LastGuess = text
	c.round.Pending = ""
	c.round.Version++

	var restart *Restart
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		c.round.Hint = HintEmptySubmission
	} else if g, err := strconv.Atoi(trimmed); err != nil {
		c.round.Hint = HintInvalidInput
	} else {
		c.round.Guesses = append(c.round.Guesses, g)
		switch {
		case g == c.round.Answer:
			c.round.Hint = HintCorrect
			c.round.SolvedAt = c.clock.Now()
			restart = c.scheduleLocked(c.delay)
			c.log.Debug().Int("round", c.round.Number).Int("guesses", len(c.round.Guesses)).Msg("round solved")
		case g < c.round.Answer:
			c.round.Hint = HintTooLow
		default:
			c.round.Hint = HintTooHigh
		}
	}
	snap, subs := c.round.clone(), c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
	return snap, restart
}

// Subscribe registers fn to receive a copy of the round after every
// transition, including timer-driven restarts. fn runs outside the
// controller's lock and may call back into it. The returned func
// removes the subscription.
func (c *Controller) Subscribe(fn func(Round)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Close cancels a pending restart and drops all subscribers.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	clear(c.subs)
}

// Restart is the handle for an automatic restart scheduled by a correct guess.
type Restart struct {
	c     *Controller
	gen   uint64
	timer Timer
	Delay time.Duration // time until the next round starts
}

// Cancel stops the restart if it is still pending for the same round.
// It reports whether the restart was prevented. After a cancel the round
// stays solved until StartNewRound is called.
func (r *Restart) Cancel() bool {
	if r == nil {
		return false
	}
	c := r.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != r.gen || c.restart != r.timer {
		return false
	}
	c.restart = nil
	return r.timer.Stop()
}

// startLocked begins a new round. Caller holds mu.
func (c *Controller) startLocked() {
	c.stopLocked()
	c.gen++
	c.round = Round{
		ID:         c.round.ID,
		Number:     c.round.Number + 1,
		Version:    c.round.Version + 1,
		Answer:     c.src.IntN(1, c.upper),
		UpperBound: c.upper,
		Guesses:    []int{},
		Hint:       HintNoRoundYet,
		StartedAt:  c.clock.Now(),
	}
	c.log.Debug().Int("round", c.round.Number).Int("upperBound", c.upper).Msg("round started")
}

// scheduleLocked arms the automatic restart for the current generation.
func (c *Controller) scheduleLocked(d time.Duration) *Restart {
	c.stopLocked()
	gen := c.gen
	t := c.clock.AfterFunc(d, func() { c.restartIfCurrent(gen) })
	c.restart = t
	return &Restart{c: c, gen: gen, timer: t, Delay: d}
}

func (c *Controller) stopLocked() {
	if c.restart != nil {
		c.restart.Stop()
		c.restart = nil
	}
}

// restartIfCurrent is the timer callback. A stale generation is a no-op.
func (c *Controller) restartIfCurrent(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.restart = nil
	c.log.Debug().Int("round", c.round.Number).Msg("automatic restart")
	c.startLocked()
	snap, subs := c.round.clone(), c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
}

func (c *Controller) subscribersLocked() []func(Round) {
	out := make([]func(Round), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Round), r Round) {
	for _, fn := range subs {
		fn(r.clone())
	}
}
