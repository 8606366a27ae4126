package game

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clk     *manualClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{clk: m, at: m.now.Add(d), fn: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every due timer on the calling goroutine.
func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && !t.at.After(m.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

func (m *manualClock) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func submit(c *Controller, text string) (Round, *Restart) {
	c.UpdatePendingGuess(text)
	return c.SubmitGuess()
}

func TestNewRoundStartsClean(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(42)), WithClock(clk))

	r := c.Snapshot()
	if r.Number != 1 {
		t.Errorf("expected round 1, got %d", r.Number)
	}
	if r.Answer != 42 || r.UpperBound != DefaultUpperBound {
		t.Errorf("unexpected answer/bound %d/%d", r.Answer, r.UpperBound)
	}
	if r.Hint != HintNoRoundYet || len(r.Guesses) != 0 || r.Pending != "" {
		t.Errorf("round not clean: %+v", r)
	}
	if r.ID == "" {
		t.Error("expected a generated ID")
	}
	if !r.StartedAt.Equal(clk.Now()) {
		t.Errorf("StartedAt = %v, want %v", r.StartedAt, clk.Now())
	}
}

func TestAnswerWithinRange(t *testing.T) {
	for _, upper := range []int{1, 2, 10, 100} {
		c := New(WithUpperBound(upper), WithClock(newManualClock()))
		for i := 0; i < 200; i++ {
			a := c.StartNewRound().Answer
			if a < 1 || a > upper {
				t.Fatalf("upper %d: answer %d out of range", upper, a)
			}
		}
	}
}

func TestSourceReceivesRange(t *testing.T) {
	var gotLo, gotHi int
	src := SourceFunc(func(lo, hi int) int {
		gotLo, gotHi = lo, hi
		return lo
	})
	New(WithSource(src), WithUpperBound(37), WithClock(newManualClock()))
	if gotLo != 1 || gotHi != 37 {
		t.Errorf("source asked for [%d,%d], want [1,37]", gotLo, gotHi)
	}
}

func TestScenarioToCorrectAndRestart(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(42)), WithClock(clk))

	steps := []struct {
		text    string
		hint    HintState
		guesses []int
	}{
		{"50", HintTooHigh, []int{50}},
		{"10", HintTooLow, []int{50, 10}},
		{"42", HintCorrect, []int{50, 10, 42}},
	}
	var restart *Restart
	for _, s := range steps {
		var r Round
		r, restart = submit(c, s.text)
		if r.Hint != s.hint {
			t.Errorf("guess %q: hint %q, want %q", s.text, r.Hint, s.hint)
		}
		if !reflect.DeepEqual(r.Guesses, s.guesses) {
			t.Errorf("guess %q: history %v, want %v", s.text, r.Guesses, s.guesses)
		}
		if r.LastGuess != s.text || r.Pending != "" {
			t.Errorf("guess %q: last=%q pending=%q", s.text, r.LastGuess, r.Pending)
		}
	}
	if restart == nil {
		t.Fatal("expected a restart handle for the correct guess")
	}
	if restart.Delay != DefaultRestartDelay {
		t.Errorf("restart delay %v, want %v", restart.Delay, DefaultRestartDelay)
	}

	clk.Advance(4 * time.Second)
	if got := c.Snapshot(); got.Hint != HintCorrect || got.Number != 1 {
		t.Fatalf("restarted too early: %+v", got)
	}

	clk.Advance(time.Second)
	got := c.Snapshot()
	if got.Number != 2 || got.Hint != HintNoRoundYet || len(got.Guesses) != 0 {
		t.Errorf("expected fresh round 2, got %+v", got)
	}
	if got.LastGuess != "" || !got.SolvedAt.IsZero() {
		t.Errorf("expected cleared last guess and solve time, got %+v", got)
	}
}

func TestEmptySubmission(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		c := New(WithSource(Fixed(7)), WithClock(newManualClock()))
		r, restart := submit(c, text)
		if r.Hint != HintEmptySubmission {
			t.Errorf("%q: hint %q", text, r.Hint)
		}
		if len(r.Guesses) != 0 {
			t.Errorf("%q: history grew to %v", text, r.Guesses)
		}
		if r.LastGuess != text {
			t.Errorf("%q: last guess %q", text, r.LastGuess)
		}
		if restart != nil {
			t.Errorf("%q: unexpected restart", text)
		}
		if r.Display() != "Please guess a number" {
			t.Errorf("%q: display %q", text, r.Display())
		}
	}
}

func TestInvalidInputIsNotRecorded(t *testing.T) {
	c := New(WithSource(Fixed(7)), WithClock(newManualClock()))
	submit(c, "5")
	for _, text := range []string{"abc", "4.5", "1e2", "99999999999999999999999", "7 7"} {
		r, _ := submit(c, text)
		if r.Hint != HintInvalidInput {
			t.Errorf("%q: hint %q, want invalid", text, r.Hint)
		}
		if !reflect.DeepEqual(r.Guesses, []int{5}) {
			t.Errorf("%q: history %v", text, r.Guesses)
		}
		if r.LastGuess != text {
			t.Errorf("%q: last guess %q", text, r.LastGuess)
		}
	}
}

func TestDirectionalHints(t *testing.T) {
	tests := []struct {
		text string
		want HintState
	}{
		{"1", HintTooLow},
		{"29", HintTooLow},
		{" 31 ", HintTooHigh},
		{"100", HintTooHigh},
		{"-4", HintTooLow},
		{"+30", HintCorrect},
	}
	for _, tt := range tests {
		c := New(WithSource(Fixed(30)), WithClock(newManualClock()))
		r, _ := submit(c, tt.text)
		if r.Hint != tt.want {
			t.Errorf("%q: hint %q, want %q", tt.text, r.Hint, tt.want)
		}
	}
}

func TestLastPendingTextWins(t *testing.T) {
	c := New(WithSource(Fixed(20)), WithClock(newManualClock()))
	c.UpdatePendingGuess("1")
	c.UpdatePendingGuess("12")
	c.UpdatePendingGuess("25")
	r, _ := c.SubmitGuess()
	if r.Hint != HintTooHigh || !reflect.DeepEqual(r.Guesses, []int{25}) {
		t.Errorf("got hint %q history %v", r.Hint, r.Guesses)
	}
}

func TestSolvedRoundIgnoresInput(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(3)), WithClock(clk))
	submit(c, "3")

	if r := c.UpdatePendingGuess("8"); r.Pending != "" {
		t.Errorf("pending changed on solved round: %q", r.Pending)
	}
	r, restart := c.SubmitGuess()
	if restart != nil {
		t.Error("second submit scheduled another restart")
	}
	if r.Hint != HintCorrect || len(r.Guesses) != 1 {
		t.Errorf("solved round mutated: %+v", r)
	}
	if !r.Solved() || r.InputEnabled() {
		t.Error("solved round should disable input")
	}
	if clk.pending() != 1 {
		t.Errorf("expected one pending timer, got %d", clk.pending())
	}
}

func TestStartNewRoundResetsAndCancels(t *testing.T) {
	clk := newManualClock()
	answers := []int{9, 9, 60}
	i := 0
	src := SourceFunc(func(lo, hi int) int {
		a := answers[i%len(answers)]
		i++
		return a
	})
	c := New(WithSource(src), WithClock(clk))
	submit(c, "4")
	_, restart := submit(c, "9")
	if restart == nil {
		t.Fatal("expected restart handle")
	}

	r := c.StartNewRound()
	if r.Number != 2 || r.Answer != 9 || r.Hint != HintNoRoundYet || len(r.Guesses) != 0 {
		t.Fatalf("unexpected round after manual restart: %+v", r)
	}
	if clk.pending() != 0 {
		t.Errorf("manual restart left %d timers pending", clk.pending())
	}
	if restart.Cancel() {
		t.Error("cancel of a superseded restart should report false")
	}

	// A stale callback firing late must not reset the newer round.
	submit(c, "1")
	clk.Advance(10 * time.Second)
	if got := c.Snapshot(); got.Number != 2 || len(got.Guesses) != 1 {
		t.Errorf("stale timer reset the round: %+v", got)
	}
}

func TestStaleTimerCallbackIsNoop(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(5)), WithClock(clk))
	submit(c, "5")
	gen := c.gen
	c.StartNewRound()
	submit(c, "2")

	c.restartIfCurrent(gen)
	if got := c.Snapshot(); got.Number != 2 || len(got.Guesses) != 1 {
		t.Errorf("stale generation restarted the round: %+v", got)
	}
}

func TestCancelRestart(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(11)), WithClock(clk))
	_, restart := submit(c, "11")
	if !restart.Cancel() {
		t.Fatal("expected cancel to succeed")
	}
	if restart.Cancel() {
		t.Error("second cancel should report false")
	}
	clk.Advance(time.Minute)
	if got := c.Snapshot(); got.Number != 1 || got.Hint != HintCorrect {
		t.Errorf("cancelled restart still fired: %+v", got)
	}
	var nilRestart *Restart
	if nilRestart.Cancel() {
		t.Error("nil restart cancel should be false")
	}
}

func TestExactlyOneAutomaticRestart(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(50)), WithClock(clk), WithRestartDelay(2*time.Second))
	var mu sync.Mutex
	starts := 0
	c.Subscribe(func(r Round) {
		mu.Lock()
		defer mu.Unlock()
		if r.Hint == HintNoRoundYet && r.Pending == "" && len(r.Guesses) == 0 && r.Number > 1 {
			starts++
		}
	})
	_, restart := submit(c, "50")
	if restart.Delay != 2*time.Second {
		t.Errorf("delay %v", restart.Delay)
	}
	clk.Advance(2 * time.Second)
	clk.Advance(10 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	if starts != 1 {
		t.Errorf("expected exactly one automatic restart, got %d", starts)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	c := New(WithSource(Fixed(10)), WithClock(newManualClock()))
	var seen []HintState
	unsub := c.Subscribe(func(r Round) { seen = append(seen, r.Hint) })

	submit(c, "")
	submit(c, "20")
	unsub()
	unsub()
	submit(c, "5")

	// UpdatePendingGuess notifies too, so each submit contributes two events.
	want := []HintState{HintNoRoundYet, HintEmptySubmission, HintEmptySubmission, HintTooHigh}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("events %v, want %v", seen, want)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New(WithSource(Fixed(10)), WithClock(newManualClock()))
	submit(c, "3")
	r := c.Snapshot()
	r.Guesses[0] = 99
	if got := c.Snapshot().Guesses[0]; got != 3 {
		t.Errorf("snapshot aliasing: history now %d", got)
	}
}

func TestVersionIncreasesOnEveryTransition(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(5)), WithClock(clk))

	var versions []int64
	unsub := c.Subscribe(func(r Round) { versions = append(versions, r.Version) })
	defer unsub()

	c.UpdatePendingGuess("3")
	c.SubmitGuess()
	c.UpdatePendingGuess("5")
	c.SubmitGuess()
	c.UpdatePendingGuess("9") // ignored while solved
	clk.Advance(DefaultRestartDelay)
	c.StartNewRound()

	if len(versions) != 6 {
		t.Fatalf("expected 6 notifications, got %v", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("version went from %d to %d at step %d", versions[i-1], versions[i], i)
		}
	}

	saved := c.Snapshot()
	restored := Restore(saved, WithClock(clk))
	restored.UpdatePendingGuess("1")
	if got := restored.Snapshot().Version; got != saved.Version+1 {
		t.Errorf("restored controller continued at version %d, want %d", got, saved.Version+1)
	}
}

func TestRestore(t *testing.T) {
	clk := newManualClock()
	saved := Round{
		ID:         "abc",
		Number:     4,
		Answer:     17,
		UpperBound: 20,
		LastGuess:  "12",
		Guesses:    []int{12},
		Hint:       HintTooLow,
		StartedAt:  clk.Now().Add(-time.Minute),
	}
	c := Restore(saved, WithClock(clk))
	if c.ID() != "abc" {
		t.Errorf("id %q", c.ID())
	}
	r, _ := submit(c, "17")
	if r.Hint != HintCorrect || !reflect.DeepEqual(r.Guesses, []int{12, 17}) {
		t.Errorf("restored round misbehaved: %+v", r)
	}
	clk.Advance(DefaultRestartDelay)
	if got := c.Snapshot(); got.Number != 5 || got.UpperBound != 20 {
		t.Errorf("expected round 5 within [1,20], got %+v", got)
	}
}

func TestRestoreSolvedRound(t *testing.T) {
	clk := newManualClock()
	solved := Round{
		ID: "s", Number: 2, Answer: 8, UpperBound: 10,
		LastGuess: "8", Guesses: []int{8}, Hint: HintCorrect,
		SolvedAt: clk.Now().Add(-3 * time.Second),
	}

	c := Restore(solved, WithClock(clk), WithSource(Fixed(1)))
	if !c.Snapshot().Solved() {
		t.Fatal("expected solved round to stay solved")
	}
	clk.Advance(2 * time.Second)
	if got := c.Snapshot(); got.Number != 3 || got.Hint != HintNoRoundYet {
		t.Errorf("expected restart after remaining delay, got %+v", got)
	}

	solved.SolvedAt = clk.Now().Add(-time.Hour)
	late := Restore(solved, WithClock(clk), WithSource(Fixed(1)))
	if got := late.Snapshot(); got.Number != 3 || got.Solved() {
		t.Errorf("expected immediate restart for an expired countdown, got %+v", got)
	}
}

func TestCloseCancelsRestart(t *testing.T) {
	clk := newManualClock()
	c := New(WithSource(Fixed(2)), WithClock(clk))
	submit(c, "2")
	c.Close()
	clk.Advance(time.Minute)
	if got := c.Snapshot(); got.Number != 1 {
		t.Errorf("closed controller restarted: %+v", got)
	}
}

func TestRealClockRestart(t *testing.T) {
	c := New(WithSource(Fixed(1)), WithRestartDelay(10*time.Millisecond))
	done := make(chan Round, 4)
	c.Subscribe(func(r Round) {
		if r.Number == 2 {
			done <- r
		}
	})
	submit(c, "1")
	select {
	case r := <-done:
		if r.Hint != HintNoRoundYet {
			t.Errorf("hint %q", r.Hint)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("automatic restart never happened")
	}
}
