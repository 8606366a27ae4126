package store

import "time"

// sweepInterval caps how often Save walks the live map looking for idle rounds.
const sweepInterval = time.Minute

// Option configures a Store.
type Option func(*settings)

type settings struct {
	idleTTL time.Duration
	now     func() time.Time
}

// WithIdleTTL drops controllers that nobody has saved or fetched for d.
// Zero keeps them until Delete.
func WithIdleTTL(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.idleTTL = d
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// expired reports whether an entry last touched at t has been idle too long.
func (s *settings) expired(t, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(t) >= s.idleTTL
}

// dueForSweep reports whether a sweep should run, given the previous one.
func (s *settings) dueForSweep(last, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(last) >= min(s.idleTTL, sweepInterval)
}
