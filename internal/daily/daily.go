// Package daily derives the "number of the day": every player who asks
// for a daily round on the same UTC date gets the same first answer.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"

	"github.com/robalobadob/guesser/internal/game"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Answer returns a deterministic value in [1, upper] for a date using
// HMAC(salt, YYYY-MM-DD).
func Answer(date time.Time, salt string, upper int) int {
	if upper <= 1 {
		return 1
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// take first 8 bytes to uint64 for modulus distribution
	n := binary.BigEndian.Uint64(sum[:8])
	return 1 + int(n%uint64(upper))
}

// Source yields the daily answer for the first draw and defers to next
// for every later round, so a restart after solving is a normal round.
func Source(date time.Time, salt string, next game.Source) game.Source {
	var once sync.Once
	return game.SourceFunc(func(lo, hi int) int {
		first := false
		once.Do(func() { first = true })
		if first {
			return lo - 1 + Answer(date, salt, hi-lo+1)
		}
		return next.IntN(lo, hi)
	})
}
