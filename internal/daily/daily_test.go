package daily

import (
	"testing"
	"time"

	"github.com/robalobadob/guesser/internal/game"
)

func TestAnswerIsStablePerDay(t *testing.T) {
	morning := time.Date(2024, 3, 9, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	if Answer(morning, "salt", 100) != Answer(evening, "salt", 100) {
		t.Error("answer changed within the same UTC day")
	}
}

func TestAnswerRange(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		d := day.AddDate(0, 0, i)
		if a := Answer(d, "s", 100); a < 1 || a > 100 {
			t.Fatalf("%s: answer %d out of range", DateKey(d), a)
		}
	}
	if a := Answer(day, "s", 1); a != 1 {
		t.Errorf("upper 1 gave %d", a)
	}
}

func TestSourceFirstDrawOnly(t *testing.T) {
	day := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	src := Source(day, "s", game.Fixed(77))
	if got, want := src.IntN(1, 100), Answer(day, "s", 100); got != want {
		t.Errorf("first draw %d, want daily answer %d", got, want)
	}
	if got := src.IntN(1, 100); got != 77 {
		t.Errorf("second draw %d, want fallback 77", got)
	}
}
