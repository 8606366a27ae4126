// internal/game/types.go
//
// Core type definitions for the number guessing round.
// Defines:
//   - HintState: feedback produced by the most recent submission.
//   - Round: state for a single play-through, from a fresh secret to a correct guess.

package game

import (
	"fmt"
	"time"
)

// HintState represents the feedback shown after a submission.
// Possible values:
//   - "none":     a round has started and nothing has been submitted yet.
//   - "empty":    the player submitted blank input.
//   - "invalid":  the player submitted text that is not a whole number.
//   - "too_high": the guess is above the answer (the answer is lower).
//   - "too_low":  the guess is below the answer (the answer is higher).
//   - "correct":  the guess equals the answer.
type HintState string

const (
	HintNoRoundYet      HintState = "none"
	HintEmptySubmission HintState = "empty"
	HintInvalidInput    HintState = "invalid"
	HintTooHigh         HintState = "too_high"
	HintTooLow          HintState = "too_low"
	HintCorrect         HintState = "correct"
)

// Message returns the text a presentation layer shows for the hint.
// TooLow reads "Higher" because it tells the player which way to go.
func (h HintState) Message() string {
	switch h {
	case HintEmptySubmission:
		return "Please guess a number"
	case HintInvalidInput:
		return "Please enter a whole number"
	case HintTooHigh:
		return "Lower"
	case HintTooLow:
		return "Higher"
	case HintCorrect:
		return "Correct!"
	}
	return ""
}

// Valid reports whether h is one of the known hint states.
func (h HintState) Valid() bool {
	switch h {
	case HintNoRoundYet, HintEmptySubmission, HintInvalidInput, HintTooHigh, HintTooLow, HintCorrect:
		return true
	}
	return false
}

// Round holds the state of a single round.
// Values handed out by Controller are copies; mutating them has no effect.
type Round struct {
	ID         string    // Session identifier, stable across restarts of the same controller.
	Number     int       // 1 for the first round, incremented by each restart.
	Version    int64     // Bumped by every transition; orders snapshots of the same controller.
	Answer     int       // Secret in [1, UpperBound]; fixed for the round.
	UpperBound int       // Inclusive maximum of the guessing range.
	Pending    string    // Raw text for the next guess.
	LastGuess  string    // Text of the most recent submission, valid or not.
	Guesses    []int     // Accepted guesses in submission order.
	Hint       HintState // Result of the most recent submission.
	StartedAt  time.Time // When the round began.
	SolvedAt   time.Time // When the correct guess landed; zero otherwise.
}

// Solved reports whether the round ended with a correct guess.
func (r Round) Solved() bool { return r.Hint == HintCorrect }

// InputEnabled reports whether the presentation layer should accept input.
func (r Round) InputEnabled() bool { return !r.Solved() }

// Display returns the feedback line: nothing before the first submission,
// the bare message for blank input, otherwise "<guess> - <message>".
func (r Round) Display() string {
	switch r.Hint {
	case HintNoRoundYet, "":
		return ""
	case HintEmptySubmission:
		return r.Hint.Message()
	}
	return fmt.Sprintf("%s - %s", r.LastGuess, r.Hint.Message())
}

// clone returns a copy that does not share the Guesses backing array.
func (r Round) clone() Round {
	out := r
	out.Guesses = append(make([]int, 0, len(r.Guesses)), r.Guesses...)
	return out
}
