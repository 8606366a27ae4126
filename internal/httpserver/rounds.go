package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guesser/internal/daily"
	"github.com/robalobadob/guesser/internal/game"
)

// roundView is the JSON shape of a round. The answer is never included.
type roundView struct {
	RoundID      string         `json:"roundId"`
	RoundNumber  int            `json:"roundNumber"`
	UpperBound   int            `json:"upperBound"`
	Hint         game.HintState `json:"hint"`
	Message      string         `json:"message"`
	Display      string         `json:"display"`
	Pending      string         `json:"pending"`
	LastGuess    string         `json:"lastGuess"`
	Guesses      []int          `json:"guesses"`
	InputEnabled bool           `json:"inputEnabled"`
	RestartInMs  int64          `json:"restartInMs,omitempty"`
	Token        string         `json:"token,omitempty"` // only on POST /round/new
}

func (s *Server) view(r game.Round) roundView {
	v := roundView{
		RoundID:      r.ID,
		RoundNumber:  r.Number,
		UpperBound:   r.UpperBound,
		Hint:         r.Hint,
		Message:      r.Hint.Message(),
		Display:      r.Display(),
		Pending:      r.Pending,
		LastGuess:    r.LastGuess,
		Guesses:      r.Guesses,
		InputEnabled: r.InputEnabled(),
	}
	if r.Solved() {
		left := s.opts.RestartDelay - s.now().Sub(r.SolvedAt)
		v.RestartInMs = max(left, time.Millisecond).Milliseconds()
	}
	return v
}

// newRoundReq is the optional body of POST /round/new.
type newRoundReq struct {
	Answer *int `json:"answer"` // fixed first answer; admin key required
	Daily  bool `json:"daily"`  // first answer is the number of the day
}

// textReq carries guess text for PUT /round/pending and POST /round/guess.
type textReq struct {
	Text *string `json:"text"`
}

// decodeBody decodes JSON into v; an empty body is allowed.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleNewRound creates a controller, stores it and issues a session for it.
// A previous session's round is discarded.
func (s *Server) handleNewRound(w http.ResponseWriter, r *http.Request) {
	var req newRoundReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	src := game.DefaultSource
	switch {
	case req.Answer != nil:
		if !s.adminAllowed(r) {
			writeError(w, http.StatusForbidden, "admin_key_required")
			return
		}
		if *req.Answer < 1 || *req.Answer > s.opts.UpperBound {
			writeError(w, http.StatusBadRequest, "answer_out_of_range")
			return
		}
		src = firstThen(*req.Answer, src)
	case req.Daily:
		src = daily.Source(s.now(), s.opts.DailySalt, src)
	}

	if prev, err := s.sessionRoundID(r); err == nil {
		if err := s.store.Delete(r.Context(), prev); err != nil {
			log.Warn().Err(err).Str("roundId", prev).Msg("discard previous round")
		}
	}

	opts := append([]game.Option{
		game.WithUpperBound(s.opts.UpperBound),
		game.WithRestartDelay(s.opts.RestartDelay),
	}, s.opts.GameOptions...)
	opts = append(opts, game.WithSource(src))
	c := game.New(opts...)
	if err := s.store.Save(r.Context(), c); err != nil {
		c.Close()
		log.Error().Err(err).Msg("save round")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	tok, exp, err := s.signSession(c.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setSessionCookie(w, tok, exp)

	v := s.view(c.Snapshot())
	v.Token = tok
	log.Info().Str("roundId", v.RoundID).Bool("daily", req.Daily).Bool("fixed", req.Answer != nil).Msg("session started")
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(roundFrom(r.Context()).Snapshot()))
}

// handlePending forwards a text change to UpdatePendingGuess.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	var req textReq
	if err := decodeBody(r, &req); err != nil || req.Text == nil {
		writeError(w, http.StatusBadRequest, "text_required")
		return
	}
	writeJSON(w, http.StatusOK, s.view(roundFrom(r.Context()).UpdatePendingGuess(*req.Text)))
}

// handleGuess submits the pending text. A "text" field in the body is
// applied as the pending guess first, so clients can submit in one call.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req textReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	c := roundFrom(r.Context())
	if req.Text != nil {
		c.UpdatePendingGuess(*req.Text)
	}
	round, restart := c.SubmitGuess()

	v := s.view(round)
	if restart != nil {
		v.RestartInMs = restart.Delay.Milliseconds()
		log.Info().Str("roundId", round.ID).Int("round", round.Number).Int("guesses", len(round.Guesses)).Msg("round solved")
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(roundFrom(r.Context()).StartNewRound()))
}

// handleEndRound discards the session's round and clears the cookie.
func (s *Server) handleEndRound(w http.ResponseWriter, r *http.Request) {
	c := roundFrom(r.Context())
	if err := s.store.Delete(r.Context(), c.ID()); err != nil {
		writeError(w, http.StatusInternalServerError, "store_error")
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// firstThen yields answer for the first draw and defers to next afterwards.
func firstThen(answer int, next game.Source) game.Source {
	used := false
	return game.SourceFunc(func(lo, hi int) int {
		if !used {
			used = true
			return answer
		}
		return next.IntN(lo, hi)
	})
}
