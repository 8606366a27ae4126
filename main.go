package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guesser/internal/config"
	"github.com/robalobadob/guesser/internal/game"
	"github.com/robalobadob/guesser/internal/httpserver"
	"github.com/robalobadob/guesser/internal/store"
	"github.com/robalobadob/guesser/internal/tui"
)

// localRoundID keys the terminal player's round in a persistent store.
const localRoundID = "local"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	closeLog := setupLogging(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameOpts := []game.Option{
		game.WithUpperBound(cfg.UpperBound),
		game.WithRestartDelay(cfg.RestartDelay),
		game.WithLogger(log.Logger),
	}

	// HTTP rounds nobody can reach with a valid token are dropped from memory.
	var storeOpts []store.Option
	if cfg.Mode == config.ModeHTTP {
		storeOpts = append(storeOpts, store.WithIdleTTL(httpserver.SessionTTL))
	}

	st := store.NewMemoryStore(storeOpts...)
	if cfg.Store == config.StoreSQLite {
		db, err := openDB(ctx, cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
		}
		defer db.Close()
		st = store.NewSQLiteStore(db, gameOpts, storeOpts...)
	}

	switch cfg.Mode {
	case config.ModeHTTP:
		err = serveHTTP(ctx, cfg, st, gameOpts)
	default:
		err = playTUI(ctx, st, gameOpts)
	}
	if err != nil {
		log.Error().Err(err).Str("mode", cfg.Mode).Msg("exited with error")
		closeLog()
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger. The terminal UI owns
// stdout/stderr, so in tui mode logs go to LogFile or nowhere.
func setupLogging(cfg *config.Config) (closeFn func()) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	closeFn = func() {}

	var out io.Writer = os.Stderr
	if cfg.Mode == config.ModeTUI {
		out = io.Discard
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LogFile).Msg("open log file")
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}
	log.Logger = newLogger(cfg.Mode, out)
	return closeFn
}

// newLogger writes JSON lines for the server and human-readable lines for
// the terminal game, whose log file is meant to be tailed next to it.
func newLogger(mode string, out io.Writer) zerolog.Logger {
	if mode == config.ModeTUI {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func serveHTTP(ctx context.Context, cfg *config.Config, st store.Store, gameOpts []game.Option) error {
	srv := httpserver.New(st, httpserver.Options{
		UpperBound:   cfg.UpperBound,
		RestartDelay: cfg.RestartDelay,
		JWTSecret:    cfg.JWTSecret,
		AdminKeyHash: cfg.AdminKeyHash,
		ClientOrigin: cfg.ClientOrigin,
		SecureCookie: cfg.SecureCookie,
		DailySalt:    cfg.DailySalt,
		GameOptions:  gameOpts,
	})
	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("starting guesser http server")
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

// playTUI runs the terminal game. With a persistent store the player
// resumes the round they left.
func playTUI(ctx context.Context, st store.Store, gameOpts []game.Option) error {
	c, err := st.Get(ctx, localRoundID)
	if errors.Is(err, store.ErrNotFound) {
		c = game.New(append(gameOpts, game.WithID(localRoundID))...)
		err = st.Save(ctx, c)
	}
	if err != nil {
		return err
	}
	defer c.Close()

	log.Info().Str("roundId", c.ID()).Msg("starting terminal game")
	err = tui.Run(c, tea.WithContext(ctx))
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
