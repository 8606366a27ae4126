package tui

import (
	"strconv"
	"sync"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/robalobadob/guesser/internal/game"
)

// Model is the main Bubbletea model
type Model struct {
	ctrl      *game.Controller
	round     game.Round
	textInput textinput.Model
	changes   chan struct{}
	done      chan struct{} // closed by stop; releases a pending waitForChange
	stop      func()
	width     int
	height    int
}

// roundChangedMsg reports that the controller state moved, possibly from its timer.
type roundChangedMsg struct{}

// New creates a Model driving c.
func New(c *game.Controller) Model {
	r := c.Snapshot()

	ti := textinput.New()
	ti.Placeholder = "Guess a number..."
	ti.Prompt = ""
	ti.CharLimit = len(strconv.Itoa(r.UpperBound))
	ti.Width = 20
	ti.SetValue(r.Pending)
	if r.InputEnabled() {
		ti.Focus()
	}

	changes := make(chan struct{}, 1)
	unsub := c.Subscribe(func(game.Round) {
		select {
		case changes <- struct{}{}:
		default: // a wake-up is already queued; the model reads the latest snapshot
		}
	})

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			unsub()
			close(done)
		})
	}

	return Model{
		ctrl:      c,
		round:     r,
		textInput: ti,
		changes:   changes,
		done:      done,
		stop:      stop,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

// waitForChange blocks until the controller notifies, then wakes the loop.
// It returns nil once the model has stopped.
func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return roundChangedMsg{}
		case <-m.done:
			return nil
		}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case roundChangedMsg:
		return m.syncRound(), m.waitForChange()
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// syncRound pulls the latest snapshot and adjusts input focus: blurred
// while solved, focused and cleared when a new round begins.
func (m Model) syncRound() Model {
	prev := m.round
	m.round = m.ctrl.Snapshot()

	if !m.round.InputEnabled() {
		m.textInput.Blur()
		return m
	}
	if m.round.Number != prev.Number {
		m.textInput.SetValue("")
	}
	m.textInput.Focus()
	return m
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.stop()
		return m, tea.Quit

	case "ctrl+r":
		m.ctrl.StartNewRound()
		return m.syncRound(), nil

	case "enter":
		if !m.round.InputEnabled() {
			return m, nil
		}
		m.ctrl.UpdatePendingGuess(m.textInput.Value())
		m.ctrl.SubmitGuess()
		m.textInput.SetValue("")
		return m.syncRound(), nil
	}

	if !m.round.InputEnabled() {
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		msg.Runes = digitsOnly(msg.Runes)
		if len(msg.Runes) == 0 {
			return m, nil
		}
	}

	before := m.textInput.Value()
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	if after := m.textInput.Value(); after != before {
		m.round = m.ctrl.UpdatePendingGuess(after)
	}
	return m, cmd
}

// View implements tea.Model
func (m Model) View() string {
	return RenderRound(m.round, m.textInput.View())
}

// Round returns the last snapshot the model rendered.
func (m Model) Round() game.Round { return m.round }

// Run starts the terminal UI on c and blocks until the player quits.
func Run(c *game.Controller, opts ...tea.ProgramOption) error {
	m := New(c)
	defer m.stop()
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}

// digitsOnly keeps the numeric-keypad subset of typed runes.
func digitsOnly(rs []rune) []rune {
	out := rs[:0:0]
	for _, r := range rs {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			out = append(out, r)
		}
	}
	return out
}

func itoa(n int) string { return strconv.Itoa(n) }
