package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/guesser/internal/game"
)

var (
	colorBlue    = lipgloss.Color("#007AFF")
	colorText    = lipgloss.Color("#333333")
	colorDim     = lipgloss.Color("#999999")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorGray    = lipgloss.Color("#8E8E93")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginBottom(1)

	QuestionStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	InputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorText).
			Padding(0, 1).
			Width(24)

	DisabledBoxStyle = InputBoxStyle.
				BorderForeground(colorGray)

	ButtonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorBlue).
			Padding(0, 3)

	DisabledButtonStyle = ButtonStyle.
				Background(colorGray)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			MarginTop(1)

	HistoryStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// hintStyle picks the color for the feedback line.
func hintStyle(h game.HintState) lipgloss.Style {
	switch h {
	case game.HintCorrect:
		return SuccessStyle
	case game.HintTooHigh, game.HintTooLow:
		return WarningStyle
	case game.HintEmptySubmission, game.HintInvalidInput:
		return ErrorStyle
	}
	return HelpStyle
}

// RenderRound draws the whole screen for a round and the current input.
func RenderRound(r game.Round, input string) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Number Guesser!"))
	b.WriteString("\n")
	b.WriteString(QuestionStyle.Render("I'm thinking of a number between"))
	b.WriteString("\n")
	b.WriteString(QuestionStyle.Render("1 and " + itoa(r.UpperBound) + "..."))
	b.WriteString("\n\n")

	box, button := InputBoxStyle, ButtonStyle
	if !r.InputEnabled() {
		box, button = DisabledBoxStyle, DisabledButtonStyle
	}
	b.WriteString(box.Render(input))
	b.WriteString("\n")
	b.WriteString(button.Render("Guess"))
	b.WriteString("\n\n")

	if line := r.Display(); line != "" {
		b.WriteString(hintStyle(r.Hint).Render(line))
		b.WriteString("\n")
	}
	if len(r.Guesses) > 0 {
		parts := make([]string, len(r.Guesses))
		for i, g := range r.Guesses {
			parts[i] = itoa(g)
		}
		b.WriteString(HistoryStyle.Render("Guesses: " + strings.Join(parts, ", ")))
		b.WriteString("\n")
	}
	if r.Solved() {
		b.WriteString(HistoryStyle.Render("A new round starts shortly..."))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("enter guess • ctrl+r new round • esc quit"))
	return b.String()
}
