package console

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/mbrsim/internal/ui"
	"github.com/muurk/mbrsim/internal/version"
)

// Application branding
const (
	AppName   = "MBRSIM CONSOLE"
	GitHubURL = "github.com/muurk/mbrsim"
)

// Layout constants
const (
	MinEditorHeight = 3
	chromeRows      = 5 // header, editor title, status, output title, help
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			Bold(true)

	HeaderTargetStyle = lipgloss.NewStyle().
				Foreground(ui.MutedColor)

	// Section title when its pane has focus
	FocusedTitleStyle = lipgloss.NewStyle().
				Foreground(ui.PrimaryColor).
				Bold(true)

	BlurredTitleStyle = lipgloss.NewStyle().
				Foreground(ui.MutedColor)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(ui.ErrorColor).
				Bold(true)

	StatusWarningStyle = lipgloss.NewStyle().
				Foreground(ui.WarningColor)

	StatusSuccessStyle = lipgloss.NewStyle().
				Foreground(ui.SuccessColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)
)

// BuildHeaderContent renders the title row: app name and version on the
// left, where scripts run on the right.
func BuildHeaderContent(target string, width int) string {
	left := HeaderStyle.Render(AppName + " v" + version.Version)
	right := HeaderTargetStyle.Render(target)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(gap).Render(""), right)
}

// RenderTitle renders a pane title, highlighted when focused.
func RenderTitle(text string, focused bool) string {
	if focused {
		return FocusedTitleStyle.Render("▸ " + text)
	}
	return BlurredTitleStyle.Render("  " + text)
}
