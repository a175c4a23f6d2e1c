package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// renderLogo renders "RLS NOTES" letter-spaced with a green gradient:
// deep forest green (#1a3a24) at the edges to bright emerald (#4ade80)
// in the middle.
func renderLogo() string {
	const text = "RLS NOTES"
	n := len(text)

	var out strings.Builder
	for i := 0; i < n; i++ {
		if text[i] == ' ' {
			out.WriteString("    ")
			continue
		}
		x := float64(i) / float64(n-1)
		b := math.Sin(x*math.Pi)*0.8 + 0.2

		r := clampByte(26 + b*(74-26))
		g := clampByte(58 + b*(222-58))
		bl := clampByte(36 + b*(128-36))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out.WriteString(s.Render(string(text[i])))

		if i < n-1 && text[i+1] != ' ' {
			out.WriteString("  ")
		}
	}
	return out.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#b45555"))

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#606878")).
				Bold(true)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#34d474")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	selectedRowBg = lipgloss.NewStyle().Background(lipgloss.Color("#1e1e2a"))

	alertBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#d4a844")).
			Padding(1, 3)

	alertTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec"))
)

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpBar renders bindings as a help line, skipping disabled ones.
func helpBar(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	seen := map[string]bool{}
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		if seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		parts = append(parts, helpEntry(h.Key, h.Desc))
	}
	return " " + strings.Join(parts, "  ")
}

// renderAlert draws the modal alert box centered in a width x height area.
func renderAlert(msg string, width, height int) string {
	boxWidth := width - 8
	if boxWidth > 60 {
		boxWidth = 60
	}
	if boxWidth < 20 {
		boxWidth = 20
	}
	body := alertTextStyle.Width(boxWidth).Render(msg) + "\n\n" +
		helpEntry("enter", "dismiss")
	box := alertBoxStyle.Render(body)
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
