package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette
var (
	Primary = lipgloss.Color("#22d3ee") // Cyan accent
	Success = lipgloss.Color("#10B981") // Emerald
	Warning = lipgloss.Color("#F59E0B") // Amber
	Error   = lipgloss.Color("#EF4444") // Red
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
)

// Styles is a set of text styles bound to one output. Colours are only
// emitted when that output is a terminal.
type Styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Header  lipgloss.Style
	Row     lipgloss.Style
	RowAlt  lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles builds the palette for w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().Padding(0, 1)
	return Styles{
		Error:   r.NewStyle().Foreground(Error).Bold(true),
		Warning: r.NewStyle().Foreground(Warning),
		Success: r.NewStyle().Foreground(Success).Bold(true),
		Header:  cell.Bold(true).Foreground(Primary),
		Row:     cell.Foreground(lipgloss.Color("255")),
		RowAlt:  cell.Foreground(lipgloss.Color("245")),
		Border:  r.NewStyle().Foreground(Primary),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
