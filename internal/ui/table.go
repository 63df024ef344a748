package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// KeyValueTable renders rows of name/value pairs for w.
func KeyValueTable(w io.Writer, headers []string, rows [][]string) string {
	s := NewStyles(w)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.Header
			case row%2 == 0:
				return s.Row
			default:
				return s.RowAlt
			}
		})

	return tbl.Render()
}
