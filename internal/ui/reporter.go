package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Reporter writes one human-readable line per message. On a terminal the
// line is styled; otherwise it is plain "error: ..." or "warning: ..." text
// for whatever process is reading our stderr.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	tty    bool
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{
		w:      w,
		styles: NewStyles(w),
		tty:    IsTerminal(w),
	}
}

// Report implements relay.Reporter.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	r.line(r.styles.Error, IconError, "error: ", err.Error())
}

func (r *Reporter) Warn(msg string) {
	r.line(r.styles.Warning, IconWarning, "warning: ", msg)
}

func (r *Reporter) Success(msg string) {
	r.line(r.styles.Success, IconSuccess, "", msg)
}

func (r *Reporter) line(style lipgloss.Style, icon, prefix, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tty {
		fmt.Fprintf(r.w, "%s %s\n", style.Render(icon), style.Render(msg))
		return
	}
	fmt.Fprintf(r.w, "%s%s\n", prefix, msg)
}
