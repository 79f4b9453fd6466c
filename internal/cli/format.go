package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// printer writes the [ OK ] / [ FAIL ] status lines. Colour is only used
// when w is a terminal.
type printer struct {
	w    io.Writer
	ok   lipgloss.Style
	fail lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:    w,
		ok:   r.NewStyle().Foreground(lipgloss.Color("2")),
		fail: r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (p *printer) OK(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "[ %s ] %s\n", p.ok.Render("OK"), fmt.Sprintf(format, args...))
}

func (p *printer) Fail(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "[ %s ] %s\n", p.fail.Render("FAIL"), fmt.Sprintf(format, args...))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
