package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Printer writes styled CLI output
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to w, or stdout when w is nil
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w, titleStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, warnStyle.Render("! "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Row is one line of the status table
type Row struct {
	Template     string
	Unit         string
	Parent       string
	Constructors int
	Blocks       int
	Sentinels    int
	CompiledAt   time.Time
	State        string
}

// Row states
const (
	StateFresh   = "fresh"
	StateStale   = "stale"
	StateMissing = "missing"
	StateNew     = "new"
	StateRemoved = "removed"
)

// StatusTable renders rows as a bordered table
func StatusTable(rows []Row) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("TEMPLATE", "UNIT", "PARENT", "CTORS", "BLOCKS", "SENTINELS", "COMPILED", "STATE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 7 && row >= 0 && row < len(rows) {
				return stateStyle(rows[row].State).Padding(0, 1)
			}
			return cellStyle
		})

	for _, r := range rows {
		compiled := "-"
		if !r.CompiledAt.IsZero() {
			compiled = r.CompiledAt.Local().Format("2006-01-02 15:04:05")
		}
		parent := r.Parent
		if parent == "" {
			parent = "-"
		}
		t.Row(
			r.Template,
			r.Unit,
			parent,
			strconv.Itoa(r.Constructors),
			strconv.Itoa(r.Blocks),
			strconv.Itoa(r.Sentinels),
			compiled,
			r.State,
		)
	}

	return t.Render()
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case StateFresh:
		return successStyle
	case StateStale, StateNew:
		return warnStyle
	case StateMissing:
		return errorStyle
	case StateRemoved:
		return mutedStyle
	}
	return lipgloss.NewStyle()
}
