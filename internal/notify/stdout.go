package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"signal_bot/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	longStyle  = cellStyle.Foreground(lipgloss.Color("#10B981"))
	shortStyle = cellStyle.Foreground(lipgloss.Color("#EF4444"))
	watchStyle = cellStyle.Foreground(lipgloss.Color("#F59E0B"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Stdout печатает отчёт таблицей; для scan и запуска без Telegram.
type Stdout struct {
	w io.Writer
}

func NewStdout(w io.Writer) *Stdout {
	return &Stdout{w: w}
}

func (s *Stdout) Name() string { return "stdout" }

func (s *Stdout) Notify(_ context.Context, report models.CycleReport) error {
	_, err := io.WriteString(s.w, Render(report))
	return err
}

const sideCol = 1

// Render: таблица по каждому рынку.
func Render(report models.CycleReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("cycle %s · %d proposals",
		report.StartedAt.UTC().Format("2006-01-02 15:04:05"), report.Total())))
	b.WriteString("\n")

	for _, m := range report.Markets {
		ps := report.Proposals[m]
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(strings.ToUpper(string(m))))
		b.WriteString("\n")
		if len(ps) == 0 {
			b.WriteString(mutedStyle.Render("  no proposals"))
			b.WriteString("\n")
			continue
		}

		sides := make([]models.Side, len(ps))
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("INSTRUMENT", "SIDE", "KIND", "SOURCE", "SCORE", "ENTRY", "STOP", "TP1", "TP2", "RULE")
		for i, p := range ps {
			sides[i] = p.Side
			t.Row(
				p.Instrument,
				string(p.Side),
				string(p.Kind),
				p.Source,
				fmt.Sprintf("%.2f", p.Score),
				Price(p.Plan.Entry),
				Price(p.Plan.Stop),
				Price(p.Plan.TP1),
				Price(p.Plan.TP2),
				p.Plan.EntryRule,
			)
		}
		t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != sideCol || row < 0 || row >= len(sides) {
				return cellStyle
			}
			switch sides[row] {
			case models.SideLong:
				return longStyle
			case models.SideShort:
				return shortStyle
			}
			return watchStyle
		})
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf("instruments: %d · errors: %d · suppressed: %d · took %s",
		report.Instruments, report.Errors, report.Suppressed, report.Duration.Round(time.Millisecond))))
	b.WriteString("\n")
	for _, f := range report.Failures {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  ✗ %s: %s", f.Instrument, f.Reason)))
		b.WriteString("\n")
	}
	return b.String()
}
