package notify

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"signal_bot/internal/models"
)

// Price: точность зависит от порядка цены, хвостовые нули срезаем.
func Price(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	places := int32(2)
	switch a := math.Abs(v); {
	case a == 0:
	case a < 0.01:
		places = 8
	case a < 1:
		places = 6
	case a < 100:
		places = 4
	}
	d := decimal.NewFromFloat(v).Round(places)
	return d.String()
}

func Pct(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2) + "%"
}

func sideIcon(s models.Side) string {
	switch s {
	case models.SideLong:
		return "🟢"
	case models.SideShort:
		return "🔴"
	}
	return "👀"
}

// FormatProposal: один блок Markdown для Telegram.
func FormatProposal(p models.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* `%s` `%s` · %s · %s\n", sideIcon(p.Side), p.Instrument, p.Side, p.Kind, p.Market, p.Source)
	fmt.Fprintf(&b, "Entry: `%s`", Price(p.Plan.Entry))
	if p.Plan.Conditional {
		b.WriteString(" (условный)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Stop: `%s` (-%s)\n", Price(p.Plan.Stop), Pct(p.Plan.RiskPct))
	fmt.Fprintf(&b, "TP1: `%s` (+%s) · TP2: `%s` (+%s)\n",
		Price(p.Plan.TP1), Pct(p.Plan.TP1Pct), Price(p.Plan.TP2), Pct(p.Plan.TP2Pct))
	fmt.Fprintf(&b, "Score: `%s`", decimal.NewFromFloat(p.Score).Round(2).StringFixed(2))
	if p.RSI != nil {
		fmt.Fprintf(&b, " · RSI `%s`", decimal.NewFromFloat(*p.RSI).Round(1).String())
	}
	if p.VolumeMultiple != nil {
		fmt.Fprintf(&b, " · Vol `x%s`", decimal.NewFromFloat(*p.VolumeMultiple).Round(2).String())
	}
	if p.Funding != nil {
		fmt.Fprintf(&b, " · Funding `%s`", Pct(*p.Funding*100))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "_%s_\n", p.Plan.EntryRule)
	return b.String()
}

// FormatReport: сообщение по всему циклу; пустые рынки пропускаем.
func FormatReport(report models.CycleReport, title string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "*📡 %s*\n", title)
	}
	fmt.Fprintf(&b, "Цикл %s UTC · сигналов: %d\n",
		report.StartedAt.UTC().Format("2006-01-02 15:04"), report.Total())

	for _, m := range report.Markets {
		ps := report.Proposals[m]
		if len(ps) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n*%s*\n", strings.ToUpper(string(m)))
		for _, p := range ps {
			b.WriteString("\n")
			b.WriteString(FormatProposal(p))
		}
	}
	if report.Errors > 0 || report.Suppressed > 0 {
		fmt.Fprintf(&b, "\nошибок: %d · на кулдауне: %d\n", report.Errors, report.Suppressed)
	}
	return b.String()
}
