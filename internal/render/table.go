// Package render formats status output for the CLI.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/mezame/internal/history"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type Formatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
	okStyle      lipgloss.Style
	failStyle    lipgloss.Style
}

func NewFormatter() *Formatter {
	teal := lipgloss.Color("36")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &Formatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(teal).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(teal),
		okStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		failStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

func (f *Formatter) rowStyle(row, col int) lipgloss.Style {
	switch {
	case row == table.HeaderRow:
		return f.headerStyle
	case row%2 == 0:
		return f.evenRowStyle
	default:
		return f.oddRowStyle
	}
}

// FormatWakeRecords renders the wake ledger most-recent-first.
func (f *Formatter) FormatWakeRecords(records []history.WakeRecord) string {
	if len(records) == 0 {
		return "No wake-up attempts recorded"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(f.rowStyle).
		Headers("When", "Result", "Trigger", "Models", "Duration")

	for _, rec := range records {
		result := "ok"
		if !rec.Success {
			result = "failed"
		}
		trigger := rec.TriggerType
		if rec.TriggerSource != "" {
			trigger += "/" + rec.TriggerSource
		}

		models := make([]string, 0, len(rec.Models))
		for _, m := range rec.Models {
			if m.Success {
				models = append(models, m.Model)
			} else {
				models = append(models, m.Model+"!")
			}
		}

		t.Row(
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			result,
			trigger,
			truncate(strings.Join(models, ", "), 40),
			rec.Duration.Round(time.Millisecond).String(),
		)
	}
	return t.String()
}

// FormatStats renders the weekly impact counters.
func (f *Formatter) FormatStats(stats history.ImpactStats) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	t.Row("Week of", stats.WeekStart.Format("2006-01-02"))
	t.Row("Clicks saved", fmt.Sprintf("%d", stats.ClicksSaved))
	t.Row("Time saved", (time.Duration(stats.TimeSavedMs) * time.Millisecond).Round(time.Second).String())
	t.Row("Sessions", fmt.Sprintf("%d", stats.Sessions))
	t.Row("Blocked", fmt.Sprintf("%d", stats.Blocked))
	return t.String()
}

// FormatRules renders the deny and allow pattern lists side by side.
func (f *Formatter) FormatRules(deny, allow []string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(f.rowStyle).
		Headers("Kind", "Pattern")

	for _, p := range deny {
		t.Row("deny", truncate(p, 60))
	}
	for _, p := range allow {
		t.Row("allow", truncate(p, 60))
	}
	if len(deny)+len(allow) == 0 {
		return "No user rules configured (default policy approves everything not hardcoded-denied)"
	}
	return t.String()
}

// Verdict colors an approval decision.
func (f *Formatter) Verdict(approved bool, reason string) string {
	if approved {
		return f.okStyle.Render("APPROVED") + "  " + reason
	}
	return f.failStyle.Render("BLOCKED") + "   " + reason
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
