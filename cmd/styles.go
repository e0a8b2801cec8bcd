package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	starStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))
)

// indicatorLabel renders a budget indicator with its colour.
func indicatorLabel(ind ledger.Indicator) string {
	switch ind {
	case ledger.IndicatorStar:
		return starStyle.Render("★ star")
	case ledger.IndicatorGreen:
		return successStyle.Render("● green")
	case ledger.IndicatorRed:
		return errorStyle.Render("● red")
	default:
		return dimStyle.Render("○ " + string(ind))
	}
}

func issueStatusLabel(st ledger.IssueStatus) string {
	switch st {
	case ledger.IssueOpen:
		return warnStyle.Render(string(st))
	case ledger.IssueResolved:
		return successStyle.Render(string(st))
	default:
		return dimStyle.Render(string(st))
	}
}
