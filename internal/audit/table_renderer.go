package audit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kjourdan1/azaudit/internal/output"
)

// RenderTable renders the per-rule summary and the per-subscription status
// as terminal tables.
func RenderTable(report *Report) string {
	if report == nil {
		return "No data available.\n"
	}

	headerStyle := output.StyleBold
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rules := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RULE", "KIND", "COMPLIANT", "NON-COMPLIANT", "N/A", "ERRORS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 3 {
				return cellStyle.Foreground(output.ColorError)
			}
			return cellStyle
		})
	for _, r := range report.Summary.Rules {
		rules.Row(r.Rule, string(r.Kind), itoa(r.Compliant), itoa(r.NonCompliant), itoa(r.NotApplicable), itoa(r.Errors))
	}

	accounts := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SUBSCRIPTION", "ID", "RESOURCES", "STATUS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
	for _, a := range report.Accounts {
		status := "ok"
		switch {
		case a.Failed():
			status = "failed: " + a.Error
		case len(a.Warnings) > 0:
			status = fmt.Sprintf("%d warning(s)", len(a.Warnings))
		}
		accounts.Row(a.DisplayName, a.ID, itoa(a.Resources), status)
	}

	b := &strings.Builder{}
	fmt.Fprintln(b, output.StyleTitle.Render("Compliance by rule"))
	fmt.Fprintln(b, rules.String())
	fmt.Fprintln(b, output.StyleTitle.Render("Subscriptions"))
	fmt.Fprintln(b, accounts.String())
	return b.String()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
