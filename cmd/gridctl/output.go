package main

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/projection"
	"budget-grid/runtime"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func renderAccounts(out io.Writer, accounts []domain.Account) {
	table := newTable(out, "Account", "Balance", "Version", "Updated")
	for _, a := range accounts {
		table.Append([]string{string(a.ID), a.Balance.String(), strconv.FormatUint(a.Version, 10), formatTime(a.UpdatedAt)})
	}
	table.Render()
	fmt.Fprintf(out, "%d account(s)\n", len(accounts))
}

func renderMembers(out io.Writer, members []domain.Member, health []string) {
	table := newTable(out, "Member", "Uuid", "Started", "Memory", "Cpu", "Health")
	for i, m := range members {
		memory := "-"
		if m.RSSBytes > 0 {
			memory = humanize.IBytes(m.RSSBytes)
		}
		table.Append([]string{m.String(), m.UUID, formatTime(m.StartedAt), memory, fmt.Sprintf("%.1f%%", m.CPUPercent), health[i]})
	}
	table.Render()
}

func renderSpendReport(out io.Writer, report runtime.SpendReport, restarts uint64) {
	table := newTable(out, "Worker", "Attempts", "Successes", "Spent", "Stopped by")
	for _, o := range report.Outcomes {
		reason := "-"
		if o.Err != nil {
			reason = o.Err.Error()
		}
		table.Append([]string{strconv.Itoa(o.Worker), strconv.Itoa(o.Attempts), strconv.Itoa(o.Successes), o.Spent.String(), reason})
	}
	table.Render()
	fmt.Fprintf(out, "Spent %s on account %s in %s (%d restart(s), %d worker(s) out of funds)\n",
		report.Spent, report.AccountID, report.Elapsed.Round(time.Millisecond), restarts, report.InsufficientFunds())
	if report.TimedOut {
		fmt.Fprintln(out, "Stopped by timeout")
	}
}

func renderSummary(out io.Writer, balances *projection.Balances, restarts uint64) {
	table := newTable(out, "Account", "Balance", "Version")
	for _, a := range balances.Accounts() {
		table.Append([]string{string(a.ID), a.Balance.String(), strconv.FormatUint(a.Version, 10)})
	}
	table.Render()
	fmt.Fprintf(out, "%d added, %d updated, %d removed, %d evicted, total %s, %d resubscription(s)\n",
		balances.Count(event.Added), balances.Count(event.Updated), balances.Count(event.Removed),
		balances.Count(event.Evicted), balances.Total(), restarts)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
