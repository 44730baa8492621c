package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"reina/internal/core"
)

const barWidth = 30

func formatMoney(m core.Money) string {
	return "$" + humanize.FormatFloat("#,###.##", m.Float())
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func bar(percent float64) string {
	n := int(percent / 100 * barWidth)
	if n < 0 {
		n = 0
	}
	if n > barWidth {
		n = barWidth
	}
	return strings.Repeat("#", n) + strings.Repeat(".", barWidth-n)
}

func printExpenses(w io.Writer, page core.ExpensePage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No expenses.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tADDED")
	for _, e := range page.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Category, formatMoney(e.Amount), formatWhen(e.CreatedAt.Time))
	}
	tw.Flush()

	if pages := page.TotalPages(); pages > 0 {
		fmt.Fprintf(w, "Page %d of %d (%s expenses)\n", page.Page, pages, humanize.Comma(int64(page.Total)))
	}
}

func printNotifications(w io.Writer, ns []core.Notification) {
	if len(ns) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t\tMESSAGE\tRECEIVED")
	for _, n := range ns {
		mark := "*"
		if n.IsRead {
			mark = " "
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, mark, n.Message, formatWhen(n.CreatedAt.Time))
	}
	tw.Flush()
	fmt.Fprintf(w, "%d unread\n", core.UnreadCount(ns))
}

func printOverview(w io.Writer, ov core.Overview) {
	fmt.Fprintf(w, "Hello, %s\n\n", ov.User.UserName)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Net income\t%s\n", formatMoney(ov.User.NetIncomeOrZero()))
	fmt.Fprintf(tw, "Total spent\t%s\n", formatMoney(ov.TotalSpent))
	fmt.Fprintf(tw, "This month\t%s\n", formatMoney(ov.MonthlySpent))
	fmt.Fprintf(tw, "Remaining\t%s\n", formatMoney(ov.Remaining))
	fmt.Fprintf(tw, "Spent\t%s %.1f%%\n", bar(ov.SpentPercentage), ov.SpentPercentage)
	fmt.Fprintf(tw, "Unread notifications\t%d\n", ov.Unread)
	tw.Flush()

	if ov.OverBudgetNotice != "" {
		fmt.Fprintf(w, "\n! %s\n", ov.OverBudgetNotice)
	}

	if len(ov.Shares) > 0 {
		fmt.Fprintln(w, "\nBy category")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for i, s := range ov.Shares {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f%%\n", s.Name, formatMoney(ov.ByCategory[i].Amount), bar(s.Percent), s.Percent)
		}
		tw.Flush()
	}

	if len(ov.ByDate) > 0 {
		fmt.Fprintln(w, "\nBy date")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, d := range ov.ByDate {
			fmt.Fprintf(tw, "%s\t%s\n", d.Date, formatMoney(d.Amount))
		}
		tw.Flush()
	}
}

func printRows(w io.Writer, rows [][]any) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = fmt.Sprint(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}
