package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/odata"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse focus session history",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List focus sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var f ht.HistoryFilter
		status, _ := flags.GetString("status")
		f.Status = model.SessionStatus(status)
		f.HabitID, _ = flags.GetString("habit")
		f.From, _ = flags.GetString("from")
		f.To, _ = flags.GetString("to")
		f.Page, _ = flags.GetInt("page")
		f.PageSize, _ = flags.GetInt("page-size")
		f.OrderBy, _ = flags.GetString("order")

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.Service().SessionHistory(cmd.Context(), f)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, page, func(w io.Writer) {
			if len(page.Value) == 0 {
				fmt.Fprintln(w, "No sessions.")
				return
			}
			for i := range page.Value {
				printSession(w, &page.Value[i])
			}
			if page.Count != nil {
				size := f.PageSize
				if size <= 0 {
					size = ht.DefaultPageSize
				}
				pages := (*page.Count + int64(size) - 1) / int64(size)
				fmt.Fprintf(w, "\n%d session(s), page %d of %d\n", *page.Count, max(f.Page, 1), pages)
			}
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show completed focus time per day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		if to == "" {
			to = time.Now().Format(odata.DateLayout)
		}
		if from == "" {
			end, err := time.ParseInLocation(odata.DateLayout, to, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --to date %q: %w", to, err)
			}
			from = end.AddDate(0, 0, -6).Format(odata.DateLayout)
		}

		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		totals, err := a.Service().DailyTotals(cmd.Context(), from, to)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, totals, func(w io.Writer) {
			var best, sum int64
			for _, d := range totals {
				best = max(best, d.FocusSeconds)
				sum += d.FocusSeconds
			}
			for _, d := range totals {
				pct := 0.0
				if best > 0 {
					pct = float64(d.FocusSeconds) / float64(best) * 100
				}
				fmt.Fprintf(w, "%s  %2d  %8s  %s\n", d.Date, d.Sessions, clock(d.FocusSeconds), progressBar(pct, 30))
			}
			fmt.Fprintf(w, "\nTotal: %s\n", clock(sum))
		})
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the timer, today's sessions and habits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Service().Dashboard(cmd.Context())
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, d, func(w io.Writer) {
			if d.Active == nil {
				fmt.Fprintf(w, "Timer: idle (%s)\n", clock(d.Timer.TotalDuration))
			} else {
				fmt.Fprintf(w, "Timer: %s  %s left  %s\n", d.Active.Status, clock(d.Timer.TimeLeft), progressBar(d.Timer.Progress, 20))
			}

			fmt.Fprintf(w, "\nToday: %d session(s), %s focused\n", len(d.Today), clock(d.TodaySeconds))
			for i := range d.Today {
				printSession(w, &d.Today[i])
			}

			fmt.Fprintf(w, "\nHabits:\n")
			for i := range d.Habits {
				printHabit(w, &d.Habits[i])
			}
		})
	},
}

func init() {
	f := sessionsListCmd.Flags()
	f.String("status", "", "Only sessions with this status (Active, Paused, Completed, Interrupted)")
	f.String("habit", "", "Only sessions for this habit ID")
	f.String("from", "", "First day, YYYY-MM-DD")
	f.String("to", "", "Last day, YYYY-MM-DD")
	f.Int("page", 1, "Page number")
	f.Int("page-size", ht.DefaultPageSize, "Sessions per page")
	f.String("order", "", `Sort order (default "startTime desc")`)

	statsCmd.Flags().String("from", "", "First day, YYYY-MM-DD (default: six days before --to)")
	statsCmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default: today)")

	sessionsCmd.AddCommand(sessionsListCmd)
}
