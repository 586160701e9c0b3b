package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/timer"
)

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Run focus sessions",
}

var focusStartCmd = &cobra.Command{
	Use:   "start HABIT_ID",
	Short: "Start a focus session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, _ := cmd.Flags().GetInt("minutes")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Service().Start(cmd.Context(), args[0], minutes, notesFlag(cmd))
		if err != nil {
			return err
		}
		return printAction(cmd, "Started", s)
	},
}

var focusPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, "Paused", (*ht.HTService).Pause)
	},
}

var focusResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, "Resumed", (*ht.HTService).Resume)
	},
}

var focusCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Complete the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		notes := notesFlag(cmd)
		return runAction(cmd, "Completed", func(svc *ht.HTService, ctx context.Context) (*model.FocusSession, error) {
			return svc.Complete(ctx, notes)
		})
	},
}

var focusCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, "Cancelled", (*ht.HTService).Cancel)
	},
}

var focusStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session and time left",
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

		session, snap, err := a.Service().Status(cmd.Context())
		if err != nil {
			return err
		}

		view := struct {
			Session *model.FocusSession `json:"session,omitempty" yaml:"session,omitempty"`
			Timer   ht.Snapshot         `json:"timer" yaml:"timer"`
		}{session, snap}

		return render(cmd.OutOrStdout(), format, view, func(w io.Writer) {
			if session == nil {
				fmt.Fprintf(w, "No active session. Next session: %s\n", clock(snap.TotalDuration))
				return
			}
			fmt.Fprintf(w, "%s  %s left of %s  %s %.0f%%\n",
				session.Status, clock(snap.TimeLeft), clock(snap.TotalDuration),
				progressBar(snap.Progress, 20), snap.Progress)
			printSession(w, session)
		})
	},
}

var focusWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live countdown of the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		tty := isTerminal(out)
		var last string
		err = a.Watch(ctx, func(s timer.Snapshot) {
			line := watchLine(s)
			if tty {
				fmt.Fprint(out, "\r\033[K"+fitWidth(line))
				return
			}
			// Without a terminal only print when something other than the clock changes.
			key := s.State.String() + fmt.Sprint(s.Celebrating, s.Err != nil)
			if key != last {
				fmt.Fprintln(out, line)
				last = key
			}
		})
		if tty {
			fmt.Fprintln(out)
		}
		return err
	},
}

func watchLine(s timer.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-7s %s / %s %s %3.0f%%",
		s.State, clock(s.TimeLeft), clock(s.TotalDuration), progressBar(s.Progress, 20), s.Progress)
	if s.Celebrating {
		b.WriteString("  Session complete!")
	}
	if s.Err != nil {
		b.WriteString("  (offline: " + s.Err.Error() + ")")
	}
	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// fitWidth truncates line to the terminal width so the carriage return redraw
// stays on one row.
func fitWidth(line string) string {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 1 || len(line) < width {
		return line
	}
	return line[:width-1]
}

type sessionAction func(*ht.HTService, context.Context) (*model.FocusSession, error)

func runAction(cmd *cobra.Command, verb string, action sessionAction) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := action(a.Service(), cmd.Context())
	if err != nil {
		return err
	}
	return printAction(cmd, verb, s)
}

func printAction(cmd *cobra.Command, verb string, s *model.FocusSession) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), format, s, func(w io.Writer) {
		fmt.Fprintf(w, "%s session %s (%s, %d min)\n", verb, s.ID, s.Status, s.PlannedDurationMinutes)
	})
}

func notesFlag(cmd *cobra.Command) *string {
	if !cmd.Flags().Changed("notes") {
		return nil
	}
	notes, _ := cmd.Flags().GetString("notes")
	return &notes
}

func init() {
	focusStartCmd.Flags().IntP("minutes", "m", 0, "Planned length in minutes (default: the habit's, then the configured default)")
	focusStartCmd.Flags().StringP("notes", "n", "", "Notes for the session")
	focusCompleteCmd.Flags().StringP("notes", "n", "", "Replace the session notes")

	focusCmd.AddCommand(focusStartCmd)
	focusCmd.AddCommand(focusPauseCmd)
	focusCmd.AddCommand(focusResumeCmd)
	focusCmd.AddCommand(focusCompleteCmd)
	focusCmd.AddCommand(focusCancelCmd)
	focusCmd.AddCommand(focusStatusCmd)
	focusCmd.AddCommand(focusWatchCmd)
}
