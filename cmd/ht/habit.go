package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ht-go/internal/ht"
)

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Manage habits",
}

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		habits, err := a.Service().Habits(cmd.Context(), all)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, habits, func(w io.Writer) {
			if len(habits) == 0 {
				fmt.Fprintln(w, "No habits. Add one with: ht habit add NAME")
				return
			}
			for i := range habits {
				printHabit(w, &habits[i])
			}
		})
	},
}

var habitAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		minutes, _ := cmd.Flags().GetInt("minutes")
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.Service().AddHabit(cmd.Context(), ht.CreateHabitRequest{
			Name:                args[0],
			Description:         description,
			DefaultFocusMinutes: minutes,
		})
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, h, func(w io.Writer) {
			fmt.Fprintf(w, "Added habit %s (%s)\n", h.Name, h.ID)
		})
	},
}

var habitShowCmd = &cobra.Command{
	Use:   "show HABIT_ID",
	Short: "Show a habit",
	Args:  cobra.ExactArgs(1),
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

		h, err := a.Service().Habit(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), format, h, func(w io.Writer) {
			printHabit(w, h)
			if h.Description != "" {
				fmt.Fprintf(w, "\n%s\n", h.Description)
			}
		})
	},
}

var habitRmCmd = &cobra.Command{
	Use:   "rm HABIT_ID",
	Short: "Archive a habit (its sessions are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ArchiveHabit(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived habit %s\n", args[0])
		return nil
	},
}

func init() {
	habitListCmd.Flags().BoolP("all", "a", false, "Include archived habits")
	habitAddCmd.Flags().StringP("description", "d", "", "Description")
	habitAddCmd.Flags().IntP("minutes", "m", 0, "Default focus length in minutes")

	habitCmd.AddCommand(habitListCmd)
	habitCmd.AddCommand(habitAddCmd)
	habitCmd.AddCommand(habitShowCmd)
	habitCmd.AddCommand(habitRmCmd)
}
