package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ht-go/internal/model"
)

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "text", "json", "yaml":
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// render writes v as JSON or YAML, or calls text for the default format.
func render(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		fmt.Fprint(w, string(data))
	default:
		text(w)
	}
	return nil
}

// clock formats seconds as MM:SS, or H:MM:SS from an hour up.
func clock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// progressBar draws a fixed-width bar for a percentage in [0, 100].
func progressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func localTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func printSession(w io.Writer, s *model.FocusSession) {
	actual := "-"
	if s.ActualDurationSeconds != nil {
		actual = clock(*s.ActualDurationSeconds)
	}
	notes := ""
	if s.Notes != nil && *s.Notes != "" {
		notes = "  " + *s.Notes
	}
	fmt.Fprintf(w, "%s  %s  %-11s  %3dm  %8s  habit:%s%s\n",
		shortID(s.ID),
		localTime(s.StartTime),
		s.Status,
		s.PlannedDurationMinutes,
		actual,
		shortID(s.HabitID),
		notes,
	)
}

func printHabit(w io.Writer, h *model.Habit) {
	archived := ""
	if h.ArchivedAt != nil {
		archived = "  [archived " + localTime(*h.ArchivedAt) + "]"
	}
	minutes := "-"
	if h.DefaultFocusMinutes > 0 {
		minutes = fmt.Sprintf("%dm", h.DefaultFocusMinutes)
	}
	fmt.Fprintf(w, "%s  %-24s  %4s%s\n", h.ID, h.Name, minutes, archived)
}
