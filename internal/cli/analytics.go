package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
)

func (a *app) analyticsCmd() *cobra.Command {
	var start, end string
	var refresh, fitness bool

	cmd := &cobra.Command{
		Use:   "analytics HABIT_ID",
		Short: "Show streaks and completion analytics for a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHabitID(args[0])
			if err != nil {
				return err
			}
			r, err := a.dateRange(start, end)
			if err != nil {
				return err
			}
			habit, err := a.database.GetHabit(cmd.Context(), a.userID, id)
			if err != nil {
				return err
			}

			if fitness {
				report, err := analytics.NewFitnessReporter(a.engine, a.database).Report(cmd.Context(), id, a.userID, r)
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), report, func(w io.Writer) {
					writeAnalytics(w, habit.Name, report.Analytics)
					if !report.Fitness.FitnessDataAvailable {
						fmt.Fprintln(w, "  Fitness:            no data")
						return
					}
					fmt.Fprintf(w, "  Average steps:      %.0f\n", report.Fitness.AverageSteps)
					fmt.Fprintf(w, "  Average calories:   %.0f\n", report.Fitness.AverageCalories)
				})
			}

			record, err := a.engine.GetOrCompute(cmd.Context(), id, a.userID, r, refresh)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), record, func(w io.Writer) {
				writeAnalytics(w, habit.Name, record)
			})
		},
	}
	rangeFlags(cmd, &start, &end)
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute instead of using stored analytics")
	cmd.Flags().BoolVar(&fitness, "fitness", false, "include the fitness correlation")
	return cmd
}

func writeAnalytics(w io.Writer, name string, rec *analytics.TaskAnalytics) {
	fmt.Fprintf(w, "%s  %s to %s\n", name,
		rec.DateRange.Start.Format(analytics.DateLayout), rec.DateRange.End.Format(analytics.DateLayout))
	fmt.Fprintf(w, "  Current streak:     %d\n", rec.CurrentStreak)
	fmt.Fprintf(w, "  Longest streak:     %d\n", rec.LongestStreak)
	fmt.Fprintf(w, "  Completions:        %d\n", rec.TotalCompletions)
	fmt.Fprintf(w, "  Completion rate:    %.2f per day\n", rec.CompletionRate)
	fmt.Fprintf(w, "  Avg session:        %.1f min\n", rec.AverageCompletionTimeMinutes)
	if len(rec.TimeOfDayDistribution) > 0 {
		hours := slices.Sorted(maps.Keys(rec.TimeOfDayDistribution))
		parts := make([]string, 0, len(hours))
		for _, h := range hours {
			parts = append(parts, fmt.Sprintf("%02d:00 x%d", h, rec.TimeOfDayDistribution[h]))
		}
		fmt.Fprintf(w, "  By hour:            %s\n", strings.Join(parts, " "))
	}
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List all habits with their latest analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := analytics.NewHistory(a.database, a.store).Build(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			entries := slices.Collect(seq)
			if entries == nil {
				entries = []analytics.HistoryEntry{}
			}
			return a.print(cmd.OutOrStdout(), entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No habits yet.")
					return
				}
				for _, e := range entries {
					status := "active"
					if !e.IsActive {
						status = "deleted"
					}
					line := fmt.Sprintf("%4d  %-20s %-8s last activity %s", e.Habit.ID, e.Habit.Name, status,
						e.LastActivity.In(a.loc).Format(time.DateTime))
					if e.LatestAnalytics != nil {
						line += fmt.Sprintf("  streak %d (best %d)", e.LatestAnalytics.CurrentStreak, e.LatestAnalytics.LongestStreak)
					}
					fmt.Fprintln(w, line)
				}
			})
		},
	}
}

func (a *app) streakCmd() *cobra.Command {
	var asOfFlag string

	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Show the all-habits and any-habit streaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf := a.now()
			if asOfFlag != "" {
				d, err := time.Parse(analytics.DateLayout, asOfFlag)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD")
				}
				day, _ := analytics.NewDateRange(d, d)
				_, next := day.Bounds(a.loc)
				asOf = next.Add(-time.Millisecond)
			}

			summary, err := analytics.NewStreaks(a.database, a.database, a.loc).Summary(cmd.Context(), a.userID, asOf)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), summary, func(w io.Writer) {
				fmt.Fprintf(w, "All habits streak: %d\n", summary.AllHabitsStreak)
				fmt.Fprintf(w, "Any habit streak:  %d\n", summary.AnyHabitStreak)
				fmt.Fprintf(w, "Tracked habits:    %d\n", summary.TrackedTasks)
			})
		},
	}
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "day to measure at, YYYY-MM-DD (default now)")
	return cmd
}

func (a *app) recomputeCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute stored analytics for every active habit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.dateRange(start, end)
			if err != nil {
				return err
			}
			result, err := analytics.NewPrecomputer(a.database, a.engine, 0).PrecomputeUser(cmd.Context(), a.userID, r, true)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Recomputed %d habits for %s", result.Processed, r.Key())
				if result.Failed > 0 {
					fmt.Fprintf(w, ", %d failed", result.Failed)
				}
				fmt.Fprintln(w)
				for _, f := range result.Failures {
					fmt.Fprintf(w, "  habit %d: %s\n", f.TaskID, f.Error)
				}
			})
		},
	}
	rangeFlags(cmd, &start, &end)
	return cmd
}
