package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/models"
	"github.com/ConfabulousDev/habitstat/internal/validation"
)

func parseHabitID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid habit id %q", s)
	}
	return id, nil
}

func (a *app) habitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Manage habits",
	}

	var description, color string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if err := validation.ValidateHabitName(name); err != nil {
				return err
			}
			habit, err := a.database.CreateHabit(cmd.Context(), db.CreateHabitParams{
				UserID:      a.userID,
				Name:        name,
				Description: description,
				Color:       color,
				CreatedAt:   a.now(),
			})
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), habit, func(w io.Writer) {
				fmt.Fprintf(w, "Created habit %d: %s\n", habit.ID, habit.Name)
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "habit description")
	add.Flags().StringVar(&color, "color", "", "display color")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Soft-delete a habit, keeping its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHabitID(args[0])
			if err != nil {
				return err
			}
			if err := a.database.SoftDeleteHabit(cmd.Context(), a.userID, id, a.now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted habit %d\n", id)
			return nil
		},
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List habits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			habits, err := a.database.ListTasks(cmd.Context(), a.userID, all)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), habits, func(w io.Writer) {
				if len(habits) == 0 {
					fmt.Fprintln(w, "No habits yet. Run 'habitstat habit add NAME' to create one.")
					return
				}
				for _, h := range habits {
					status := ""
					if h.IsDeleted {
						status = " (deleted)"
					}
					fmt.Fprintf(w, "%4d  %s%s\n", h.ID, h.Name, status)
				}
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include deleted habits")

	cmd.AddCommand(add, del, list)
	return cmd
}

func (a *app) eventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Record habit events",
	}

	var eventType, atFlag string
	logCmd := &cobra.Command{
		Use:   "log HABIT_ID",
		Short: "Record a lifecycle event (default COMPLETED, now)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHabitID(args[0])
			if err != nil {
				return err
			}
			et, err := models.ParseEventType(eventType)
			if err != nil {
				return err
			}
			ts := a.now()
			if atFlag != "" {
				if ts, err = time.Parse(time.RFC3339, atFlag); err != nil {
					return fmt.Errorf("--at must be RFC 3339, e.g. 2024-01-02T09:00:00Z")
				}
			}

			habit, err := a.database.GetHabit(cmd.Context(), a.userID, id)
			if err != nil {
				return err
			}
			if habit.IsDeleted {
				return fmt.Errorf("habit %d is deleted", id)
			}

			event, err := a.database.InsertEvent(cmd.Context(), models.CompletionEvent{
				TaskID:    id,
				UserID:    a.userID,
				EventType: et,
				Timestamp: ts,
			})
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), event, func(w io.Writer) {
				fmt.Fprintf(w, "Logged %s for %s at %s\n", event.EventType, habit.Name,
					event.Timestamp.In(a.loc).Format(time.RFC3339))
			})
		},
	}
	logCmd.Flags().StringVar(&eventType, "type", string(models.EventCompleted), "VIEWED, STARTED, COMPLETED or SKIPPED")
	logCmd.Flags().StringVar(&atFlag, "at", "", "event time, RFC 3339 (default now)")

	cmd.AddCommand(logCmd)
	return cmd
}

func (a *app) fitnessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Record fitness samples",
	}

	logCmd := &cobra.Command{
		Use:   "log DATE TYPE VALUE",
		Short: "Record a day's STEPS or CALORIES_BURNED value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.Parse(analytics.DateLayout, args[0])
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD")
			}
			dt, err := models.ParseFitnessDataType(args[1])
			if err != nil {
				return err
			}
			value, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid value %q", args[2])
			}
			sample := models.FitnessSample{UserID: a.userID, Date: day, DataType: dt, Value: value}
			if err := a.database.UpsertFitnessSample(cmd.Context(), sample); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s on %s\n", value, dt, args[0])
			return nil
		},
	}

	cmd.AddCommand(logCmd)
	return cmd
}
