// Package cli implements the habitstat command line tool over a local SQLite
// database.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/habitstat/internal/analytics"
	"github.com/ConfabulousDev/habitstat/internal/db"
	"github.com/ConfabulousDev/habitstat/internal/logger"
)

const (
	dbFileName  = "habitstat.db"
	dbDirName   = ".habitstat"
	defaultUser = "local"
)

// app carries flag values and the services opened for one invocation.
type app struct {
	dbPath  string
	tz      string
	userID  string
	jsonOut bool
	verbose bool
	now     func() time.Time

	database *db.DB
	loc      *time.Location
	engine   *analytics.Engine
	store    analytics.AnalyticsStore
}

// NewRootCmd builds the command tree. now overrides the clock when non-nil.
func NewRootCmd(now func() time.Time) *cobra.Command {
	if now == nil {
		now = time.Now
	}
	a := &app{now: now}

	root := &cobra.Command{
		Use:   "habitstat",
		Short: "Track habits and compute streaks and analytics",
		Long: `habitstat records habit lifecycle events in a local SQLite database and
computes streaks, completion rates and time-of-day analytics from them.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (default ~/.habitstat/habitstat.db)")
	root.PersistentFlags().StringVar(&a.tz, "tz", "", "IANA time zone for calendar dates (default UTC)")
	root.PersistentFlags().StringVar(&a.userID, "user", defaultUser, "user id the records belong to")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.habitCmd(),
		a.eventCmd(),
		a.fitnessCmd(),
		a.analyticsCmd(),
		a.historyCmd(),
		a.streakCmd(),
		a.recomputeCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	logger.SetOutput(cmd.ErrOrStderr())
	if a.verbose {
		logger.SetLevel(slog.LevelDebug)
	} else {
		logger.SetLevel(slog.LevelWarn)
	}

	loc, err := analytics.LoadLocation(a.tz)
	if err != nil {
		return err
	}
	a.loc = loc

	path := a.dbPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dir := filepath.Join(home, dbDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create db directory: %w", err)
		}
		path = filepath.Join(dir, dbFileName)
	}

	database, err := db.OpenSQLite(path)
	if err != nil {
		return err
	}
	logger.Debug("opened database", "path", path, "tz", loc.String(), "user_id", a.userID)
	a.database = database
	a.store = db.NewAnalyticsStore(database)
	a.engine = analytics.NewEngine(database, a.store, analytics.Config{Location: loc, Now: a.now})
	return nil
}

func (a *app) close(cmd *cobra.Command, args []string) error {
	if a.database == nil {
		return nil
	}
	err := a.database.Close()
	a.database = nil
	return err
}

// print writes v as indented JSON when --json is set, otherwise calls text.
func (a *app) print(w io.Writer, v any, text func(io.Writer)) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// rangeFlags registers --start and --end on cmd.
func rangeFlags(cmd *cobra.Command, start, end *string) {
	cmd.Flags().StringVar(start, "start", "", "first day, YYYY-MM-DD (default 30 days ago)")
	cmd.Flags().StringVar(end, "end", "", "last day, YYYY-MM-DD (default today)")
}

// dateRange resolves --start/--end, defaulting to the trailing 30 days.
func (a *app) dateRange(start, end string) (analytics.DateRange, error) {
	today := analytics.CalendarDate(a.now(), a.loc)
	if end == "" {
		end = today.Format(analytics.DateLayout)
	}
	if start == "" {
		e, err := analytics.ParseDateRange(end, end)
		if err != nil {
			return analytics.DateRange{}, err
		}
		start = e.Start.AddDate(0, 0, -29).Format(analytics.DateLayout)
	}
	return analytics.ParseDateRange(start, end)
}
