package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ytwhisper/internal/history"
	"ytwhisper/internal/language"
)

const shortIDLength = 8

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transcription runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 shows all)")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryClearCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func renderRunTable(runs []history.Run) string {
	headers := []string{"ID", "Created", "Status", "Backend", "Model", "Task", "Language", "Segments", "Title"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			formatCreated(run.CreatedAt),
			string(run.Status),
			run.Backend,
			run.Model,
			run.Task,
			languageLabel(run.Language),
			strconv.Itoa(run.SegmentCount),
			runLabel(run),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show details of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fields := [][2]string{
				{"Run ID", run.ID},
				{"Batch ID", run.BatchID},
				{"Created", formatCreated(run.CreatedAt)},
				{"Status", string(run.Status)},
				{"Source", run.Source},
				{"Media ID", run.MediaID},
				{"Title", run.Title},
				{"Backend", run.Backend},
				{"Model", run.Model},
				{"Task", run.Task},
				{"Language", languageLabel(run.Language)},
				{"Format", strings.ToUpper(run.Format)},
				{"Segments", strconv.Itoa(run.SegmentCount)},
				{"Duration", formatDuration(run.DurationSeconds)},
				{"Output", run.OutputPath},
			}
			if run.ErrorMessage != "" {
				fields = append(fields, [2]string{"Error kind", run.ErrorKind}, [2]string{"Error", run.ErrorMessage})
			}
			for _, field := range fields {
				if strings.TrimSpace(field[1]) == "" {
					continue
				}
				fmt.Fprintf(out, "%-11s %s\n", field[0]+":", field[1])
			}
			return nil
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [run-id...]",
		Short: "Delete the given runs, or every run when no IDs are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d runs\n", removed)
				return nil
			}
			for _, arg := range args {
				run, err := store.Get(cmd.Context(), arg)
				if err != nil {
					return err
				}
				if _, err := store.Delete(cmd.Context(), run.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed run %s\n", shortID(run.ID))
			}
			return nil
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the given number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Age threshold in days")
	return cmd
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func formatCreated(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

func languageLabel(code string) string {
	if code == "" {
		return language.DisplayName("")
	}
	return fmt.Sprintf("%s (%s)", language.DisplayName(code), code)
}

func runLabel(run history.Run) string {
	switch {
	case run.Title != "":
		return run.Title
	case run.MediaID != "":
		return run.MediaID
	default:
		return run.Source
	}
}
