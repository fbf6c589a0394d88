package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/hylla/nudger/internal/adapters/server/common"
	"github.com/hylla/nudger/internal/domain"
	"github.com/spf13/cobra"
)

// listOptions holds list command flags.
type listOptions struct {
	asJSON   bool
	typ      string
	priority string
	limit    int
}

func newListCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var lo listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Run one cycle and print the ranked worklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "list", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				list, err := rt.service.ListNudges(ctx, common.ListNudgesRequest{
					Type:     lo.typ,
					Priority: lo.priority,
					Limit:    lo.limit,
					Refresh:  true,
				})
				if err != nil {
					return err
				}
				if lo.asJSON {
					return writeJSON(stdout, list)
				}
				return writeNudgeTable(stdout, list, rt.controller.Now())
			})
		},
	}
	cmd.Flags().BoolVar(&lo.asJSON, "json", false, "print the worklist as JSON")
	cmd.Flags().StringVar(&lo.typ, "type", "", "only show one nudge type (e.g. stale_lead)")
	cmd.Flags().StringVar(&lo.priority, "priority", "", "only show one priority (high, medium, low)")
	cmd.Flags().IntVar(&lo.limit, "limit", 0, "maximum nudges to print (0 for all)")
	return cmd
}

func newSummaryCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print worklist counts by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "summary", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				summary, err := rt.service.Summary(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(stdout, summary)
				}
				_, err = fmt.Fprintf(stdout, "total: %d\nhigh: %d\nmedium: %d\nlow: %d\n", summary.Total, summary.High, summary.Medium, summary.Low)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print counts as JSON")
	return cmd
}

func newSnoozeCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var duration string
	cmd := &cobra.Command{
		Use:   "snooze <nudge-id>",
		Short: "Hide one nudge for a while",
		Long:  "Hide one nudge for a while. --for accepts 1h, 4h, tomorrow, next-week, or a Go duration such as 90m.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "snooze", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				result, err := rt.service.SnoozeNudge(ctx, common.SnoozeRequest{ID: args[0], Duration: duration})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(stdout, "snoozed %s until %s\n", result.Snooze.NudgeID, result.Snooze.ExpiresAt.Format(time.RFC3339))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&duration, "for", "", "snooze duration (defaults to snooze.default_duration)")
	return cmd
}

func newUnsnoozeCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "unsnooze <nudge-id>",
		Short: "Show a snoozed or dismissed nudge again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "unsnooze", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				id := strings.TrimSpace(args[0])
				if id == "" {
					return errors.New("nudge id is required")
				}
				if _, err := rt.controller.Unsnooze(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(stdout, "unsnoozed %s\n", id)
				return err
			})
		},
	}
}

func newDismissCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <nudge-id>",
		Short: "Hide one nudge indefinitely",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "dismiss", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				result, err := rt.service.DismissNudge(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(stdout, "dismissed %s\n", result.Snooze.NudgeID)
				return err
			})
		},
	}
}

func newSnoozesCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snoozes",
		Short: "List persisted snooze entries with their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "snoozes", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				records, err := rt.service.ListSnoozes(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(stdout, map[string]any{"snoozes": records})
				}
				if len(records) == 0 {
					_, err = fmt.Fprintln(stdout, "no snoozes")
					return err
				}
				for _, r := range records {
					if _, err := fmt.Fprintf(stdout, "%s\t%s\t%s\n", r.NudgeID, r.State, r.ExpiresAt.Format(time.RFC3339)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func newPruneCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop expired snooze entries and optimize the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "prune", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				removed, err := compactOnce(ctx, rt)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(stdout, "pruned %d expired snooze(s)\n", removed)
				return err
			})
		},
	}
}

// importFile is the JSON shape accepted by the import command.
type importFile struct {
	Leads    []domain.Lead        `json:"leads"`
	Deals    []domain.Deal        `json:"deals"`
	Captures []domain.CaptureItem `json:"captures"`
}

func newImportCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "import <records.json>",
		Short: "Load leads, deals, and capture items into the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, "import", stderr, func(ctx context.Context, rt *nudgerRuntime) error {
				records, err := readImportFile(args[0])
				if err != nil {
					return err
				}
				if err := rt.repo.ImportRecords(ctx, records); err != nil {
					return fmt.Errorf("import records: %w", err)
				}
				_, err = fmt.Fprintf(stdout, "imported %d lead(s), %d deal(s), %d capture item(s)\n",
					len(records.Leads), len(records.Deals), len(records.Captures))
				return err
			})
		},
	}
}

func readImportFile(path string) (domain.Records, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Records{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var in importFile
	if err := dec.Decode(&in); err != nil {
		return domain.Records{}, fmt.Errorf("decode import json: %w", err)
	}
	return domain.Records{Leads: in.Leads, Deals: in.Deals, Captures: in.Captures}, nil
}

func newPathsCommand(opts *rootOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, configPath, dbPath, _, err := resolvePaths(opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", configPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", dbPath)
			return nil
		},
	}
}

// withRuntime opens a runtime, runs fn inside a logged command flow, and closes everything.
func withRuntime(ctx context.Context, opts *rootOptions, command string, stderr io.Writer, fn func(context.Context, *nudgerRuntime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, opts, command, stderr, true)
	if err != nil {
		return err
	}
	defer rt.Close()
	return runCommandFlow(rt, command, func() error {
		return fn(ctx, rt)
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// writeNudgeTable renders the worklist as a bordered table colored by priority.
func writeNudgeTable(w io.Writer, list common.NudgeList, now time.Time) error {
	if !list.Enabled {
		_, err := fmt.Fprintln(w, "Nudges are turned off.")
		return err
	}
	if len(list.Nudges) == 0 {
		_, err := fmt.Fprintln(w, "All caught up.")
		return err
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("PRIORITY", "TYPE", "ID", "TITLE", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 && row >= 0 && row < len(list.Nudges) {
				p := domain.DescribePriority(list.Nudges[row].Priority)
				return cellStyle.Foreground(lipgloss.Color(p.Color))
			}
			return cellStyle
		})
	for _, n := range list.Nudges {
		t.Row(
			domain.DescribePriority(n.Priority).Label,
			domain.Descriptor(n.Type).Label,
			n.ID,
			n.Title,
			nudgeDetail(n, now),
		)
	}

	s := list.Summary
	if _, err := lipgloss.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d total · %d high · %d medium · %d low\n", s.Total, s.High, s.Medium, s.Low)
	return err
}

// nudgeDetail joins the subtitle with a due date when one is set.
func nudgeDetail(n domain.Nudge, now time.Time) string {
	parts := make([]string, 0, 2)
	if sub := strings.TrimSpace(n.Subtitle); sub != "" {
		parts = append(parts, sub)
	}
	if n.DueDate != nil {
		due := n.DueDate.In(now.Location())
		parts = append(parts, "due "+due.Format("Jan 2"))
	}
	return strings.Join(parts, " · ")
}
