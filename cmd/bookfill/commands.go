package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/bookfill/internal/backfill"
	"github.com/rickgao/bookfill/internal/collector"
	"github.com/rickgao/bookfill/internal/metrics"
)

func newCollectCmd() *cobra.Command {
	var (
		start, end, resume string
		every              time.Duration
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch forward one day at a time from the latest stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := overrideRange(a.cfg, start, end); err != nil {
				return err
			}
			if resume != "" {
				a.cfg.Collector.Resume = resume
			}
			strategy, err := collector.ParseResumeStrategy(a.cfg.Collector.Resume)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			pool, st, err := a.connectStore(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			return a.withMetrics(ctx, pool, func(ctx context.Context, m *metrics.Metrics) error {
				c := collector.New(collector.Config{
					Exchange: a.exchange(),
					Symbol:   a.cfg.Pair.Symbol,
					Start:    a.cfg.History.Start.Time,
					End:      a.cfg.History.End.Time,
					Resume:   strategy,
				}, a.apiClient(), st, m, a.logger)

				return a.repeat(ctx, every, func(ctx context.Context) error {
					sum, err := c.Run(ctx)
					fmt.Fprintf(cmd.OutOrStdout(), "collected %d rows over %d days (%d empty, %d failed)\n",
						sum.Rows, sum.Days, sum.Empty, sum.Failed)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "override history.start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "override history.end (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&resume, "resume", "", "override collector.resume (next_day, from_latest, from_start)")
	cmd.Flags().DurationVar(&every, "every", 0, "repeat on this interval until interrupted (0 runs once)")
	return cmd
}

func newBackfillCmd() *cobra.Command {
	var (
		start, end string
		every      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Find gaps in the stored history and fill them",
		Long: `backfill scans the configured history in chunks. Each gap is re-fetched from the
source; when that fails or returns nothing, it is bridged by interpolation
between the stored snapshots on either side. Gaps without data on both sides
are left for a later run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := overrideRange(a.cfg, start, end); err != nil {
				return err
			}

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			pool, st, err := a.connectStore(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			return a.withMetrics(ctx, pool, func(ctx context.Context, m *metrics.Metrics) error {
				o := backfill.New(backfill.Config{
					Exchange:         a.exchange(),
					Symbol:           a.cfg.Pair.Symbol,
					BoundaryLookback: a.cfg.Interpolation.BoundaryLookback,
				}, a.apiClient(), st, a.scanner(st), a.interpolator(), m, a.logger)

				return a.repeat(ctx, every, func(ctx context.Context) error {
					from, to := a.historyRange()
					sum, err := o.Run(ctx, from, to)
					printSummary(cmd, sum)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "override history.start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "override history.end (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().DurationVar(&every, "every", 0, "repeat on this interval until interrupted (0 runs once)")
	return cmd
}

func printSummary(cmd *cobra.Command, sum backfill.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d chunks, %d items (%d fetched, %d imputed, %d skipped, %d failed) in %s\n",
		sum.RunID, sum.Chunks, sum.Items, sum.Fetched, sum.Imputed, sum.Skipped, sum.Failed, sum.Duration)

	if len(sum.Unresolved) == 0 {
		return
	}
	fmt.Fprintf(out, "%d unresolved:\n", len(sum.Unresolved))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSTART\tEND\tOUTCOME\tREASON")
	for _, r := range sum.Unresolved {
		reason := ""
		if r.Err != nil {
			reason = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Item.Kind, r.Item.Range.Start.Format(timeLayout), r.Item.Range.End.Format(timeLayout), r.Outcome, reason)
	}
	tw.Flush()
}

func newGapsCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "List gaps in the stored history without fetching or writing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := overrideRange(a.cfg, start, end); err != nil {
				return err
			}

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			pool, st, err := a.connectStore(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			from, to := a.historyRange()
			items, err := a.scanner(st).Scan(ctx, from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tSTART\tEND\tDURATION")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					it.Kind, it.Range.Start.Format(timeLayout), it.Range.End.Format(timeLayout), it.Range.Duration())
			}
			tw.Flush()
			fmt.Fprintf(out, "%d gaps in %s\n", len(items), st.Table())
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "override history.start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "override history.end (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the snapshot table for the configured pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext(a.logger)
			defer cancel()

			pool, st, err := a.connectStore(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", st.Table())
			return nil
		},
	}
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"
