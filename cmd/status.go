package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/internal/monitoring"
	"github.com/veriscope/authenticity-engine/pkg/notion"
)

var (
	statusHours  int
	statusRecent int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show analysis activity and provider health",
	Long:  "Displays analysis counts, verdict and recommendation distributions, provider coverage and latency, recent consensus records, and the open review backlog.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ops"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		hours := statusHours
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackHours
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return err
		}
		formatSnapshot(os.Stdout, snap)

		if statusRecent > 0 {
			recent, err := st.RecentConsensus(ctx, statusRecent)
			if err != nil {
				return err
			}
			if len(recent) > 0 {
				fmt.Fprintln(os.Stdout)
				formatRecentConsensus(os.Stdout, recent)
			}
		}

		// Open review backlog, when a review board is configured.
		if cfg.Review.NotionToken != "" && cfg.Review.NotionDatabaseID != "" {
			client := notion.NewClient(cfg.Review.NotionToken)
			pages, err := notion.ListOpenReviews(ctx, client, cfg.Review.NotionDatabaseID)
			if err != nil {
				zap.L().Warn("review board query failed", zap.Error(err))
			} else {
				fmt.Fprintf(os.Stdout, "\nOpen review backlog: %d\n", len(pages))
			}
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusHours, "hours", 0, "lookback window in hours (default from config)")
	statusCmd.Flags().IntVar(&statusRecent, "recent", 10, "number of recent analyses to list (0 = none)")
	rootCmd.AddCommand(statusCmd)
}

// formatSnapshot writes the monitoring snapshot as tabular text to w.
func formatSnapshot(out io.Writer, snap *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Analyses:\t%d\n", snap.Analyses)
	_, _ = fmt.Fprintf(w, "Human review:\t%d (%.1f%%)\n", snap.HumanReview, snap.HumanReviewRate*100)
	_ = w.Flush()

	if len(snap.Verdicts) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "VERDICT\tCOUNT")
		for _, v := range model.VerdictOrder {
			if c := snap.Verdicts[v]; c > 0 {
				_, _ = fmt.Fprintf(w, "%s\t%d\n", v, c)
			}
		}
		_ = w.Flush()
	}

	if len(snap.Recommendations) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "RECOMMENDATION\tCOUNT")
		for _, r := range []model.Recommendation{model.RecommendationApprove, model.RecommendationFlag, model.RecommendationReject} {
			if c := snap.Recommendations[r]; c > 0 {
				_, _ = fmt.Fprintf(w, "%s\t%d\n", r, c)
			}
		}
		_ = w.Flush()
	}

	if len(snap.Providers) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PROVIDER\tRESULTS\tAVG LATENCY")
		for _, p := range snap.Providers {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%.0fms\n", p.Provider, p.Results, p.AvgLatencyMS)
		}
		_ = w.Flush()
	}
}

// formatRecentConsensus writes a tabular list of recent analyses to w.
func formatRecentConsensus(out io.Writer, recent []model.ConsensusSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MEDIA\tTYPE\tVERDICT\tRECOMMENDATION\tSCORE\tREVIEW\tANALYZED")
	for _, s := range recent {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%v\t%s\n",
			truncateID(s.MediaID),
			s.MediaType,
			s.Verdict,
			s.Recommendation,
			s.OverallAuthenticityScore,
			s.RequiresHumanReview,
			s.AnalyzedAt.Format(time.DateTime),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 12 characters of a media id for compact display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
