package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/consensus"
	"github.com/veriscope/authenticity-engine/internal/engine"
	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/pkg/mediavault"
)

var (
	analyzeType      string
	analyzeProviders []string
	analyzeJSON      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <media-id-or-url>",
	Short: "Analyze a single media item",
	Long:  "Runs every enabled detection provider against one media item, persists the consensus, and prints it. Accepts a direct URL or a media id resolvable through MediaVault.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mt := model.MediaType(strings.ToLower(analyzeType))
		if !mt.Valid() {
			return eris.Errorf("analyze: --type must be video or photo, got %q", analyzeType)
		}

		env, err := initEngine(cmd.Context(), "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), analysisTimeout())
		defer cancel()

		ref, err := resolveMediaRef(ctx, args[0], mt, env.Resolver)
		if err != nil {
			return err
		}

		analysis := env.Engine.Analyze(ctx, ref, analyzeProviders)
		rec := consensus.Aggregate(analysis.Results, time.Now().UTC())

		if err := env.Gateway.Persist(ctx, ref, rec, analysis.Results); err != nil {
			return err
		}

		zap.L().Info("analysis complete",
			zap.String("media_id", ref.MediaID),
			zap.String("verdict", string(rec.Verdict)),
			zap.String("recommendation", string(rec.Recommendation)),
			zap.Int("providers", rec.ProvidersAnalyzed),
		)

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				MediaID   string                 `json:"media_id"`
				MediaType model.MediaType        `json:"media_type"`
				Consensus model.ConsensusRecord  `json:"consensus"`
				Results   []model.ProviderResult `json:"results"`
			}{ref.MediaID, ref.MediaType, rec, analysis.Results})
		}

		formatAnalysis(os.Stdout, ref, rec, analysis)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "media type: video or photo (required)")
	analyzeCmd.Flags().StringSliceVar(&analyzeProviders, "providers", nil, "restrict analysis to these providers")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON")
	_ = analyzeCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(analyzeCmd)
}

// isMediaURL reports whether the argument is a direct locator rather than a
// stored media id.
func isMediaURL(s string) bool {
	return strings.Contains(s, "://")
}

// resolveMediaRef builds the MediaRef for one command-line argument. A URL
// argument gets a fresh media id; an id argument is resolved to a signed URL
// through MediaVault.
func resolveMediaRef(ctx context.Context, arg string, mt model.MediaType, resolver mediavault.Client) (model.MediaRef, error) {
	ref := model.MediaRef{MediaType: mt}
	if isMediaURL(arg) {
		ref.MediaID = uuid.New().String()
		ref.LocatorURL = arg
		return ref, nil
	}

	ref.MediaID = arg
	if resolver == nil {
		return ref, eris.New("analyze: mediavault is not configured; pass a URL instead of a media id")
	}
	signed, err := resolver.Resolve(ctx, arg, string(mt))
	if err != nil {
		return ref, eris.Wrapf(err, "analyze: resolve %s", arg)
	}
	ref.LocatorURL = signed.SignedURL
	return ref, nil
}

// formatAnalysis writes a human-readable consensus summary to w.
func formatAnalysis(out io.Writer, ref model.MediaRef, rec model.ConsensusRecord, analysis engine.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Media:\t%s (%s)\n", ref.MediaID, ref.MediaType)
	_, _ = fmt.Fprintf(w, "Verdict:\t%s\n", rec.Verdict)
	_, _ = fmt.Fprintf(w, "Recommendation:\t%s\n", rec.Recommendation)
	_, _ = fmt.Fprintf(w, "Authenticity score:\t%.1f\n", rec.OverallAuthenticityScore)
	_, _ = fmt.Fprintf(w, "Confidence:\t%.1f\n", rec.VerdictConfidence)
	_, _ = fmt.Fprintf(w, "Agreement:\t%d/%d providers\n", rec.ProvidersAgreed, rec.ProvidersAnalyzed)
	_, _ = fmt.Fprintf(w, "Human review:\t%v\n", rec.RequiresHumanReview)
	_ = w.Flush()

	if len(analysis.Results) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PROVIDER\tVERDICT\tAI\tDEEPFAKE\tCONFIDENCE\tLATENCY")
		for _, r := range analysis.Results {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%.0f\t%dms\n",
				r.Provider, r.Verdict, r.AIGeneratedScore, r.DeepfakeScore, r.Confidence, r.RequestDurationMS)
		}
		_ = w.Flush()
	}

	for _, absent := range analysis.Absent {
		_, _ = fmt.Fprintf(out, "absent: %s (%s)\n", absent.Provider, absent.Reason)
	}
}
