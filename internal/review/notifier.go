// Package review escalates consensus outcomes that need a human decision.
// Flagged and rejected media are posted to an ops webhook and tracked on a
// Notion review board; both sinks are best-effort and never block or fail
// an analysis.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscope/authenticity-engine/internal/config"
	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/pkg/notion"
)

// Escalation is one media item handed to human review.
type Escalation struct {
	MediaID                  string               `json:"media_id"`
	MediaType                model.MediaType      `json:"media_type"`
	Verdict                  model.Verdict        `json:"verdict"`
	Recommendation           model.Recommendation `json:"recommendation"`
	OverallAuthenticityScore float64              `json:"overall_authenticity_score"`
	VerdictConfidence        float64              `json:"verdict_confidence"`
	ProvidersAnalyzed        int                  `json:"providers_analyzed"`
	ProvidersAgreed          int                  `json:"providers_agreed"`
	Timestamp                time.Time            `json:"timestamp"`
}

// NewEscalation projects a consensus record onto the review payload.
func NewEscalation(ref model.MediaRef, rec model.ConsensusRecord) Escalation {
	return Escalation{
		MediaID:                  ref.MediaID,
		MediaType:                ref.MediaType,
		Verdict:                  rec.Verdict,
		Recommendation:           rec.Recommendation,
		OverallAuthenticityScore: rec.OverallAuthenticityScore,
		VerdictConfidence:        rec.VerdictConfidence,
		ProvidersAnalyzed:        rec.ProvidersAnalyzed,
		ProvidersAgreed:          rec.ProvidersAgreed,
		Timestamp:                rec.AnalyzedAt,
	}
}

// Notifier fans an escalation out to the configured sinks.
type Notifier struct {
	cfg    config.ReviewConfig
	board  notion.Client // nil when no Notion token is configured
	client *http.Client
}

// NewNotifier creates a Notifier. board may be nil, in which case only the
// webhook sink is active.
func NewNotifier(cfg config.ReviewConfig, board notion.Client) *Notifier {
	return &Notifier{
		cfg:    cfg,
		board:  board,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Escalate delivers esc to every configured sink. Sink failures are logged,
// never returned: losing a notification must not fail the analysis that
// produced it.
func (n *Notifier) Escalate(ctx context.Context, esc Escalation) {
	if !n.shouldNotify(esc.Recommendation) {
		return
	}

	g, gctx := errgroup.WithContext(ctx)

	if n.cfg.WebhookURL != "" {
		g.Go(func() error {
			if err := n.sendWebhook(gctx, esc); err != nil {
				zap.L().Warn("review: ops webhook failed",
					zap.String("media_id", esc.MediaID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	if n.board != nil && n.cfg.NotionDatabaseID != "" {
		g.Go(func() error {
			if err := n.upsertBoardPage(gctx, esc); err != nil {
				zap.L().Warn("review: board update failed",
					zap.String("media_id", esc.MediaID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
}

// shouldNotify reports whether rec clears the configured severity floor.
// "reject" narrows escalation to rejected media; anything else escalates
// both flags and rejects.
func (n *Notifier) shouldNotify(rec model.Recommendation) bool {
	switch rec {
	case model.RecommendationReject:
		return true
	case model.RecommendationFlag:
		return n.cfg.MinSeverity != "reject"
	default:
		return false
	}
}

func (n *Notifier) sendWebhook(ctx context.Context, esc Escalation) error {
	payload, err := json.Marshal(esc)
	if err != nil {
		return eris.Wrap(err, "review: marshal escalation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "review: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "review: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("review: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// upsertBoardPage keeps one board entry per media item: re-analysis of an
// already-flagged item refreshes its page instead of opening a duplicate.
func (n *Notifier) upsertBoardPage(ctx context.Context, esc Escalation) error {
	page, err := notion.FindReviewPage(ctx, n.board, n.cfg.NotionDatabaseID, esc.MediaID)
	if err != nil {
		return err
	}

	props := boardProperties(esc)
	if page != nil {
		_, err = n.board.UpdatePage(ctx, page.ID.String(), &notionapi.PageUpdateRequest{
			Properties: props,
		})
		return eris.Wrapf(err, "review: refresh board page for %s", esc.MediaID)
	}

	props["Name"] = notionapi.TitleProperty{
		Title: []notionapi.RichText{
			{Text: &notionapi.Text{Content: esc.MediaID}},
		},
	}
	_, err = n.board.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(n.cfg.NotionDatabaseID),
		},
		Properties: props,
	})
	return eris.Wrapf(err, "review: open board page for %s", esc.MediaID)
}

func boardProperties(esc Escalation) notionapi.Properties {
	flaggedAt := notionapi.Date(esc.Timestamp)
	return notionapi.Properties{
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: notion.StatusOpen},
		},
		"Media ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: esc.MediaID}},
			},
		},
		"Media Type": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(esc.MediaType)},
		},
		"Verdict": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(esc.Verdict)},
		},
		"Recommendation": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(esc.Recommendation)},
		},
		"Authenticity Score": notionapi.NumberProperty{
			Number: esc.OverallAuthenticityScore,
		},
		"Confidence": notionapi.NumberProperty{
			Number: esc.VerdictConfidence,
		},
		"Flagged At": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &flaggedAt},
		},
	}
}
