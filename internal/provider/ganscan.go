package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/pkg/ganscan"
)

// GanScanAdapter scores media through GanScan's deepfake, GAN, diffusion,
// and frame-manipulation detectors.
type GanScanAdapter struct {
	client     ganscan.Client
	mediaTypes []model.MediaType
	log        *zap.Logger
}

// NewGanScanAdapter creates the GanScan adapter. A nil client marks the
// provider as unconfigured; every call then settles as absent. An empty
// mediaTypes list means all valid media types are accepted.
func NewGanScanAdapter(client ganscan.Client, mediaTypes []model.MediaType) *GanScanAdapter {
	return &GanScanAdapter{
		client:     client,
		mediaTypes: mediaTypes,
		log:        zap.L().With(zap.String("component", "provider.ganscan")),
	}
}

// Name returns the provider identifier.
func (a *GanScanAdapter) Name() string { return "ganscan" }

// Enabled reports whether an API key is configured.
func (a *GanScanAdapter) Enabled() bool { return a.client != nil }

// Supports reports whether the adapter accepts the given media type.
func (a *GanScanAdapter) Supports(mt model.MediaType) bool {
	return supportsMediaType(a.mediaTypes, mt)
}

// Analyze submits the media to GanScan and maps the integer sub-scores onto
// the canonical score vector. Failures settle as absent outcomes.
func (a *GanScanAdapter) Analyze(ctx context.Context, ref model.MediaRef) Outcome {
	if a.client == nil {
		return absent(a.Name(), ReasonNoCredential)
	}
	if !a.Supports(ref.MediaType) {
		return absent(a.Name(), ReasonUnsupportedMedia)
	}

	resp, err := a.client.Scan(ctx, ganscan.ScanRequest{
		TargetURL: ref.LocatorURL,
		Kind:      string(ref.MediaType),
	})
	if err != nil {
		reason := ReasonHTTPError
		var apiErr *ganscan.APIError
		if !errors.As(err, &apiErr) {
			reason = classifyError(err)
		}
		a.log.Warn("ganscan: scan failed",
			zap.String("media_id", ref.MediaID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return absent(a.Name(), reason)
	}

	return Outcome{Provider: a.Name(), Result: a.parse(resp)}
}

// parse maps the GanScan response onto a ProviderResult. The ai_generated
// score is the higher of the GAN and diffusion sub-scores. GanScan's own
// confidence is used when reported; otherwise the strongest signal across
// deepfake, ai_generated, and manipulation stands in for it.
func (a *GanScanAdapter) parse(resp *ganscan.ScanResponse) *model.ProviderResult {
	dfScore := model.ClampScore(float64(resp.DeepfakeScore))
	ganScore := model.ClampScore(float64(resp.GANScore))
	diffScore := model.ClampScore(float64(resp.DiffusionScore))
	manipScore := model.ClampScore(float64(resp.ManipulationScore))
	aiScore := max(ganScore, diffScore)

	confidence := max(dfScore, aiScore, manipScore)
	if resp.Confidence != nil {
		confidence = model.ClampScore(float64(*resp.Confidence))
	}

	return &model.ProviderResult{
		Provider:          a.Name(),
		AIGeneratedScore:  aiScore,
		DeepfakeScore:     dfScore,
		ManipulationScore: manipScore,
		Confidence:        confidence,
		Verdict:           ganScanVerdict(dfScore, aiScore, manipScore),
		GANDetected:       ganScore > 50,
		GANModel:          resp.GANModel,
		DiffusionDetected: diffScore > 50,
		DiffusionModel:    resp.DiffusionModel,
		RawResponse:       resp.Raw,
		AnalyzedAt:        time.Now().UTC(),
	}
}

// ganScanVerdict applies GanScan's threshold ladder: dedicated rungs for
// deepfake and generative signals, then the strongest signal walks the
// shared lower rungs.
func ganScanVerdict(dfScore, aiScore, manipScore float64) model.Verdict {
	top := max(dfScore, aiScore, manipScore)
	switch {
	case dfScore >= 75:
		return model.VerdictDeepfake
	case aiScore >= 75:
		return model.VerdictSynthetic
	case top >= 55:
		return model.VerdictLikelySynthetic
	case top >= 35:
		return model.VerdictUncertain
	case top >= 15:
		return model.VerdictLikelyAuthentic
	default:
		return model.VerdictAuthentic
	}
}
