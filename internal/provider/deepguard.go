package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/pkg/deepguard"
)

// DeepGuardAdapter scores media through DeepGuard's face-swap, deepfake,
// and synthetic-media detectors.
type DeepGuardAdapter struct {
	client     deepguard.Client
	mediaTypes []model.MediaType
	log        *zap.Logger
}

// NewDeepGuardAdapter creates the DeepGuard adapter. A nil client marks the
// provider as unconfigured; every call then settles as absent. An empty
// mediaTypes list means all valid media types are accepted.
func NewDeepGuardAdapter(client deepguard.Client, mediaTypes []model.MediaType) *DeepGuardAdapter {
	return &DeepGuardAdapter{
		client:     client,
		mediaTypes: mediaTypes,
		log:        zap.L().With(zap.String("component", "provider.deepguard")),
	}
}

// Name returns the provider identifier.
func (a *DeepGuardAdapter) Name() string { return "deepguard" }

// Enabled reports whether an API key is configured.
func (a *DeepGuardAdapter) Enabled() bool { return a.client != nil }

// Supports reports whether the adapter accepts the given media type.
func (a *DeepGuardAdapter) Supports(mt model.MediaType) bool {
	return supportsMediaType(a.mediaTypes, mt)
}

// Analyze submits the media to DeepGuard and maps the three category
// probabilities onto the canonical score vector. Failures settle as absent
// outcomes.
func (a *DeepGuardAdapter) Analyze(ctx context.Context, ref model.MediaRef) Outcome {
	if a.client == nil {
		return absent(a.Name(), ReasonNoCredential)
	}
	if !a.Supports(ref.MediaType) {
		return absent(a.Name(), ReasonUnsupportedMedia)
	}

	resp, err := a.client.Detect(ctx, deepguard.DetectRequest{
		MediaURL:  ref.LocatorURL,
		MediaType: string(ref.MediaType),
	})
	if err != nil {
		reason := ReasonHTTPError
		var apiErr *deepguard.APIError
		if !errors.As(err, &apiErr) {
			reason = classifyError(err)
		}
		a.log.Warn("deepguard: detect failed",
			zap.String("media_id", ref.MediaID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return absent(a.Name(), reason)
	}

	return Outcome{Provider: a.Name(), Result: a.parse(resp)}
}

// parse maps the DeepGuard response onto a ProviderResult. The synthetic
// media probability feeds the ai_generated score, and the manipulation
// score is the highest of the three categories. When DeepGuard omits its
// own confidence the manipulation score stands in for it.
func (a *DeepGuardAdapter) parse(resp *deepguard.DetectResponse) *model.ProviderResult {
	fsScore := model.ClampScore(resp.Scores.FaceSwap * 100)
	dfScore := model.ClampScore(resp.Scores.Deepfake * 100)
	synScore := model.ClampScore(resp.Scores.SyntheticMedia * 100)
	manipScore := max(fsScore, dfScore, synScore)

	confidence := manipScore
	if resp.Confidence != nil {
		confidence = model.ClampScore(*resp.Confidence * 100)
	}

	return &model.ProviderResult{
		Provider:          a.Name(),
		AIGeneratedScore:  synScore,
		DeepfakeScore:     dfScore,
		FaceSwapScore:     fsScore,
		ManipulationScore: manipScore,
		Confidence:        confidence,
		Verdict:           deepGuardVerdict(fsScore, dfScore, synScore),
		RawResponse:       resp.Raw,
		AnalyzedAt:        time.Now().UTC(),
	}
}

// deepGuardVerdict applies DeepGuard's threshold ladder: each category has
// a dedicated high-confidence rung, then the highest score walks the shared
// lower rungs.
func deepGuardVerdict(fsScore, dfScore, synScore float64) model.Verdict {
	top := max(fsScore, dfScore, synScore)
	switch {
	case fsScore >= 70:
		return model.VerdictFaceSwap
	case dfScore >= 70:
		return model.VerdictDeepfake
	case synScore >= 70:
		return model.VerdictSynthetic
	case top >= 50:
		return model.VerdictLikelySynthetic
	case top >= 30:
		return model.VerdictUncertain
	case top >= 15:
		return model.VerdictLikelyAuthentic
	default:
		return model.VerdictAuthentic
	}
}
