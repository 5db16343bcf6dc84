package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/model"
	"github.com/veriscope/authenticity-engine/pkg/truepix"
)

// TruePixAdapter scores media through TruePix's dual-model pipeline: a
// generic AI-generation classifier and a dedicated deepfake classifier.
type TruePixAdapter struct {
	client     truepix.Client
	mediaTypes []model.MediaType
	log        *zap.Logger
}

// NewTruePixAdapter creates the TruePix adapter. A nil client marks the
// provider as unconfigured; every call then settles as absent. An empty
// mediaTypes list means all valid media types are accepted.
func NewTruePixAdapter(client truepix.Client, mediaTypes []model.MediaType) *TruePixAdapter {
	return &TruePixAdapter{
		client:     client,
		mediaTypes: mediaTypes,
		log:        zap.L().With(zap.String("component", "provider.truepix")),
	}
}

// Name returns the provider identifier.
func (a *TruePixAdapter) Name() string { return "truepix" }

// Enabled reports whether an API key is configured.
func (a *TruePixAdapter) Enabled() bool { return a.client != nil }

// Supports reports whether the adapter accepts the given media type.
func (a *TruePixAdapter) Supports(mt model.MediaType) bool {
	return supportsMediaType(a.mediaTypes, mt)
}

// Analyze submits the media to TruePix and maps both model probabilities
// onto the canonical score vector. Failures settle as absent outcomes.
func (a *TruePixAdapter) Analyze(ctx context.Context, ref model.MediaRef) Outcome {
	if a.client == nil {
		return absent(a.Name(), ReasonNoCredential)
	}
	if !a.Supports(ref.MediaType) {
		return absent(a.Name(), ReasonUnsupportedMedia)
	}

	resp, err := a.client.Analyze(ctx, truepix.AnalyzeRequest{
		URL:       ref.LocatorURL,
		MediaType: string(ref.MediaType),
		Models:    []string{"ai_generated", "deepfake"},
	})
	if err != nil {
		reason := ReasonHTTPError
		var apiErr *truepix.APIError
		if !errors.As(err, &apiErr) {
			reason = classifyError(err)
		}
		a.log.Warn("truepix: analyze failed",
			zap.String("media_id", ref.MediaID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return absent(a.Name(), reason)
	}

	return Outcome{Provider: a.Name(), Result: a.parse(resp)}
}

// parse maps the TruePix response onto a ProviderResult. A missing model
// contributes a zero probability rather than failing the whole parse.
func (a *TruePixAdapter) parse(resp *truepix.AnalyzeResponse) *model.ProviderResult {
	var aiProb, dfProb float64
	var aiModel string
	if resp.Results.AIGenerated != nil {
		aiProb = resp.Results.AIGenerated.Probability
		aiModel = resp.Results.AIGenerated.ModelVersion
	}
	if resp.Results.Deepfake != nil {
		dfProb = resp.Results.Deepfake.Probability
	}

	aiScore := model.ClampScore(aiProb * 100)
	dfScore := model.ClampScore(dfProb * 100)

	result := &model.ProviderResult{
		Provider:          a.Name(),
		AIGeneratedScore:  aiScore,
		DeepfakeScore:     dfScore,
		Confidence:        model.ClampScore(max(aiProb, dfProb) * 100),
		Verdict:           truePixVerdict(aiScore, dfScore),
		DiffusionDetected: aiScore > 60,
		RawResponse:       resp.Raw,
		AnalyzedAt:        time.Now().UTC(),
	}
	if result.DiffusionDetected {
		result.DiffusionModel = aiModel
	}
	return result
}

// truePixVerdict applies TruePix's threshold ladder to the clamped scores.
// The ladder is evaluated on the higher of the two model scores.
func truePixVerdict(aiScore, dfScore float64) model.Verdict {
	top := max(aiScore, dfScore)
	switch {
	case top >= 80:
		if dfScore > aiScore {
			return model.VerdictDeepfake
		}
		return model.VerdictSynthetic
	case top >= 60:
		return model.VerdictLikelySynthetic
	case top >= 40:
		return model.VerdictUncertain
	case top >= 20:
		return model.VerdictLikelyAuthentic
	default:
		return model.VerdictAuthentic
	}
}

// supportsMediaType checks mt against an allow-list; an empty list accepts
// every valid media type.
func supportsMediaType(allowed []model.MediaType, mt model.MediaType) bool {
	if !mt.Valid() {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if m == mt {
			return true
		}
	}
	return false
}
