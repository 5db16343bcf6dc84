package model

import (
	"encoding/json"
	"time"
)

// Verdict is a provider's (or the consensus) classification of a media item.
type Verdict string

const (
	VerdictAuthentic       Verdict = "authentic"
	VerdictLikelyAuthentic Verdict = "likely_authentic"
	VerdictUncertain       Verdict = "uncertain"
	VerdictLikelySynthetic Verdict = "likely_synthetic"
	VerdictSynthetic       Verdict = "synthetic"
	VerdictDeepfake        Verdict = "deepfake"
	VerdictFaceSwap        Verdict = "face_swap"
	VerdictVoiceClone      Verdict = "voice_clone"
)

// VerdictOrder lists every verdict in canonical enumeration order. The
// consensus majority tie-break walks this slice front to back; downstream
// consumers depend on the existing tie order, so do not reorder it.
var VerdictOrder = []Verdict{
	VerdictAuthentic,
	VerdictLikelyAuthentic,
	VerdictUncertain,
	VerdictLikelySynthetic,
	VerdictSynthetic,
	VerdictDeepfake,
	VerdictFaceSwap,
	VerdictVoiceClone,
}

// ProviderResult is one provider's normalized analysis of one media item.
// Rows are append-only: one per analysis run, never updated.
type ProviderResult struct {
	Provider          string          `json:"provider"`
	AIGeneratedScore  float64         `json:"ai_generated_score"`
	DeepfakeScore     float64         `json:"deepfake_score"`
	FaceSwapScore     float64         `json:"face_swap_score"`
	VoiceCloneScore   float64         `json:"voice_clone_score"`
	ManipulationScore float64         `json:"manipulation_score"`
	Confidence        float64         `json:"confidence"`
	Verdict           Verdict         `json:"verdict"`
	GANDetected       bool            `json:"gan_detected"`
	GANModel          string          `json:"gan_model,omitempty"`
	DiffusionDetected bool            `json:"diffusion_detected"`
	DiffusionModel    string          `json:"diffusion_model,omitempty"`
	RawResponse       json.RawMessage `json:"raw_response,omitempty"`
	RequestDurationMS int64           `json:"request_duration_ms"`
	AnalyzedAt        time.Time       `json:"analyzed_at"`
}

// ClampScore bounds a score to [0,100]. Every numeric score in a
// ProviderResult passes through this at construction.
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
