package model

import "time"

// Recommendation is the moderation action the consensus suggests.
type Recommendation string

const (
	RecommendationApprove Recommendation = "approve"
	RecommendationFlag    Recommendation = "flag"
	RecommendationReject  Recommendation = "reject"
)

// ConsensusRecord is the aggregated verdict for one media item. Exactly one
// row exists per (media_id, media_type); the latest analysis overwrites it.
type ConsensusRecord struct {
	OverallAuthenticityScore float64        `json:"overall_authenticity_score"`
	AIGeneratedProbability   float64        `json:"ai_generated_probability"`
	DeepfakeProbability      float64        `json:"deepfake_probability"`
	ManipulationProbability  float64        `json:"manipulation_probability"`
	Verdict                  Verdict        `json:"verdict"`
	VerdictConfidence        float64        `json:"verdict_confidence"`
	ProvidersAnalyzed        int            `json:"providers_analyzed"`
	ProvidersAgreed          int            `json:"providers_agreed"`
	Recommendation           Recommendation `json:"recommendation"`
	RequiresHumanReview      bool           `json:"requires_human_review"`
	AnalyzedAt               time.Time      `json:"analyzed_at"`
}

// ModerationDigest is the narrow slice of a consensus handed to the
// moderation-state table. Written by this engine, never read back.
type ModerationDigest struct {
	AIDetectionScore      float64 `json:"ai_detection_score"`
	AIDetectionConfidence float64 `json:"ai_detection_confidence"`
	DeepfakeDetected      bool    `json:"deepfake_detected"`
	ManipulationDetected  bool    `json:"manipulation_detected"`
}

// Digest projects the consensus onto the moderation-state fields.
func (c ConsensusRecord) Digest() ModerationDigest {
	return ModerationDigest{
		AIDetectionScore:      c.AIGeneratedProbability * 100,
		AIDetectionConfidence: c.VerdictConfidence,
		DeepfakeDetected:      c.DeepfakeProbability > 0.5,
		ManipulationDetected:  c.ManipulationProbability > 0.5,
	}
}

// ConsensusSummary is a compact listing row for status output and exports.
type ConsensusSummary struct {
	MediaID                  string         `json:"media_id"`
	MediaType                MediaType      `json:"media_type"`
	Verdict                  Verdict        `json:"verdict"`
	Recommendation           Recommendation `json:"recommendation"`
	OverallAuthenticityScore float64        `json:"overall_authenticity_score"`
	RequiresHumanReview      bool           `json:"requires_human_review"`
	AnalyzedAt               time.Time      `json:"analyzed_at"`
}
