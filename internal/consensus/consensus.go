// Package consensus folds per-provider results into a single authenticity
// verdict with a moderation recommendation.
package consensus

import (
	"time"

	"github.com/veriscope/authenticity-engine/internal/model"
)

// Aggregate combines the contributing provider results into one
// ConsensusRecord. It is a pure function of the result set: permuting the
// input does not change the output, and an empty set yields a defined
// default record rather than an error. No provider result means no signal,
// so the default sits exactly on the fence and escalates to human review.
func Aggregate(results []model.ProviderResult, now time.Time) model.ConsensusRecord {
	if len(results) == 0 {
		return model.ConsensusRecord{
			OverallAuthenticityScore: 50,
			AIGeneratedProbability:   0.5,
			DeepfakeProbability:      0.5,
			ManipulationProbability:  0.5,
			Verdict:                  model.VerdictUncertain,
			VerdictConfidence:        0,
			ProvidersAnalyzed:        0,
			ProvidersAgreed:          0,
			Recommendation:           model.RecommendationFlag,
			RequiresHumanReview:      true,
			AnalyzedAt:               now,
		}
	}

	var sumAI, sumDF, sumManip, sumConf float64
	counts := make(map[model.Verdict]int, len(results))
	for _, r := range results {
		sumAI += r.AIGeneratedScore
		sumDF += r.DeepfakeScore
		sumManip += r.ManipulationScore
		sumConf += r.Confidence
		counts[r.Verdict]++
	}

	n := float64(len(results))
	avgAI := sumAI / n
	avgDF := sumDF / n
	avgManip := sumManip / n

	verdict, agreed := majorityVerdict(counts)
	overall := 100 - max(avgAI, avgDF, avgManip)

	rec := model.ConsensusRecord{
		OverallAuthenticityScore: overall,
		AIGeneratedProbability:   avgAI / 100,
		DeepfakeProbability:      avgDF / 100,
		ManipulationProbability:  avgManip / 100,
		Verdict:                  verdict,
		VerdictConfidence:        sumConf / n,
		ProvidersAnalyzed:        len(results),
		ProvidersAgreed:          agreed,
		AnalyzedAt:               now,
	}
	rec.Recommendation, rec.RequiresHumanReview = recommend(overall, agreed, len(results))
	return rec
}

// majorityVerdict returns the most frequent verdict and the size of its
// agreement group. Ties break to the verdict appearing first in
// model.VerdictOrder; downstream consumers depend on that ordering, so it
// must not change.
func majorityVerdict(counts map[model.Verdict]int) (model.Verdict, int) {
	var best model.Verdict
	bestCount := 0
	for _, v := range model.VerdictOrder {
		if c := counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best, bestCount
}

// recommend applies the moderation policy to the aggregated score and the
// agreement count. Rules are evaluated in order: a low overall score
// rejects, a middling score flags, provider disagreement flags even when
// the score looks clean, and only an unanimous clean result is approved
// without review.
func recommend(overall float64, agreed, analyzed int) (model.Recommendation, bool) {
	switch {
	case overall < 30:
		return model.RecommendationReject, true
	case overall < 60:
		return model.RecommendationFlag, true
	case agreed < analyzed:
		return model.RecommendationFlag, true
	default:
		return model.RecommendationApprove, false
	}
}
