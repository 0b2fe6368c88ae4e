// Package compare implements the deterministic cosine-similarity scoring
// kernel: per-slot max-over-anchors similarity, aggregated into a
// BLOCK/ALLOW decision.
//
// Translated idiom-for-idiom from
// original_source/.../vector_comparison.rs: the same left-to-right
// summation order, the same 1e-8 zero-norm guard, and the same
// [-1, 1] clamp, so that scores compare identically across builds as
// so scores compare identically across builds.
package compare

import (
	"math"

	"github.com/fencio-dev/prism/internal/bridge/domain"
)

// Decision is the binary enforcement outcome.
type Decision uint8

const (
	Block Decision = 0
	Allow Decision = 1
)

// Result carries the decision plus the four slot scores for
// observability.
type Result struct {
	Decision       Decision
	SliceSimilarities [4]float32 // action, resource, data, risk
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors, guarding against zero norms and clamping to [-1, 1].
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float32
	// The explicit float32 conversions round each product, which keeps
	// the compiler from fusing multiply and add on any architecture.
	for i := range a {
		dot += float32(a[i] * b[i])
		normA += float32(a[i] * a[i])
		normB += float32(b[i] * b[i])
	}
	normA = float32(math.Sqrt(float64(normA)))
	normB = float32(math.Sqrt(float64(normB)))

	if normA < 1e-8 || normB < 1e-8 {
		return 0
	}

	sim := dot / (normA * normB)
	if sim > 1.0 {
		return 1.0
	}
	if sim < -1.0 {
		return -1.0
	}
	return sim
}

// maxAnchorSimilarity returns the maximum cosine similarity between the
// intent slice and the first count rows of anchors. count == 0 fails
// closed and returns 0.
func maxAnchorSimilarity(intentSlice []float32, anchors [domain.MaxAnchorsPerSlot][domain.SlotWidth]float32, count int) float32 {
	if count == 0 {
		return 0
	}
	best := float32(math.Inf(-1))
	for i := 0; i < count; i++ {
		sim := cosineSimilarity(intentSlice, anchors[i][:])
		if sim > best {
			best = sim
		}
	}
	return best
}

// CompareIntentVsRule computes per-slot max-of-anchors similarity and
// applies the threshold decision for the given mode.
func CompareIntentVsRule(intent [domain.IntentWidth]float32, rv domain.RuleVector, thresholds [4]float32, mode domain.DecisionMode) Result {
	intentAction := intent[0:32]
	intentResource := intent[32:64]
	intentData := intent[64:96]
	intentRisk := intent[96:128]

	var sims [4]float32
	sims[0] = maxAnchorSimilarity(intentAction, rv.Action.Anchors, rv.Action.Count)
	sims[1] = maxAnchorSimilarity(intentResource, rv.Resource.Anchors, rv.Resource.Count)
	sims[2] = maxAnchorSimilarity(intentData, rv.Data.Anchors, rv.Data.Count)
	sims[3] = maxAnchorSimilarity(intentRisk, rv.Risk.Anchors, rv.Risk.Count)

	// WeightedAvgMode is reserved and currently behaves identically to
	// MinMode; both branches apply the same all-slots-pass
	// rule.
	decision := Block
	switch mode {
	case domain.MinMode, domain.WeightedAvgMode:
		allPass := true
		for i := 0; i < 4; i++ {
			if sims[i] < thresholds[i] {
				allPass = false
				break
			}
		}
		if allPass {
			decision = Allow
		}
	}

	return Result{Decision: decision, SliceSimilarities: sims}
}
