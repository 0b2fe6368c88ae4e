package compare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fencio-dev/prism/internal/bridge/domain"
)

func fullSlot(val float32) domain.AnchorSlot {
	var s domain.AnchorSlot
	s.Count = 1
	for j := 0; j < domain.SlotWidth; j++ {
		s.Anchors[0][j] = val
	}
	return s
}

func uniformRuleVector(val float32) domain.RuleVector {
	return domain.RuleVector{
		Action:   fullSlot(val),
		Resource: fullSlot(val),
		Data:     fullSlot(val),
		Risk:     fullSlot(val),
	}
}

func uniformIntent(val float32) [domain.IntentWidth]float32 {
	var intent [domain.IntentWidth]float32
	for i := range intent {
		intent[i] = val
	}
	return intent
}

func TestCosineSimilarity_SameVectorIsOne(t *testing.T) {
	a := make([]float32, domain.SlotWidth)
	for i := range a {
		a[i] = 1.0
	}
	sim := cosineSimilarity(a, a)
	assert.InDelta(t, 1.0, sim, 1e-2)
}

func TestCosineSimilarity_OrthogonalIsZero(t *testing.T) {
	a := make([]float32, domain.SlotWidth)
	b := make([]float32, domain.SlotWidth)
	a[0] = 1.0
	b[1] = 1.0
	sim := cosineSimilarity(a, b)
	assert.InDelta(t, 0.0, sim, 5e-2)
}

func TestCosineSimilarity_ZeroVectorIsZeroNotNaN(t *testing.T) {
	a := make([]float32, domain.SlotWidth)
	b := make([]float32, domain.SlotWidth)
	b[0] = 1.0
	sim := cosineSimilarity(a, b)
	assert.Equal(t, float32(0), sim)
	assert.False(t, math.IsNaN(float64(sim)))
}

func TestCompareIntentVsRule_EmptyRuleVectorFailsClosed(t *testing.T) {
	var rv domain.RuleVector // all counts 0
	intent := uniformIntent(0.9)
	thresholds := [4]float32{0.85, 0.85, 0.85, 0.85}

	result := CompareIntentVsRule(intent, rv, thresholds, domain.MinMode)
	assert.Equal(t, Block, result.Decision)
	for _, s := range result.SliceSimilarities {
		assert.Equal(t, float32(0), s)
	}
}

// Scenario 1 from the testable-properties boundary scenarios: matching
// rule anchors, intent at 0.9 uniformly, thresholds at 0.85 -> ALLOW.
func TestCompareIntentVsRule_Scenario1_Allow(t *testing.T) {
	rv := uniformRuleVector(1.0)
	intent := uniformIntent(0.9)
	thresholds := [4]float32{0.85, 0.85, 0.85, 0.85}

	result := CompareIntentVsRule(intent, rv, thresholds, domain.MinMode)
	assert.Equal(t, Allow, result.Decision)
	for _, s := range result.SliceSimilarities {
		assert.InDelta(t, 1.0, s, 1e-2)
	}
}

// Scenario 2: first slot's intent is inverted relative to the rule
// anchors -> that slot's similarity drops to about -1.0 and the overall
// decision flips to BLOCK even though the other three slots still pass.
func TestCompareIntentVsRule_Scenario2_Block(t *testing.T) {
	rv := uniformRuleVector(1.0)
	var intent [domain.IntentWidth]float32
	for i := 0; i < domain.SlotWidth; i++ {
		intent[i] = -1.0
	}
	for i := domain.SlotWidth; i < domain.IntentWidth; i++ {
		intent[i] = 1.0
	}
	thresholds := [4]float32{0.85, 0.85, 0.85, 0.85}

	result := CompareIntentVsRule(intent, rv, thresholds, domain.MinMode)
	assert.Equal(t, Block, result.Decision)
	assert.InDelta(t, -1.0, result.SliceSimilarities[0], 1e-2)
	for _, s := range result.SliceSimilarities[1:] {
		assert.InDelta(t, 1.0, s, 1e-2)
	}
}

func TestCompareIntentVsRule_WeightedAvgModeMatchesMinMode(t *testing.T) {
	rv := uniformRuleVector(1.0)
	intent := uniformIntent(0.9)
	thresholds := [4]float32{0.85, 0.85, 0.85, 0.85}

	min := CompareIntentVsRule(intent, rv, thresholds, domain.MinMode)
	weighted := CompareIntentVsRule(intent, rv, thresholds, domain.WeightedAvgMode)
	assert.Equal(t, min, weighted)
}

func TestMaxAnchorSimilarity_ZeroCountFailsClosed(t *testing.T) {
	var anchors [domain.MaxAnchorsPerSlot][domain.SlotWidth]float32
	sim := maxAnchorSimilarity(make([]float32, domain.SlotWidth), anchors, 0)
	assert.Equal(t, float32(0), sim)
}
