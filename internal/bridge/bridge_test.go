package bridge

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fencio-dev/prism/internal/bridge/common/clock"
	"github.com/fencio-dev/prism/internal/bridge/config"
	"github.com/fencio-dev/prism/internal/bridge/domain"
)

func newTestBridge(t *testing.T) (*Bridge, *clock.MockClock) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.StorageConfig{
		WarmStoragePath: filepath.Join(dir, "warm.bin"),
		ColdStoragePath: filepath.Join(dir, "cold.db"),
	}
	clk := &clock.MockClock{CurrentTime: time.Unix(0, 0)}
	b, err := New(cfg, 100, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, clk
}

func sampleAnchors(fill float32) domain.RuleVector {
	var v domain.RuleVector
	v.Action.Count = 1
	v.Action.Anchors[0][0] = fill
	v.Resource.Count = 1
	v.Data.Count = 1
	v.Risk.Count = 1
	return v
}

func TestBridge_TableCountIsFourteen(t *testing.T) {
	b, _ := newTestBridge(t)
	assert.Equal(t, 14, b.TableCount())
}

func TestBridge_AddRule_BumpsVersionOnSuccess(t *testing.T) {
	b, _ := newTestBridge(t)
	assert.Equal(t, uint64(0), b.Version())

	err := b.AddRule(domain.RuleDescriptor{RuleId: "r1", FamilyId: domain.FamilyIdentityVerify})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Version())
}

// Scenario 6: adding two rules with the same rule_id in the same family
// fails the second call with a conflict, and version increments by
// exactly 1 overall (from the first, successful call).
func TestBridge_AddRule_DuplicateRuleIdConflict(t *testing.T) {
	b, _ := newTestBridge(t)
	desc := domain.RuleDescriptor{RuleId: "dup", FamilyId: domain.FamilyIdentityVerify}

	require.NoError(t, b.AddRule(desc))
	err := b.AddRule(desc)
	assert.Error(t, err)
	assert.Equal(t, uint64(1), b.Version())
}

func TestBridge_AddRuleWithAnchors_InstallsIntoHotAndWarm(t *testing.T) {
	b, _ := newTestBridge(t)
	desc := domain.RuleDescriptor{RuleId: "r1", FamilyId: domain.FamilyIdentityVerify}
	anchors := sampleAnchors(1.0)

	require.NoError(t, b.AddRuleWithAnchors(desc, anchors))
	assert.Equal(t, uint64(1), b.Version())

	got, ok, err := b.GetRuleAnchors("r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, anchors, got)

	warmAnchors, err := b.warm.LoadAnchors()
	require.NoError(t, err)
	assert.Contains(t, warmAnchors, "r1")
}

func TestBridge_GetRuleAnchors_UnknownRuleMissesAllTiers(t *testing.T) {
	b, _ := newTestBridge(t)
	_, ok, err := b.GetRuleAnchors("never-installed")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Cold storage is populated by an operator tool writing directly into the
// bbolt file outside this Bridge instance's lifetime, so this only seeds
// b.cold directly -- never the Bloom filter or hot/warm tiers -- to
// exercise the real, documented population path: a rule_id the Bridge has
// never seen installed, discoverable only by falling through to an
// actual cold.Get.
func TestBridge_GetRuleAnchors_PromotesFromColdToHot(t *testing.T) {
	b, _ := newTestBridge(t)
	v := sampleAnchors(3.0)

	require.NoError(t, b.cold.Put("cold-rule", v))

	assert.False(t, b.hot.Contains("cold-rule"))

	got, ok, err := b.GetRuleAnchors("cold-rule")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, got)
	assert.True(t, b.hot.Contains("cold-rule"))

	// The Bloom filter is updated on cold discovery so the next lookup
	// takes the hot path instead of re-touching cold storage.
	b.bloomMu.RLock()
	maybePresent := b.bloomF.Test([]byte("cold-rule"))
	b.bloomMu.RUnlock()
	assert.True(t, maybePresent)
}

func TestBridge_RemoveRule_LeavesWarmColdUntouched(t *testing.T) {
	b, _ := newTestBridge(t)
	desc := domain.RuleDescriptor{RuleId: "r1", FamilyId: domain.FamilyIdentityVerify}
	anchors := sampleAnchors(1.0)
	require.NoError(t, b.AddRuleWithAnchors(desc, anchors))

	removed := b.RemoveRule(domain.FamilyIdentityVerify, "r1")
	assert.True(t, removed)

	_, found := b.GetTable(domain.FamilyIdentityVerify).FindRule("r1")
	assert.False(t, found)

	// Anchors remain reachable through the tiered store by design.
	got, ok, err := b.GetRuleAnchors("r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, anchors, got)
}

func TestBridge_ClearTableAndClearAll(t *testing.T) {
	b, _ := newTestBridge(t)
	require.NoError(t, b.AddRule(domain.RuleDescriptor{RuleId: "r1", FamilyId: domain.FamilyIdentityVerify}))
	require.NoError(t, b.AddRule(domain.RuleDescriptor{RuleId: "r2", FamilyId: domain.FamilyAuthnSession}))

	b.ClearTable(domain.FamilyIdentityVerify)
	assert.Equal(t, 0, b.GetTable(domain.FamilyIdentityVerify).Metadata().RuleCount)
	assert.Equal(t, 1, b.GetTable(domain.FamilyAuthnSession).Metadata().RuleCount)

	b.ClearAll()
	assert.Equal(t, 0, b.Stats().TotalRules)
}

func TestBridge_VersioningAPI(t *testing.T) {
	b, _ := newTestBridge(t)

	_, set := b.StagedVersion()
	assert.False(t, set)

	err := b.PromoteStaged()
	assert.Error(t, err)

	b.SetStagedVersion(42)
	v, set := b.StagedVersion()
	assert.True(t, set)
	assert.Equal(t, uint64(42), v)

	require.NoError(t, b.PromoteStaged())
	assert.Equal(t, uint64(42), b.Version())
	_, set = b.StagedVersion()
	assert.False(t, set)

	b.SetStagedVersion(100)
	b.ClearStagedVersion()
	_, set = b.StagedVersion()
	assert.False(t, set)
}

func TestBridge_Stats_AggregatesAcrossTables(t *testing.T) {
	b, _ := newTestBridge(t)
	require.NoError(t, b.AddRule(domain.RuleDescriptor{RuleId: "g1", FamilyId: domain.FamilyIdentityVerify}))
	require.NoError(t, b.AddRule(domain.RuleDescriptor{RuleId: "s1", FamilyId: domain.FamilyIdentityVerify, AgentId: "agent-1"}))

	stats := b.Stats()
	assert.Equal(t, 14, stats.TotalTables)
	assert.Equal(t, 2, stats.TotalRules)
	assert.Equal(t, 1, stats.TotalGlobalRules)
	assert.Equal(t, 1, stats.TotalScopedRules)
}

func TestBridge_TableStats_CoversAllFamilies(t *testing.T) {
	b, _ := newTestBridge(t)
	stats := b.TableStats()
	assert.Len(t, stats, 14)
	assert.Equal(t, domain.FamilyIdentityVerify, stats[0].FamilyId)
}

func TestBridge_StorageStats_ReflectsTierCounts(t *testing.T) {
	b, _ := newTestBridge(t)
	desc := domain.RuleDescriptor{RuleId: "r1", FamilyId: domain.FamilyIdentityVerify}
	require.NoError(t, b.AddRuleWithAnchors(desc, sampleAnchors(1.0)))
	_, _, err := b.GetRuleAnchors("r1")
	require.NoError(t, err)

	stats := b.StorageStats()
	assert.Equal(t, 1, stats.HotRules)
	assert.Equal(t, 1, stats.WarmRules)
	assert.GreaterOrEqual(t, stats.HotHits, uint64(1))
}

// Reopening storage at the same path after Close must recover previously
// installed anchors without any intervening install (scenario 4).
func TestBridge_ReopenRecoversAnchorsWithoutReinstall(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{
		WarmStoragePath: filepath.Join(dir, "warm.bin"),
		ColdStoragePath: filepath.Join(dir, "cold.db"),
	}
	clk := &clock.MockClock{CurrentTime: time.Unix(0, 0)}

	b1, err := New(cfg, 100, clk)
	require.NoError(t, err)
	anchors := sampleAnchors(9.0)
	require.NoError(t, b1.AddRuleWithAnchors(domain.RuleDescriptor{RuleId: "r1", FamilyId: domain.FamilyIdentityVerify}, anchors))
	require.NoError(t, b1.Close())

	b2, err := New(cfg, 100, clk)
	require.NoError(t, err)
	defer b2.Close()

	got, ok, err := b2.GetRuleAnchors("r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, anchors, got)
}
