// Package bridge implements the enforcement-rule Bridge: a concurrent,
// tiered in-memory index of policy rules paired with their pre-encoded
// anchor vectors.
//
// Grounded on original_source/.../bridge.rs for the field list and
// responsibilities, and on
// haukened-rr-dns/internal/dns/repos/blocklist/repo.go for the Go
// composition idiom: one struct holding a Store, a Cache, and a Bloom
// filter behind a lock, with a tiered read pipeline. The read pipeline is
// hot -> warm -> cold; the Bloom filter only short-circuits the hot and
// warm legs, since it tracks "has this rule_id had anchors installed
// through this Bridge instance" and cold storage can be populated by an
// operator tool outside that tracking, so cold is always consulted on a
// hot/warm miss regardless of the Bloom bit.
package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/fencio-dev/prism/internal/bridge/coldstore"
	"github.com/fencio-dev/prism/internal/bridge/common/clock"
	"github.com/fencio-dev/prism/internal/bridge/common/log"
	"github.com/fencio-dev/prism/internal/bridge/config"
	"github.com/fencio-dev/prism/internal/bridge/domain"
	"github.com/fencio-dev/prism/internal/bridge/errs"
	"github.com/fencio-dev/prism/internal/bridge/hotcache"
	"github.com/fencio-dev/prism/internal/bridge/metrics"
	"github.com/fencio-dev/prism/internal/bridge/ruletable"
	"github.com/fencio-dev/prism/internal/bridge/warmstore"
)

// StorageTier names which tier satisfied a get_rule_anchors call.
type StorageTier int

const (
	TierNone StorageTier = iota
	TierHot
	TierWarm
	TierCold
)

// bloomEstimatedRules and bloomFalsePositiveRate size the anchor presence
// filter. The filter only ever grows (anchors are never demoted out of
// it, matching the fact that warm/cold anchors are never deleted by
// RemoveRule), so it is sized generously up front rather
// than rebuilt on every update.
const (
	bloomEstimatedRules    = 1_000_000
	bloomFalsePositiveRate = 0.01
)

// Bridge multiplexes the 14 rule family tables behind one concurrent
// façade and owns the tiered anchor store.
type Bridge struct {
	clock clock.Clock

	tables map[domain.RuleFamilyId]*ruletable.Table

	hot  *hotcache.Cache
	warm *warmstore.Store
	cold *coldstore.Store

	bloomMu sync.RWMutex
	bloomF  *bloom.BloomFilter

	activeVersion uint64 // atomic

	stagedMu    sync.Mutex
	staged      uint64
	stagedIsSet bool

	hotHits  uint64 // atomic
	warmHits uint64 // atomic
	coldHits uint64 // atomic

	metricsMu        sync.Mutex
	lastHotEvictions uint64
	lastHotEvicted   uint64
}

// syncHotMetrics pushes the hot cache's cumulative gauges/counters into
// the process metrics registry, publishing only the delta since the last
// call so HotCacheEvictionsTotal/HotCacheEvictedTotal behave as
// monotonic Prometheus counters.
func (b *Bridge) syncHotMetrics() {
	hs := b.hot.Stats()
	metrics.HotCacheEntries.Set(float64(hs.Entries))

	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	if hs.TotalEvictions > b.lastHotEvictions {
		metrics.HotCacheEvictionsTotal.Add(float64(hs.TotalEvictions - b.lastHotEvictions))
		b.lastHotEvictions = hs.TotalEvictions
	}
	if hs.TotalEvicted > b.lastHotEvicted {
		metrics.HotCacheEvictedTotal.Add(float64(hs.TotalEvicted - b.lastHotEvicted))
		b.lastHotEvicted = hs.TotalEvicted
	}
}

// New constructs a Bridge: creates all 14 family tables, opens warm
// storage (loading any existing anchors into the hot cache as a
// warm-up step), and opens cold storage.
func New(cfg config.StorageConfig, hotCapacity int, clk clock.Clock) (*Bridge, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}

	warm, err := warmstore.Open(cfg.WarmStoragePath)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "open warm storage", err)
	}

	cold, err := coldstore.Open(cfg.ColdStoragePath)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "open cold storage", err)
	}

	b := &Bridge{
		clock:  clk,
		tables: make(map[domain.RuleFamilyId]*ruletable.Table, len(domain.AllFamilies())),
		hot:    hotcache.New(hotCapacity, clk),
		warm:   warm,
		cold:   cold,
		bloomF: bloom.NewWithEstimates(bloomEstimatedRules, bloomFalsePositiveRate),
	}
	for _, f := range domain.AllFamilies() {
		b.tables[f] = ruletable.New(f)
	}

	// Startup warm-up: load every anchor already on disk into the hot
	// cache and mark it present in the Bloom filter.
	anchors, err := warm.LoadAnchors()
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "load warm storage at startup", err)
	}
	for ruleId, v := range anchors {
		b.hot.Insert(ruleId, v)
		b.bloomF.Add([]byte(ruleId))
	}
	b.syncHotMetrics()

	log.Info(map[string]any{"rules_loaded": len(anchors)}, "Bridge initialized")
	return b, nil
}

// TableCount returns the fixed number of family tables (always 14).
func (b *Bridge) TableCount() int {
	return len(b.tables)
}

// GetTable returns the table for a family. The 14 families are fixed at
// compile time, so a missing table indicates a broken invariant.
func (b *Bridge) GetTable(family domain.RuleFamilyId) *ruletable.Table {
	t, ok := b.tables[family]
	if !ok {
		panic("bridge: family table missing for " + family.String())
	}
	return t
}

// Version returns the active version.
func (b *Bridge) Version() uint64 {
	return atomic.LoadUint64(&b.activeVersion)
}

func (b *Bridge) bumpVersion() {
	atomic.AddUint64(&b.activeVersion, 1)
	metrics.ActiveVersion.Set(float64(atomic.LoadUint64(&b.activeVersion)))
}

// SetStagedVersion records a candidate version for later promotion.
// Setting staged <= active is allowed but is a sign of caller error.
func (b *Bridge) SetStagedVersion(v uint64) {
	b.stagedMu.Lock()
	defer b.stagedMu.Unlock()
	if v < b.Version() {
		log.Warn(map[string]any{"staged": v, "active": b.Version()}, "staged version is behind active version")
	}
	b.staged = v
	b.stagedIsSet = true
}

// StagedVersion returns the staged version and whether one is set.
func (b *Bridge) StagedVersion() (uint64, bool) {
	b.stagedMu.Lock()
	defer b.stagedMu.Unlock()
	return b.staged, b.stagedIsSet
}

// ClearStagedVersion removes any staged value.
func (b *Bridge) ClearStagedVersion() {
	b.stagedMu.Lock()
	defer b.stagedMu.Unlock()
	b.staged = 0
	b.stagedIsSet = false
}

// PromoteStaged assigns the staged value to active and clears the stage.
// Fails if no stage is set.
func (b *Bridge) PromoteStaged() error {
	b.stagedMu.Lock()
	defer b.stagedMu.Unlock()
	if !b.stagedIsSet {
		return errs.New(errs.KindConfig, "no staged version set")
	}
	atomic.StoreUint64(&b.activeVersion, b.staged)
	metrics.ActiveVersion.Set(float64(b.staged))
	b.staged = 0
	b.stagedIsSet = false
	return nil
}

// AddRule routes desc to its family's table. On success, increments
// active_version.
func (b *Bridge) AddRule(desc domain.RuleDescriptor) error {
	if err := b.tableFor(desc.FamilyId).AddRule(desc); err != nil {
		return err
	}
	b.bumpVersion()
	return nil
}

// AddRuleWithAnchors routes desc into its family table, inserts anchors
// into the hot cache keyed by rule_id, snapshots the entire hot cache to
// warm storage, and increments version. The snapshot-on-every-install
// policy makes warm storage a superset-or-equal of hot at all times, so
// it recovers after crashes without a write-ahead log.
func (b *Bridge) AddRuleWithAnchors(desc domain.RuleDescriptor, anchors domain.RuleVector) error {
	if err := anchors.Validate(); err != nil {
		return errs.Wrap(errs.KindSerialization, "invalid anchor block", err)
	}
	if err := b.tableFor(desc.FamilyId).AddRule(desc); err != nil {
		return err
	}

	b.hot.Insert(desc.RuleId, anchors)
	b.syncHotMetrics()

	b.bloomMu.Lock()
	b.bloomF.Add([]byte(desc.RuleId))
	b.bloomMu.Unlock()

	snapshot := b.hot.Snapshot()
	if err := b.warm.WriteAnchors(snapshot); err != nil {
		// Durability seam: hot cache is already
		// mutated, but the durable file is unchanged. The descriptor is
		// taken back out of its table and version is not bumped, so
		// callers can retry the install.
		b.tableFor(desc.FamilyId).RemoveRule(desc.RuleId)
		return errs.Wrap(errs.KindIO, "persist warm storage snapshot", err)
	}

	b.bumpVersion()
	return nil
}

// GetRuleAnchors looks up anchors hot -> warm -> cold, promoting into hot
// on a warm or cold hit. Returns ok=false only if all three tiers miss.
//
// The Bloom filter only ever observes rule_ids installed through this
// Bridge instance (hot inserts and the warm-storage warm-up at New), so
// it is only trustworthy for the hot and warm tiers. Cold storage is an
// operator-provided activity that can write directly into the underlying
// bbolt file outside this process's lifetime, so a Bloom miss must not
// skip the cold check: cold is always consulted once hot and warm miss.
func (b *Bridge) GetRuleAnchors(ruleId string) (domain.RuleVector, bool, error) {
	b.bloomMu.RLock()
	maybePresent := b.bloomF.Test([]byte(ruleId))
	b.bloomMu.RUnlock()

	if maybePresent {
		if v, ok := b.hot.GetAndMark(ruleId); ok {
			atomic.AddUint64(&b.hotHits, 1)
			metrics.TierHitsTotal.WithLabelValues("hot").Inc()
			return v, true, nil
		}

		if v, ok, err := b.warm.Get(ruleId); err != nil {
			return domain.RuleVector{}, false, err
		} else if ok {
			atomic.AddUint64(&b.warmHits, 1)
			metrics.TierHitsTotal.WithLabelValues("warm").Inc()
			b.hot.Insert(ruleId, v)
			b.syncHotMetrics()
			return v, true, nil
		}
	}

	if v, ok, err := b.cold.Get(ruleId); err != nil {
		return domain.RuleVector{}, false, err
	} else if ok {
		atomic.AddUint64(&b.coldHits, 1)
		metrics.TierHitsTotal.WithLabelValues("cold").Inc()
		b.hot.Insert(ruleId, v)
		b.syncHotMetrics()
		b.bloomMu.Lock()
		b.bloomF.Add([]byte(ruleId))
		b.bloomMu.Unlock()
		return v, true, nil
	}

	return domain.RuleVector{}, false, nil
}

// RemoveRule removes rule_id from its family's table and bumps version
// if it was present. Anchor blocks are not removed from warm/cold by
// design: a deliberate crash-resilience asymmetry, not a
// bug, so hot/warm/cold tiers are left untouched here.
func (b *Bridge) RemoveRule(family domain.RuleFamilyId, ruleId string) bool {
	removed := b.tableFor(family).RemoveRule(ruleId)
	if removed {
		b.bumpVersion()
	}
	return removed
}

// ClearTable empties one family's table and bumps version.
func (b *Bridge) ClearTable(family domain.RuleFamilyId) {
	b.tableFor(family).Clear()
	b.bumpVersion()
}

// ClearAll empties every family table and bumps version once.
func (b *Bridge) ClearAll() {
	for _, t := range b.tables {
		t.Clear()
	}
	b.bumpVersion()
}

// Stats aggregates rule counts across all tables. Never bumps version.
func (b *Bridge) Stats() BridgeStats {
	var out BridgeStats
	out.TotalTables = len(b.tables)
	for _, t := range b.tables {
		md := t.Metadata()
		out.TotalRules += md.RuleCount
		out.TotalGlobalRules += md.GlobalCount
		out.TotalScopedRules += md.ScopedCount
	}
	return out
}

// TableStats reports per-table metadata in family declaration order.
// Never bumps version.
func (b *Bridge) TableStats() []TableStats {
	families := domain.AllFamilies()
	out := make([]TableStats, 0, len(families))
	for _, f := range families {
		t := b.tables[f]
		md := t.Metadata()
		out = append(out, TableStats{
			FamilyId:    f,
			LayerId:     t.Layer(),
			RuleCount:   md.RuleCount,
			GlobalCount: md.GlobalCount,
			ScopedCount: md.ScopedCount,
			Version:     md.Version,
		})
	}
	return out
}

// StorageStats reports tiered anchor store usage. Never bumps version.
func (b *Bridge) StorageStats() StorageStats {
	hs := b.hot.Stats()

	coldCount, err := b.cold.Count()
	if err != nil {
		log.Warn(map[string]any{"error": err}, "failed to read cold storage stats")
	}

	warmAnchors, err := b.warm.LoadAnchors()
	warmCount := 0
	if err != nil {
		log.Warn(map[string]any{"error": err}, "failed to read warm storage stats")
	} else {
		warmCount = len(warmAnchors)
	}

	return StorageStats{
		HotRules:  hs.Entries,
		WarmRules: warmCount,
		ColdRules: coldCount,
		HotHits:   atomic.LoadUint64(&b.hotHits),
		WarmHits:  atomic.LoadUint64(&b.warmHits),
		ColdHits:  atomic.LoadUint64(&b.coldHits),
		Evictions: hs.TotalEvictions,
		Evicted:   hs.TotalEvicted,
		Capacity:  hs.Capacity,
	}
}

// HotCache exposes the hot cache for the refresh subsystem, which must
// clear and repopulate it directly under its own lock.
func (b *Bridge) HotCache() *hotcache.Cache {
	return b.hot
}

// WarmStorage exposes warm storage for the refresh subsystem.
func (b *Bridge) WarmStorage() *warmstore.Store {
	return b.warm
}

// Close releases the warm and cold storage handles.
func (b *Bridge) Close() error {
	if err := b.warm.Close(); err != nil {
		return err
	}
	return b.cold.Close()
}

func (b *Bridge) tableFor(family domain.RuleFamilyId) *ruletable.Table {
	return b.GetTable(family)
}
