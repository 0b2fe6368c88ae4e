package bridge

import "github.com/fencio-dev/prism/internal/bridge/domain"

// BridgeStats aggregates rule counts across all 14 family tables.
type BridgeStats struct {
	TotalTables      int
	TotalRules       int
	TotalGlobalRules int
	TotalScopedRules int
}

// TableStats reports one family table's size and version, in family
// declaration order. Grounded on original_source/.../main.rs's
// per-table reporting, extended with GlobalCount/ScopedCount/Version.
type TableStats struct {
	FamilyId    domain.RuleFamilyId
	LayerId     domain.LayerId
	RuleCount   int
	GlobalCount int
	ScopedCount int
	Version     uint64
}

// StorageStats reports tiered anchor store usage and cumulative tier hit
// counts. Grounded on original_source/.../storage/types.rs's
// StorageStats.
type StorageStats struct {
	HotRules  int
	WarmRules int
	ColdRules uint64
	HotHits   uint64
	WarmHits  uint64
	ColdHits  uint64
	Evictions uint64
	Evicted   uint64
	Capacity  int
}
