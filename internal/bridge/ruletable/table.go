// Package ruletable implements one per-family indexed store of rule
// descriptors: a primary rule_id→descriptor map, a secondary agent_id→set
// of rule_id index, a set of global (unscoped) rule_ids, and a per-table
// version counter.
package ruletable

import (
	"sort"
	"sync"

	"github.com/fencio-dev/prism/internal/bridge/domain"
	"github.com/fencio-dev/prism/internal/bridge/errs"
)

// Metadata summarizes a table's current size and version.
type Metadata struct {
	RuleCount   int
	GlobalCount int
	ScopedCount int
	Version     uint64
}

// Table is an indexed, versioned store of RuleDescriptors for one family.
type Table struct {
	mu       sync.RWMutex
	family   domain.RuleFamilyId
	layer    domain.LayerId
	byRule   map[string]domain.RuleDescriptor
	byAgent  map[string]map[string]struct{} // agent_id -> set of rule_id
	globals  map[string]struct{}            // set of rule_id
	insOrder map[string]int                 // rule_id -> insertion sequence, for stable query ordering
	seq      int
	version  uint64
}

// New creates an empty table for the given family.
func New(family domain.RuleFamilyId) *Table {
	return &Table{
		family:   family,
		layer:    family.Layer(),
		byRule:   make(map[string]domain.RuleDescriptor),
		byAgent:  make(map[string]map[string]struct{}),
		globals:  make(map[string]struct{}),
		insOrder: make(map[string]int),
	}
}

// Family returns the family this table is dedicated to.
func (t *Table) Family() domain.RuleFamilyId {
	return t.family
}

// Layer returns the layer this table's family belongs to.
func (t *Table) Layer() domain.LayerId {
	return t.layer
}

// AddRule inserts desc. Fails if desc.FamilyId doesn't match the table's
// family, or if rule_id already exists.
func (t *Table) AddRule(desc domain.RuleDescriptor) error {
	if err := desc.Validate(); err != nil {
		return errs.Wrap(errs.KindConflict, "invalid rule descriptor", err)
	}
	if desc.FamilyId != t.family {
		return errs.New(errs.KindConflict, "rule family_id does not match table family")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byRule[desc.RuleId]; exists {
		return errs.New(errs.KindConflict, "rule_id already exists: "+desc.RuleId)
	}

	t.byRule[desc.RuleId] = desc
	t.insOrder[desc.RuleId] = t.seq
	t.seq++
	if desc.IsGlobal() {
		t.globals[desc.RuleId] = struct{}{}
	} else {
		set, ok := t.byAgent[desc.AgentId]
		if !ok {
			set = make(map[string]struct{})
			t.byAgent[desc.AgentId] = set
		}
		set[desc.RuleId] = struct{}{}
	}
	t.version++
	return nil
}

// AddRulesBatch adds each descriptor in order. It stops at the first error
// and returns it; descriptors added before the failure remain in the
// table (partial success is allowed — callers may retry the remainder).
func (t *Table) AddRulesBatch(list []domain.RuleDescriptor) error {
	for _, desc := range list {
		if err := t.AddRule(desc); err != nil {
			return err
		}
	}
	return nil
}

// RemoveRule removes rule_id if present. Returns true if removed, false if
// absent. Indexes and version are only updated on actual removal.
func (t *Table) RemoveRule(ruleId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	desc, exists := t.byRule[ruleId]
	if !exists {
		return false
	}

	delete(t.byRule, ruleId)
	delete(t.insOrder, ruleId)
	if desc.IsGlobal() {
		delete(t.globals, ruleId)
	} else if set, ok := t.byAgent[desc.AgentId]; ok {
		delete(set, ruleId)
		if len(set) == 0 {
			delete(t.byAgent, desc.AgentId)
		}
	}
	t.version++
	return true
}

// Clear empties all indexes and bumps the version.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byRule = make(map[string]domain.RuleDescriptor)
	t.byAgent = make(map[string]map[string]struct{})
	t.globals = make(map[string]struct{})
	t.insOrder = make(map[string]int)
	t.seq = 0
	t.version++
}

// FindRule looks up a rule_id in O(1).
func (t *Table) FindRule(ruleId string) (domain.RuleDescriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	desc, ok := t.byRule[ruleId]
	return desc, ok
}

// QueryBySecondary returns all rules scoped to agentId, in insertion order
// (ties broken by rule_id).
func (t *Table) QueryBySecondary(agentId string) []domain.RuleDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set, ok := t.byAgent[agentId]
	if !ok {
		return nil
	}
	return t.orderedFromSet(set)
}

// QueryGlobals returns all global rules in insertion order (ties broken by
// rule_id).
func (t *Table) QueryGlobals() []domain.RuleDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.orderedFromSet(t.globals)
}

// orderedFromSet must be called with the read lock held.
func (t *Table) orderedFromSet(set map[string]struct{}) []domain.RuleDescriptor {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		oi, oj := t.insOrder[ids[i]], t.insOrder[ids[j]]
		if oi != oj {
			return oi < oj
		}
		return ids[i] < ids[j]
	})
	out := make([]domain.RuleDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.byRule[id])
	}
	return out
}

// Metadata exposes the table's current size and version.
func (t *Table) Metadata() Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Metadata{
		RuleCount:   len(t.byRule),
		GlobalCount: len(t.globals),
		ScopedCount: len(t.byRule) - len(t.globals),
		Version:     t.version,
	}
}
