package domain

import (
	"fmt"
	"strings"
)

// DecisionMode selects how per-slot scores are combined into a decision.
type DecisionMode uint8

const (
	// MinMode requires every slot's score to meet its threshold.
	MinMode DecisionMode = 0
	// WeightedAvgMode is reserved; current semantics equal MinMode.
	WeightedAvgMode DecisionMode = 1
)

// DecisionModeFromByte maps an arbitrary byte to a DecisionMode: 0 is
// MinMode, any other value is WeightedAvgMode. This matches the wire
// contract in which unrecognized mode bytes must still be accepted.
func DecisionModeFromByte(b uint8) DecisionMode {
	if b == 0 {
		return MinMode
	}
	return WeightedAvgMode
}

// RuleDescriptor is the external-facing record of a rule. Rules are
// immutable once inserted; "update" is remove-then-insert.
type RuleDescriptor struct {
	RuleId   string
	FamilyId RuleFamilyId
	// AgentId is the secondary-index key. An empty string means the rule
	// is global (unscoped).
	AgentId      string
	Priority     int
	Thresholds   [4]float32
	DecisionMode DecisionMode
}

// IsGlobal reports whether this rule has no agent scope.
func (d RuleDescriptor) IsGlobal() bool {
	return d.AgentId == ""
}

// Validate checks field-level invariants independent of table membership.
func (d RuleDescriptor) Validate() error {
	if strings.TrimSpace(d.RuleId) == "" {
		return fmt.Errorf("rule_id must not be empty")
	}
	return nil
}
