package domain

import "fmt"

// LayerId orders rule families for reporting. Seven layers, 0..=6.
type LayerId uint8

const (
	LayerIdentity LayerId = iota
	LayerAuthentication
	LayerAuthorization
	LayerResource
	LayerData
	LayerAction
	LayerRisk
)

// String returns a stable string representation of the layer.
func (l LayerId) String() string {
	switch l {
	case LayerIdentity:
		return "identity"
	case LayerAuthentication:
		return "authentication"
	case LayerAuthorization:
		return "authorization"
	case LayerResource:
		return "resource"
	case LayerData:
		return "data"
	case LayerAction:
		return "action"
	case LayerRisk:
		return "risk"
	default:
		return fmt.Sprintf("LayerId(%d)", uint8(l))
	}
}

// RuleFamilyId is one of 14 fixed family tags, each tied to exactly one layer.
type RuleFamilyId uint8

const (
	FamilyIdentityVerify RuleFamilyId = iota
	FamilyIdentityDelegation
	FamilyAuthnCredential
	FamilyAuthnSession
	FamilyAuthzRoleScope
	FamilyAuthzTenantScope
	FamilyResourceAccess
	FamilyResourceQuota
	FamilyDataClassification
	FamilyDataResidency
	FamilyActionMutating
	FamilyActionDestructive
	FamilyRiskAnomaly
	FamilyRiskEscalation
)

// AllFamilies returns every RuleFamilyId in declaration order. The set is
// fixed at compile time.
func AllFamilies() []RuleFamilyId {
	return []RuleFamilyId{
		FamilyIdentityVerify,
		FamilyIdentityDelegation,
		FamilyAuthnCredential,
		FamilyAuthnSession,
		FamilyAuthzRoleScope,
		FamilyAuthzTenantScope,
		FamilyResourceAccess,
		FamilyResourceQuota,
		FamilyDataClassification,
		FamilyDataResidency,
		FamilyActionMutating,
		FamilyActionDestructive,
		FamilyRiskAnomaly,
		FamilyRiskEscalation,
	}
}

// String returns the stable family tag name.
func (f RuleFamilyId) String() string {
	switch f {
	case FamilyIdentityVerify:
		return "identity.verify"
	case FamilyIdentityDelegation:
		return "identity.delegation"
	case FamilyAuthnCredential:
		return "authn.credential"
	case FamilyAuthnSession:
		return "authn.session"
	case FamilyAuthzRoleScope:
		return "authz.role_scope"
	case FamilyAuthzTenantScope:
		return "authz.tenant_scope"
	case FamilyResourceAccess:
		return "resource.access"
	case FamilyResourceQuota:
		return "resource.quota"
	case FamilyDataClassification:
		return "data.classification"
	case FamilyDataResidency:
		return "data.residency"
	case FamilyActionMutating:
		return "action.mutating"
	case FamilyActionDestructive:
		return "action.destructive"
	case FamilyRiskAnomaly:
		return "risk.anomaly"
	case FamilyRiskEscalation:
		return "risk.escalation"
	default:
		return fmt.Sprintf("RuleFamilyId(%d)", uint8(f))
	}
}

// Layer returns the layer this family is reported under.
func (f RuleFamilyId) Layer() LayerId {
	switch f {
	case FamilyIdentityVerify, FamilyIdentityDelegation:
		return LayerIdentity
	case FamilyAuthnCredential, FamilyAuthnSession:
		return LayerAuthentication
	case FamilyAuthzRoleScope, FamilyAuthzTenantScope:
		return LayerAuthorization
	case FamilyResourceAccess, FamilyResourceQuota:
		return LayerResource
	case FamilyDataClassification, FamilyDataResidency:
		return LayerData
	case FamilyActionMutating, FamilyActionDestructive:
		return LayerAction
	case FamilyRiskAnomaly, FamilyRiskEscalation:
		return LayerRisk
	default:
		panic(fmt.Sprintf("domain: family %d has no layer mapping", uint8(f)))
	}
}

// ParseRuleFamilyId converts a stable tag string back into a RuleFamilyId.
func ParseRuleFamilyId(s string) (RuleFamilyId, error) {
	for _, f := range AllFamilies() {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unsupported RuleFamilyId: %q", s)
}
