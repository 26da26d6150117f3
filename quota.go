package flowgate

import (
	"context"
	"fmt"
)

// ModalKind identifies the gating surface shown around a workflow view.
type ModalKind string

const (
	ModalNone           ModalKind = "none"
	ModalSoftNudge      ModalKind = "soft_nudge"
	ModalHardBlock      ModalKind = "hard_block"
	ModalUpgradePrompt  ModalKind = "upgrade_prompt"
	ModalReauthRequired ModalKind = "reauth_required"
)

// GateDecision is the outcome of evaluating an identity's quota. It is
// recomputed on every quota-relevant state change and never persisted.
type GateDecision struct {
	Allowed   bool
	Modal     ModalKind
	Remaining int
}

// Limits holds the quota thresholds. The anonymous soft limit, anonymous hard
// limit, and registered-free monthly limit are deliberately kept in one place
// so the counter, the evaluator, and any modal copy agree on the numbers.
type Limits struct {
	AnonymousSoft int `yaml:"anonymous_soft" env:"QUOTA_ANONYMOUS_SOFT" env-default:"3"`
	AnonymousHard int `yaml:"anonymous_hard" env:"QUOTA_ANONYMOUS_HARD" env-default:"5"`
	FreeMonthly   int `yaml:"free_monthly" env:"QUOTA_FREE_MONTHLY" env-default:"5"`
}

// DefaultLimits returns the stock thresholds: nudge anonymous users after 3
// runs, block them after 5, and give free accounts 5 runs per month.
func DefaultLimits() Limits {
	return Limits{AnonymousSoft: 3, AnonymousHard: 5, FreeMonthly: 5}
}

// Validate checks that the thresholds are coherent.
func (l Limits) Validate() error {
	if l.AnonymousSoft < 0 || l.AnonymousHard < 0 || l.FreeMonthly < 0 {
		return fmt.Errorf("quota limits must be non-negative")
	}
	if l.AnonymousSoft > l.AnonymousHard {
		return fmt.Errorf("anonymous soft limit %d exceeds hard limit %d", l.AnonymousSoft, l.AnonymousHard)
	}
	return nil
}

// EvaluateQuota computes the gate decision for an identity with the given
// current-period usage count. Pure: same inputs, same decision.
//
// Paid accounts always pass. Free accounts pass until they exhaust their
// monthly allowance, then see an upgrade prompt. Anonymous visitors pass
// silently below the soft limit, pass with a dismissible nudge between the
// soft and hard limits, and are blocked at the hard limit. An unresolved
// identity fails closed to a re-authentication modal regardless of count.
func EvaluateQuota(id Identity, count int, limits Limits) GateDecision {
	switch id.Kind {
	case IdentityRegisteredPaid:
		return GateDecision{Allowed: true, Modal: ModalNone}
	case IdentityRegisteredFree:
		if count < limits.FreeMonthly {
			return GateDecision{Allowed: true, Modal: ModalNone, Remaining: limits.FreeMonthly - count}
		}
		return GateDecision{Allowed: false, Modal: ModalUpgradePrompt}
	case IdentityAnonymous:
		switch {
		case count < limits.AnonymousSoft:
			return GateDecision{Allowed: true, Modal: ModalNone, Remaining: limits.AnonymousHard - count}
		case count < limits.AnonymousHard:
			return GateDecision{Allowed: true, Modal: ModalSoftNudge, Remaining: limits.AnonymousHard - count}
		default:
			return GateDecision{Allowed: false, Modal: ModalHardBlock}
		}
	default:
		// Unresolved or unknown identity kinds fail closed.
		return GateDecision{Allowed: false, Modal: ModalReauthRequired}
	}
}

// UsageReader produces the current-period usage count for an anonymous
// visitor. Satisfied by counter.Counter.
type UsageReader interface {
	Count() int
}

// GateDeps carries the collaborators needed to resolve a gate decision for
// the current session.
type GateDeps struct {
	Auth          AuthProvider
	Subscriptions SubscriptionProvider
	Usage         UsageStore
	Anonymous     UsageReader
}

// ResolveDecision resolves the current identity and evaluates its quota.
//
// For registered identities the tier is confirmed against the subscription
// collaborator; a lookup failure is treated as a quota-state inconsistency
// and fails closed to re-authentication. Anonymous counts come from the
// client-side counter; a missing counter reads as zero.
func ResolveDecision(ctx context.Context, deps GateDeps, limits Limits) (Identity, GateDecision) {
	id := Identity{Kind: IdentityUnresolved}
	if deps.Auth != nil {
		id = deps.Auth.ResolveIdentity(ctx)
	}

	switch id.Kind {
	case IdentityAnonymous:
		count := 0
		if deps.Anonymous != nil {
			count = deps.Anonymous.Count()
		}
		return id, EvaluateQuota(id, count, limits)

	case IdentityRegisteredFree, IdentityRegisteredPaid:
		if deps.Subscriptions != nil {
			tier, err := deps.Subscriptions.GetTier(ctx, id.ID)
			if err != nil {
				return id, GateDecision{Allowed: false, Modal: ModalReauthRequired}
			}
			if tier == TierPaid {
				id.Kind = IdentityRegisteredPaid
			} else {
				id.Kind = IdentityRegisteredFree
			}
		}
		if id.Kind == IdentityRegisteredPaid {
			return id, EvaluateQuota(id, 0, limits)
		}
		count := 0
		if deps.Usage != nil {
			n, err := deps.Usage.CountThisMonth(ctx, id.ID)
			if err != nil {
				return id, GateDecision{Allowed: false, Modal: ModalReauthRequired}
			}
			count = n
		}
		return id, EvaluateQuota(id, count, limits)

	default:
		return id, EvaluateQuota(id, 0, limits)
	}
}
