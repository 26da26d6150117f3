package flowgate

import (
	"context"
	"time"
)

// Tier is an account's subscription level as reported by the billing
// collaborator.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Milestone is a one-time achievement unlocked by crossing a total-usage
// threshold.
type Milestone struct {
	Threshold int    `json:"threshold"`
	Name      string `json:"name"`
}

// AuthProvider resolves the current identity. Resolution happens once per
// workflow view; the result is immutable for the duration of a run.
type AuthProvider interface {
	ResolveIdentity(ctx context.Context) Identity
}

// SubscriptionProvider reports the subscription tier for a registered
// identity.
type SubscriptionProvider interface {
	GetTier(ctx context.Context, identityID string) (Tier, error)
}

// UsageStore records and counts workflow completions for registered
// identities. Counting is scoped to the current calendar month.
type UsageStore interface {
	CountThisMonth(ctx context.Context, identityID string) (int, error)
	RecordUsage(ctx context.Context, identityID, workflowID string, safeValues map[string]string, at time.Time) error
}

// StatsStore tracks lifetime completion totals and milestone state for
// registered identities.
type StatsStore interface {
	IncrementTotal(ctx context.Context, identityID string) error

	// RecomputeMilestones re-derives milestone state from the stored total
	// and returns any milestones newly crossed since the last computation.
	RecomputeMilestones(ctx context.Context, identityID string) ([]Milestone, error)
}

// WorkflowCatalog resolves workflow definitions by slug.
type WorkflowCatalog interface {
	GetBySlug(slug string) (*Workflow, error)
}
