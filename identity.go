package flowgate

// IdentityKind classifies the actor a quota decision is computed for.
type IdentityKind string

const (
	// IdentityAnonymous is a visitor with no account. Usage is tracked
	// client-side by the counter package.
	IdentityAnonymous IdentityKind = "anonymous"

	// IdentityRegisteredFree is a signed-in account on the free tier.
	IdentityRegisteredFree IdentityKind = "registered_free"

	// IdentityRegisteredPaid is a signed-in account with an active
	// subscription. Paid identities are never gated.
	IdentityRegisteredPaid IdentityKind = "registered_paid"

	// IdentityUnresolved marks a session that previously held a valid
	// identity but can no longer be resolved. Gating fails closed.
	IdentityUnresolved IdentityKind = "unresolved"
)

// Identity is the resolved actor for one workflow view. It is resolved once
// per session by an AuthProvider and treated as immutable for the duration of
// a run.
type Identity struct {
	Kind IdentityKind `json:"kind"`
	ID   string       `json:"id,omitempty"`
}

// Registered reports whether the identity has a server-side account.
func (i Identity) Registered() bool {
	return i.Kind == IdentityRegisteredFree || i.Kind == IdentityRegisteredPaid
}
