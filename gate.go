package flowgate

import (
	"log/slog"
	"sync"
)

// Gate presents a GateDecision as one of a fixed set of UI states: hidden,
// a dismissible nudge, or a blocking modal. It owns the open/closed state of
// the modal for one workflow view; construct one per view and discard it on
// unmount.
type Gate struct {
	mutex    sync.Mutex
	decision GateDecision
	visible  bool
	opened   bool
	logger   *slog.Logger
}

// NewGate returns a gate in the hidden state.
func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = discardLogger()
	}
	return &Gate{logger: logger}
}

// Open applies a decision. Decisions with a modal kind become visible;
// pass-through decisions leave the gate hidden.
func (g *Gate) Open(decision GateDecision) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.decision = decision
	g.opened = true
	g.visible = decision.Modal != ModalNone
	if g.visible {
		g.logger.Debug("gate opened", "modal", decision.Modal, "allowed", decision.Allowed)
	}
}

// Close dismisses the modal. Only the soft nudge is dismissible; for every
// blocking kind this is a no-op so the quota cannot be bypassed by closing
// the modal.
func (g *Gate) Close() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !g.visible || g.decision.Modal != ModalSoftNudge {
		return
	}
	g.visible = false
}

// Visible reports whether a modal is currently shown.
func (g *Gate) Visible() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.visible
}

// Kind returns the modal kind of the applied decision.
func (g *Gate) Kind() ModalKind {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.decision.Modal
}

// Decision returns the applied decision.
func (g *Gate) Decision() GateDecision {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.decision
}

// CanProceed reports whether the underlying workflow view may run. A gate
// that has never been opened does not block; a dismissed soft nudge does not
// block; blocking kinds do.
func (g *Gate) CanProceed() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !g.opened {
		return true
	}
	return g.decision.Allowed
}
