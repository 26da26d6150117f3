package flowgate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGatePresenter(t *testing.T) {
	t.Run("unopened gate does not block", func(t *testing.T) {
		gate := NewGate(nil)
		require.False(t, gate.Visible())
		require.True(t, gate.CanProceed())
	})

	t.Run("pass-through decision stays hidden", func(t *testing.T) {
		gate := NewGate(nil)
		gate.Open(GateDecision{Allowed: true, Modal: ModalNone, Remaining: 5})
		require.False(t, gate.Visible())
		require.True(t, gate.CanProceed())
	})

	t.Run("soft nudge is dismissible without blocking", func(t *testing.T) {
		gate := NewGate(nil)
		gate.Open(GateDecision{Allowed: true, Modal: ModalSoftNudge, Remaining: 2})
		require.True(t, gate.Visible())
		require.True(t, gate.CanProceed())

		gate.Close()
		require.False(t, gate.Visible())
		require.True(t, gate.CanProceed())
	})

	t.Run("hard block has no dismiss transition", func(t *testing.T) {
		for _, kind := range []ModalKind{ModalHardBlock, ModalUpgradePrompt, ModalReauthRequired} {
			gate := NewGate(nil)
			gate.Open(GateDecision{Allowed: false, Modal: kind})
			require.True(t, gate.Visible())
			require.False(t, gate.CanProceed())

			gate.Close()
			require.True(t, gate.Visible(), "closing a %s modal must be a no-op", kind)
			require.False(t, gate.CanProceed())
		}
	})

	t.Run("reopening replaces the decision", func(t *testing.T) {
		gate := NewGate(nil)
		gate.Open(GateDecision{Allowed: true, Modal: ModalSoftNudge, Remaining: 1})
		gate.Open(GateDecision{Allowed: false, Modal: ModalHardBlock})
		require.Equal(t, ModalHardBlock, gate.Kind())
		require.False(t, gate.CanProceed())
	})
}
