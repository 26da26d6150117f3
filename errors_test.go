package flowgate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyFailure(t *testing.T) {
	t.Run("passes through gate errors", func(t *testing.T) {
		gateErr := NewGateError(FailureStorage, "quota exceeded")
		classified := ClassifyFailure(fmt.Errorf("write failed: %w", gateErr))
		require.Same(t, gateErr, classified)
	})

	t.Run("missing step is a definition failure", func(t *testing.T) {
		classified := ClassifyFailure(fmt.Errorf("cursor 9: %w", ErrStepNotFound))
		require.Equal(t, FailureDefinition, classified.Kind)
		require.True(t, errors.Is(classified, ErrStepNotFound))
	})

	t.Run("storage wording is a storage failure", func(t *testing.T) {
		classified := ClassifyFailure(errors.New("storage disabled"))
		require.Equal(t, FailureStorage, classified.Kind)
	})

	t.Run("everything else is a collaborator failure", func(t *testing.T) {
		classified := ClassifyFailure(errors.New("connection refused"))
		require.Equal(t, FailureCollaborator, classified.Kind)
	})
}

func TestGateErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &GateError{Kind: FailureCollaborator, Cause: "boom", Wrapped: cause}
	require.True(t, errors.Is(err, cause))
	require.Equal(t, "collaborator: boom", err.Error())
}
