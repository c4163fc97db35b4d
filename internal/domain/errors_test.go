package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("attach: %w", NewError(KindSlotAlreadyFilled, "company slot already filled"))

	assert.ErrorIs(t, err, ErrSlotAlreadyFilled)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindSlotAlreadyFilled, KindOf(err))
	assert.Equal(t, "company slot already filled", MessageOf(err))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("model returned garbage")
	err := WrapError(KindUpstreamExtractionFailure, "structuring failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "model returned garbage")
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
	assert.Equal(t, "session not ready", MessageOf(ErrSessionNotReady))
}
