package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorMatchesSentinelByCode(t *testing.T) {
	err := fmt.Errorf("load: %w", NewInvalidTransition("cannot close an open complaint", nil))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrTerminalState))
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	cancelled := ToDomainError(fmt.Errorf("wait: %w", context.DeadlineExceeded))
	assert.Equal(t, CodeCancelled, cancelled.Code)
	assert.Equal(t, http.StatusRequestTimeout, cancelled.HTTPStatus)

	internal := ToDomainError(errors.New("disk on fire"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)

	missing := NewNotFound("entity", map[string]any{"id": "x"})
	assert.Same(t, missing, ToDomainError(missing))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(context.Canceled))
	assert.True(t, IsCancelled(NewCancelled(context.Canceled)))
	assert.False(t, IsCancelled(NewEmptyActor()))
}
