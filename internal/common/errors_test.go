package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("recordId is blank: %w", ErrValidation), KindValidation},
		{"network", fmt.Errorf("dial: %w", ErrNetwork), KindNetwork},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"auth", fmt.Errorf("rpc: %w", ErrAuthentication), KindAuthentication},
		{"permission", ErrPermission, KindPermission},
		{"not found", ErrNotFound, KindNotFound},
		{"database", fmt.Errorf("failed to upsert record: %w", ErrDatabase), KindDatabase},
		{"unknown", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(ErrNetwork))
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", ErrAuthentication)))
	assert.True(t, IsRetryable(errors.New("something odd")))
	assert.False(t, IsRetryable(fmt.Errorf("x: %w", ErrPermission)))
	assert.False(t, IsRetryable(ErrValidation))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestOperationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, OperationID(ctx))

	ctx = WithOperationID(ctx, "op-1")
	assert.Equal(t, "op-1", OperationID(ctx))
}
