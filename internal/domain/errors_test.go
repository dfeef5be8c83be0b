package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"format", ErrFormat, ErrCodeFormat},
		{"not found", ErrNotFound, ErrCodeNotFound},
		{"config not found", ErrConfigNotFound, ErrCodeNotFound},
		{"io", ErrIO, ErrCodeIO},
		{"is directory", ErrIsDirectory, ErrCodeIO},
		{"precondition", ErrPrecondition, ErrCodePrecondition},
		{"watch registration", ErrWatchRegistration, ErrCodeWatchRegistration},
		{"invalid config", ErrInvalidConfig, ErrCodeInvalidConfig},
		{"wrapped precondition", fmt.Errorf("%w: already watching", ErrPrecondition), ErrCodePrecondition},
		{"unknown error", errors.New("some error"), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
