package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestCodeOfWrappedError(t *testing.T) {
	base := NotFound("distribution", "d-1")
	wrapped := fmt.Errorf("loading: %w", base)

	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeNotFound))
	assert.Equal(t, ErrCodeInternal, CodeOf(fmt.Errorf("plain")))
	assert.False(t, HasCode(nil, ErrCodeInternal))
}

func TestTransportMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantHTTP   int
		wantGRPC   codes.Code
		wantString string
	}{
		{NotFound("distribution", "x"), http.StatusNotFound, codes.NotFound, `distribution "x" not found`},
		{Conflict("not pending"), http.StatusConflict, codes.FailedPrecondition, "not pending"},
		{InvalidInput("comment", "required"), http.StatusBadRequest, codes.InvalidArgument, "comment: required"},
		{New(ErrCodeUnavailable, "down"), http.StatusServiceUnavailable, codes.Unavailable, "down"},
		{Wrap(fmt.Errorf("boom"), ErrCodeInternal, "save"), http.StatusInternalServerError, codes.Internal, "save: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.wantString, func(t *testing.T) {
			assert.Equal(t, tt.wantHTTP, HTTPStatus(tt.err))
			assert.Equal(t, tt.wantGRPC, GRPCCode(tt.err))
			assert.Equal(t, tt.wantString, tt.err.Error())
		})
	}
}
