package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeAndParseCode(t *testing.T) {
	tests := []struct {
		service, category, sequence int
		expected                    int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1001},
		{20, 13, 1, 2013001},
		{20, 2, 1, 2002001},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.service, tt.category, tt.sequence), func(t *testing.T) {
			code := MakeCode(tt.service, tt.category, tt.sequence)
			assert.Equal(t, tt.expected, code)

			s, c, q := ParseCode(code)
			assert.Equal(t, tt.service, s)
			assert.Equal(t, tt.category, c)
			assert.Equal(t, tt.sequence, q)
		})
	}
}

func TestErrnoCopiesAreIndependent(t *testing.T) {
	custom := ErrRAGInsufficientCredits.WithMessage("balance 0.05 below 0.10")

	assert.Equal(t, "balance 0.05 below 0.10", custom.MessageEN)
	assert.Equal(t, "Insufficient credits, please upgrade your plan", ErrRAGInsufficientCredits.MessageEN)
	assert.Equal(t, http.StatusPaymentRequired, custom.HTTPStatus())
	assert.True(t, stderrors.Is(custom, ErrRAGInsufficientCredits))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("admit: %w", ErrRAGIdentityRequired)
	assert.Equal(t, ErrRAGIdentityRequired.Code, FromError(wrapped).Code)

	plain := stderrors.New("boom")
	e := FromError(plain)
	require.NotNil(t, e)
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.ErrorIs(t, e, plain)
}

func TestCodeHelpers(t *testing.T) {
	assert.True(t, IsCode(ErrRAGInvalidScope, ErrRAGInvalidScope.Code))
	assert.Equal(t, -1, GetCode(stderrors.New("x")))
	assert.True(t, IsClientError(ErrRAGInsufficientCredits.Code))
	assert.True(t, IsServerError(ErrRAGBillingFailed.Code))
	assert.Equal(t, codes.Unauthenticated, ErrRAGIdentityRequired.GRPCStatus())
	assert.Equal(t, "请登录后使用", ErrRAGIdentityRequired.Message("zh"))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrRAGQueryFailed.Code, 500, codes.Internal, "dup", "重复"))
	})

	e, ok := Lookup(ErrRAGQueryFailed.Code)
	require.True(t, ok)
	assert.Equal(t, "Query failed", e.MessageEN)
}
