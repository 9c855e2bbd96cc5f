package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"tagged transient", NewTransientError(errors.New("server overloaded"), 503), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("rate limited"), 429), "client: call"), true},
		{"network timeout", timeoutErr{}, true},
		{"wrapped net op timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"reset by message", errors.New("read tcp: connection reset by peer"), true},
		{"dns by message", errors.New("dial tcp: lookup api.example.com: no such host"), true},
		{"plain error", errors.New("invalid request payload"), false},
		{"context canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_PreservesChain(t *testing.T) {
	t.Parallel()
	inner := errors.New("bad gateway")
	te := NewTransientError(inner, 502)

	assert.Equal(t, "bad gateway", te.Error())
	assert.Equal(t, 502, te.StatusCode)
	require.ErrorIs(t, te, inner)

	var unwrapped *TransientError
	require.ErrorAs(t, eris.Wrap(te, "outer"), &unwrapped)
	assert.Equal(t, 502, unwrapped.StatusCode)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "%d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "%d", code)
	}
}
