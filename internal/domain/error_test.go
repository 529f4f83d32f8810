package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := E(CodeTimeout, "transport.Execute", "request timed out", nil)
	require.Equal(t, "transport.Execute: EXECUTION_TIMEOUT: request timed out", err.Error())

	err = E(CodeSchema, "", "no query root", nil)
	require.Equal(t, "SCHEMA_ERROR: no query root", err.Error())

	cause := errors.New("dial refused")
	err = E(CodeConnection, "transport.Execute", "", cause)
	require.Contains(t, err.Error(), "dial refused")
	require.ErrorIs(t, err, cause)
}

func TestWrapPreservesExistingError(t *testing.T) {
	inner := E(CodeTimeout, "transport.Execute", "timed out", nil)
	wrapped := Wrap(CodeConnection, "registry.Register", inner)
	require.Equal(t, CodeTimeout, wrapped.Code)
	require.Equal(t, "transport.Execute", wrapped.Op)

	require.Nil(t, Wrap(CodeInternal, "op", nil))

	plain := Wrap(CodeParse, "schema.Fetch", errors.New("bad json"))
	require.Equal(t, CodeParse, plain.Code)
	require.Equal(t, "schema.Fetch", plain.Op)
}

func TestCodeFrom(t *testing.T) {
	code, ok := CodeFrom(E(CodeHTTP, "op", "boom", nil))
	require.True(t, ok)
	require.Equal(t, CodeHTTP, code)

	code, ok = CodeFrom(ErrEndpointNotFound)
	require.True(t, ok)
	require.Equal(t, CodeRegistration, code)

	code, ok = CodeFrom(ErrEmptySchema)
	require.True(t, ok)
	require.Equal(t, CodeSchema, code)

	_, ok = CodeFrom(errors.New("unrelated"))
	require.False(t, ok)

	_, ok = CodeFrom(nil)
	require.False(t, ok)
}
