package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithKindRoundTrips(t *testing.T) {
	cause := New("agent hung up")
	tagged := WithKind(cause, TransportFailure)

	kind, ok := GetKind(tagged)
	require.True(t, ok)
	assert.Equal(t, TransportFailure, kind)
	assert.True(t, IsKind(tagged, TransportFailure))
	assert.False(t, IsKind(tagged, StoreError))
	assert.True(t, Is(tagged, cause))
}

func TestWithKindNil(t *testing.T) {
	assert.Nil(t, WithKind(nil, StoreError))
}

func TestGetKindUntaggedError(t *testing.T) {
	_, ok := GetKind(New("plain"))
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		TransportFailure:    "transport_failure",
		ProtocolViolation:   "protocol_violation",
		MissingDeclaration:  "missing_declaration",
		StoreError:          "store_error",
		DriftAmbiguity:      "drift_ambiguity",
		NoSpoolfetchData:    "no_spoolfetch_data",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
