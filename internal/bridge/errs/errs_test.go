package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBridgeError_ErrorString(t *testing.T) {
	e := New(KindNotFound, "rule missing")
	assert.Equal(t, "not_found: rule missing", e.Error())

	wrapped := Wrap(KindIO, "read file", fmt.Errorf("disk full"))
	assert.Contains(t, wrapped.Error(), "io: read file")
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestBridgeError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	wrapped := Wrap(KindSerialization, "decode", cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestIs_MatchesKind(t *testing.T) {
	err := New(KindConflict, "duplicate rule_id")
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))
	assert.False(t, Is(errors.New("plain"), KindConflict))
}
