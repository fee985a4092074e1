package api

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorKeepsFirstKind(t *testing.T) {
	inner := Errorf(NormalizationError, "bad rune")
	outer := WrapError(EncodingError, inner)

	assert.True(t, IsKind(outer, NormalizationError))
	assert.False(t, IsKind(outer, EncodingError))
}

func TestErrorfWrapsKind(t *testing.T) {
	err := Errorf(ConfigError, "value %d out of range", 7)
	require.Error(t, err)
	assert.True(t, IsKind(err, ConfigError))
	assert.Contains(t, err.Error(), "value 7 out of range")
}

func TestIsKindSeesThroughWrapping(t *testing.T) {
	err := WrapError(TrainingError, errors.New("corpus empty"))
	wrapped := errors.Wrap(err, "while training")
	assert.True(t, IsKind(wrapped, TrainingError))
	assert.False(t, IsKind(wrapped, SaveError))
}
