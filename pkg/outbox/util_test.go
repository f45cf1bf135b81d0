package outbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateErrorRespectsByteLimit(t *testing.T) {
	t.Parallel()

	require.Empty(t, truncateError(nil, 10))

	err := errors.New("dispatch refused")
	require.Equal(t, "dispatch refused", truncateError(err, 64))
	require.Equal(t, "dispatch", truncateError(err, 8))
	require.Empty(t, truncateError(err, 0))
}

func TestTruncateStringKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// "é" is two bytes; cutting mid-rune must drop the whole rune.
	require.Equal(t, "caf", truncateString("café", 4))
	require.Equal(t, "café", truncateString("café", 5))
}
