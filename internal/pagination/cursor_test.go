package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	timestamp := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

	encoded := EncodeCursor(42, timestamp)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(42), decoded.LastID)
	assert.True(t, decoded.Timestamp.Equal(timestamp))
}

func TestEncodeCursor_InvalidID(t *testing.T) {
	assert.Empty(t, EncodeCursor(0, time.Now()))
	assert.Empty(t, EncodeCursor(-1, time.Now()))
}

func TestDecodeCursor(t *testing.T) {
	t.Run("empty cursor decodes to nil", func(t *testing.T) {
		decoded, err := DecodeCursor("")
		require.NoError(t, err)
		assert.Nil(t, decoded)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := DecodeCursor("!!!not-base64!!!")
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("missing separator", func(t *testing.T) {
		raw := base64.StdEncoding.EncodeToString([]byte("42"))
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		raw := base64.StdEncoding.EncodeToString([]byte("abc|2026-01-01T00:00:00Z"))
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("zero id", func(t *testing.T) {
		raw := base64.StdEncoding.EncodeToString([]byte("0|2026-01-01T00:00:00Z"))
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		raw := base64.StdEncoding.EncodeToString([]byte("42|yesterday"))
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}
