package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImportFile(t *testing.T) {
	t.Run("Should accept the API response shape", func(t *testing.T) {
		// Arrange
		raw := []byte(`{"success":true,"data":{"version":"6.0","memories":[{"title":"a"}]}}`)

		// Act
		cmd, err := parseImportFile(raw)

		// Assert
		require.NoError(t, err)
		assert.JSONEq(t, `[{"title":"a"}]`, string(cmd.Data.Memories))
	})

	t.Run("Should accept a bare export envelope", func(t *testing.T) {
		// Arrange
		raw := []byte(`{"version":"6.0","memories":[{"title":"b"}]}`)

		// Act
		cmd, err := parseImportFile(raw)

		// Assert
		require.NoError(t, err)
		assert.JSONEq(t, `[{"title":"b"}]`, string(cmd.Data.Memories))
	})

	t.Run("Should reject malformed JSON", func(t *testing.T) {
		// Act
		_, err := parseImportFile([]byte(`{not json`))

		// Assert
		assert.Error(t, err)
	})
}
