package scopes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	v := New()
	allowed := []string{"read", "write", "admin"}

	t.Run("approves allowed scopes in request order", func(t *testing.T) {
		approved, err := v.Validate([]string{"write", "read"}, allowed)
		require.NoError(t, err)
		require.Equal(t, []string{"write", "read"}, approved)
	})

	t.Run("drops duplicates", func(t *testing.T) {
		approved, err := v.Validate([]string{"read", "read", "write"}, allowed)
		require.NoError(t, err)
		require.Equal(t, []string{"read", "write"}, approved)
	})

	t.Run("rejects scopes outside the allow list", func(t *testing.T) {
		_, err := v.Validate([]string{"read", "delete"}, allowed)
		require.Error(t, err)
		require.Contains(t, err.Error(), `"delete"`)
	})

	t.Run("empty request yields empty approved set", func(t *testing.T) {
		approved, err := v.Validate(nil, allowed)
		require.NoError(t, err)
		require.Empty(t, approved)
	})

	t.Run("nothing allowed rejects everything", func(t *testing.T) {
		_, err := v.Validate([]string{"read"}, nil)
		require.Error(t, err)
	})
}
