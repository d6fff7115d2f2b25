package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherHash(t *testing.T) {
	t.Parallel()

	h := New()

	got, err := h.Hash([]byte("https://jobs.example.com/job/a1"))
	require.NoError(t, err)
	assert.Equal(t, "edf39bc022e805a31011e82c1e61faf6a3f818e1846eb1a6f542063f4630c145", got)

	again, err := h.Hash([]byte("https://jobs.example.com/job/a1"))
	require.NoError(t, err)
	assert.Equal(t, got, again, "same input must key the same snapshot object")

	other, err := h.Hash([]byte("https://jobs.example.com/job/a2"))
	require.NoError(t, err)
	assert.NotEqual(t, got, other)
}
