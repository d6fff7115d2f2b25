package uuid

import (
	"testing"

	gouuid "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()

	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)

	parsed, err := gouuid.Parse(id1)
	require.NoError(t, err)
	assert.Equal(t, gouuid.Version(7), parsed.Version(), "run IDs must sort roughly by creation time")
}
