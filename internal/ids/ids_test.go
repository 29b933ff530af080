package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherDeterministic(t *testing.T) {
	h1 := New().WriteString("env1").WriteString("/src/a.js").WriteString("").WriteString("")
	h2 := New().WriteString("env1").WriteString("/src/a.js").WriteString("").WriteString("")
	assert.Equal(t, h1.Sum64(), h2.Sum64())
}

func TestHasherFieldBoundariesDontCollide(t *testing.T) {
	a := New().WriteString("ab").WriteString("c").Sum64()
	b := New().WriteString("a").WriteString("bc").Sum64()
	assert.NotEqual(t, a, b)
}

func TestHexOfIsSixteenChars(t *testing.T) {
	require.Len(t, HexOf(1), 16)
	require.Len(t, HexOf(^uint64(0)), 16)
}

func TestPublicIDAssignerMinLength(t *testing.T) {
	a := NewPublicIDAssigner(5)
	id := a.Assign(42)
	assert.GreaterOrEqual(t, len(id), 5)
}

func TestPublicIDAssignerUniqueOnCollision(t *testing.T) {
	a := NewPublicIDAssigner(5)
	// Force a collision at the natural prefix length by pre-seeding it.
	first := Base62Of(100, 5)
	a.assigned[first] = struct{}{}
	got := a.Assign(100)
	assert.NotEqual(t, first, got)
	assert.GreaterOrEqual(t, len(got), 5)
}
