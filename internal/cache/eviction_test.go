package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvictionTrackerEvictsOldestOverCapacity(t *testing.T) {
	tr := NewEvictionTracker(2)
	assert.Empty(t, tr.Touch("a", 1))
	assert.Empty(t, tr.Touch("b", 2))
	evicted := tr.Touch("c", 3)
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 2, tr.Len())
	assert.True(t, tr.Consistent())
}

func TestEvictionTrackerReTouchMovesToBack(t *testing.T) {
	tr := NewEvictionTracker(2)
	tr.Touch("a", 1)
	tr.Touch("b", 2)
	tr.Touch("a", 3) // re-touch a, b is now oldest
	evicted := tr.Touch("c", 4)
	assert.Equal(t, []string{"b"}, evicted)
	assert.True(t, tr.Consistent())
}

func TestEvictionTrackerRemoveKeepsConsistency(t *testing.T) {
	tr := NewEvictionTracker(5)
	tr.Touch("a", 1)
	tr.Touch("b", 2)
	tr.Remove("a")
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Consistent())
}
