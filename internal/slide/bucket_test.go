package slide

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucket_FIFOWrapAround(t *testing.T) {
	var b bucket
	for i := 0; i < bucketSize+5; i++ {
		b.add(i)
	}

	got := b.getAll()
	assert.Len(t, got, bucketSize, "getAll must never report more than bucketSize entries")

	// The oldest 5 inserts (0..4) were overwritten by ids bucketSize..bucketSize+4.
	assert.Equal(t, bucketSize, got[0], "slot 0 must hold the first id that wrapped back to it")
	assert.Equal(t, bucketSize+4, got[4])
	assert.Equal(t, 5, got[5], "slot 5 still holds its original, never-overwritten id")
}

func TestBucket_GetAllBeforeFull(t *testing.T) {
	var b bucket
	b.add(10)
	b.add(20)
	b.add(30)

	assert.Equal(t, []int{10, 20, 30}, b.getAll())
}

func TestBucket_ClearResetsCountNotStorage(t *testing.T) {
	var b bucket
	b.add(1)
	b.add(2)
	b.clear()

	assert.Empty(t, b.getAll())

	slot := b.add(99)
	assert.Equal(t, 0, slot, "after clear, the next add must land back in slot 0")
	assert.Equal(t, []int{99}, b.getAll())
}
