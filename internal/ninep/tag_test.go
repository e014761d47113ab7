package ninep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagAllocator_RecyclesFreedTags(t *testing.T) {
	a := newTagAllocator()

	var allocated []Tag
	for i := 0; i < 10; i++ {
		tag, err := a.alloc()
		require.NoError(t, err)
		allocated = append(allocated, tag)
	}

	for _, tag := range allocated {
		a.release(tag)
	}

	// A fresh round of allocations should reuse the freed tags rather than
	// bumping the counter further.
	before := a.next
	tag, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, a.next, before, "recycled tag must not advance next")
	assert.Contains(t, allocated, tag)
}

func TestTagAllocator_NeverAllocatesNOTAG(t *testing.T) {
	a := &tagAllocator{next: uint32(NOTAG)}

	_, err := a.alloc()
	assert.ErrorIs(t, err, ErrOutOfTags)
}

func TestTagAllocator_OutOfTagsWhenExhausted(t *testing.T) {
	a := &tagAllocator{next: uint32(NOTAG) - 1}

	tag, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, Tag(NOTAG-1), tag)

	_, err = a.alloc()
	assert.ErrorIs(t, err, ErrOutOfTags)
}

func TestTagAllocator_ConcurrentAllocationsAreUnique(t *testing.T) {
	a := newTagAllocator()

	const n = 1000
	seen := make(chan Tag, n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			tag, err := a.alloc()
			require.NoError(t, err)
			seen <- tag
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	close(seen)

	unique := make(map[Tag]bool)
	for tag := range seen {
		assert.False(t, unique[tag], "tag %d allocated twice concurrently", tag)
		unique[tag] = true
	}
	assert.Len(t, unique, n)
}
