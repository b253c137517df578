package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/monobuild/internal/util/sets"
)

func TestNewestFirstSortsByOrdinalNotInsertion(t *testing.T) {
	history := []Revision{
		New(2, "b", "x"),
		New(1, "a", "y"),
		New(3, "c", "z"),
	}

	sorted := NewestFirst(history)

	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{sorted[0].Hash, sorted[1].Hash, sorted[2].Hash})
	assert.Equal(t, "b", history[0].Hash, "input must not be reordered")
}

func TestAllFiles(t *testing.T) {
	history := []Revision{
		New(1, "a", "svc/a.go", "lib/x.go"),
		New(2, "b", "lib/x.go", "README.md"),
	}
	assert.True(t, AllFiles(history).Equal(sets.New("svc/a.go", "lib/x.go", "README.md")))
	assert.Equal(t, 0, AllFiles(nil).Len())
}

func TestHead(t *testing.T) {
	_, ok := Head(nil)
	assert.False(t, ok)

	head, ok := Head([]Revision{New(5, "e"), New(9, "i"), New(7, "g")})
	require.True(t, ok)
	assert.Equal(t, "i", head.Hash)
}
