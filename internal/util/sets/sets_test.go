package sets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetBasics(t *testing.T) {
	s := New("b", "a")
	s.Add("c")
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("z"))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"a", "b", "c"}, Sorted(s))

	var empty Set[string]
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Has("a"))
	assert.Empty(t, Sorted(empty))
}

func TestCloneAndAddAll(t *testing.T) {
	s := New(1, 2)
	c := s.Clone()
	c.AddAll(New(3))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{1, 2, 3}, Sorted(c))
}

func TestFilterAndEqual(t *testing.T) {
	s := New("svc/a.go", "lib/b.go", "svc/c.go")
	svc := s.Filter(func(p string) bool { return strings.HasPrefix(p, "svc/") })
	assert.True(t, svc.Equal(New("svc/c.go", "svc/a.go")))
	assert.False(t, svc.Equal(New("svc/a.go")))
	assert.False(t, svc.Equal(New("svc/a.go", "lib/b.go")))
}
