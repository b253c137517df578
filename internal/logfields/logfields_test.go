package logfields

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttrs(t *testing.T) {
	assert.Equal(t, KeyProject, Project("svc-a").Key)
	assert.Equal(t, "svc-a", Project("svc-a").Value.String())
	assert.Equal(t, "build", Stage("build").Value.String())
	assert.Equal(t, int64(3), Count(3).Value.Int64())
	assert.Equal(t, "main", Branch("main").Value.String())
}

func TestRevisionShortensHash(t *testing.T) {
	assert.Equal(t, "0123abcd", Revision("0123abcdef4567").Value.String())
	assert.Equal(t, "local", Revision("local").Value.String())
}

func TestError(t *testing.T) {
	assert.Equal(t, "", Error(nil).Value.String())
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
}
