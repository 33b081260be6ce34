package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	assert.Equal(t, AppName+"/"+GitCommit, Full())
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "a3f8c2d1", shorten("a3f8c2d1e9b7f04c"))
	assert.Equal(t, "dev", shorten("dev"))
}
