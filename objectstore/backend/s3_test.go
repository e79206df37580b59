package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopySource_EscapesSegments(t *testing.T) {
	assert.Equal(t, "tmp/u1/chunk%2000.part", copySource("tmp", "u1/chunk 00.part"))
	assert.Equal(t, "tmp/a%23b/c", copySource("tmp", "a#b/c"))
}
